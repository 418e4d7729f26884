// Package providers defines the capability interface implemented by every
// generation provider family, together with the structured error taxonomy
// the orchestrator classifies failures with.
package providers

import "context"

// SourceMedia describes input media used as conditioning for image-to-image
// and image-to-video jobs.
type SourceMedia struct {
	Ref         string
	URL         string
	ContentType string
	Data        []byte
}

// Request is the normalized input passed to any provider. It is derived
// from the job's typed params; providers translate it into their own wire
// format and clamp values to what they accept.
type Request struct {
	JobID           string
	Prompt          string
	NegativePrompt  string
	Model           string
	AspectRatio     string
	Seed            int
	DurationSeconds int
	SourceMedia     *SourceMedia
}

// Media is the provider-agnostic generation result.
type Media struct {
	Data            []byte
	ContentType     string
	Width           int
	Height          int
	DurationSeconds int
	SourceURL       string
}

// Generator is the contract implemented by all providers. It is a pure
// function of the request: no credit or job-store knowledge lives here.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Media, error)
}

// ImageGenerator marks providers that can produce a still image, used by
// the composite text-to-video flow to synthesize an animation seed frame.
type ImageGenerator interface {
	Generator
	Name() string
}
