package domain

import (
	"fmt"
	"strings"
)

// Supported aspect ratios across all providers.
var aspectRatios = map[string]struct{}{
	"1:1": {}, "4:3": {}, "3:4": {}, "16:9": {}, "9:16": {},
}

// DefaultAspectRatio is applied when the caller omits one.
const DefaultAspectRatio = "1:1"

// ImageParams carries provider parameters for image jobs.
type ImageParams struct {
	Model          string `json:"model,omitempty"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
	Seed           int    `json:"seed,omitempty"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

// VideoParams carries provider parameters for video jobs. DurationSeconds is
// a request; providers clamp it to their accepted discrete set.
type VideoParams struct {
	Model           string `json:"model,omitempty"`
	AspectRatio     string `json:"aspect_ratio,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Seed            int    `json:"seed,omitempty"`
	ImageRef        string `json:"image_ref,omitempty"`
}

// Params is the tagged per-job-type parameter set. Exactly one branch is
// populated, matching the job type, so an image job cannot carry a duration
// and a video job cannot carry image-only knobs.
type Params struct {
	Image *ImageParams `json:"image,omitempty"`
	Video *VideoParams `json:"video,omitempty"`
}

// Normalize fills defaults in place.
func (p *Params) Normalize() {
	if p.Image != nil {
		p.Image.AspectRatio = normalizeAspect(p.Image.AspectRatio)
	}
	if p.Video != nil {
		p.Video.AspectRatio = normalizeAspect(p.Video.AspectRatio)
	}
}

// Validate checks that the populated branch matches the job type and that
// its fields are acceptable. It never consults external state.
func (p Params) Validate(jobType JobType) error {
	switch {
	case jobType.IsVideo():
		if p.Image != nil {
			return fmt.Errorf("%w: image params on a %s job", ErrInvalidParams, jobType)
		}
		if p.Video == nil {
			return fmt.Errorf("%w: video params required for %s", ErrInvalidParams, jobType)
		}
		if _, ok := aspectRatios[p.Video.AspectRatio]; !ok {
			return fmt.Errorf("%w: unsupported aspect ratio %q", ErrInvalidParams, p.Video.AspectRatio)
		}
		if p.Video.DurationSeconds < 0 || p.Video.DurationSeconds > 60 {
			return fmt.Errorf("%w: duration %ds out of range", ErrInvalidParams, p.Video.DurationSeconds)
		}
	default:
		if p.Video != nil {
			return fmt.Errorf("%w: video params on a %s job", ErrInvalidParams, jobType)
		}
		if p.Image == nil {
			return fmt.Errorf("%w: image params required for %s", ErrInvalidParams, jobType)
		}
		if _, ok := aspectRatios[p.Image.AspectRatio]; !ok {
			return fmt.Errorf("%w: unsupported aspect ratio %q", ErrInvalidParams, p.Image.AspectRatio)
		}
	}
	return nil
}

// AspectRatio returns the ratio of the populated branch.
func (p Params) AspectRatio() string {
	if p.Video != nil {
		return p.Video.AspectRatio
	}
	if p.Image != nil {
		return p.Image.AspectRatio
	}
	return DefaultAspectRatio
}

func normalizeAspect(ratio string) string {
	ratio = strings.TrimSpace(ratio)
	if ratio == "" {
		return DefaultAspectRatio
	}
	return ratio
}
