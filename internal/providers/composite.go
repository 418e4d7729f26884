package providers

import (
	"context"
	"strings"
)

// SeededVideoGenerator serves text_to_video on stacks whose video model only
// animates an existing image. It chains an image generation sub-call and
// feeds the result to the video generator as the animation seed frame.
type SeededVideoGenerator struct {
	images ImageGenerator
	video  Generator
}

// NewSeededVideoGenerator wires the image and video halves of the chain.
func NewSeededVideoGenerator(images ImageGenerator, video Generator) *SeededVideoGenerator {
	return &SeededVideoGenerator{images: images, video: video}
}

// Generate renders a seed frame from the prompt, then animates it. A request
// that already carries source media skips the image sub-call.
func (g *SeededVideoGenerator) Generate(ctx context.Context, req Request) (*Media, error) {
	if g.images == nil || g.video == nil {
		return nil, NewError(KindUnexpected, "seeded video generator not configured")
	}
	if req.SourceMedia == nil {
		frameReq := Request{
			JobID:          req.JobID,
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
			AspectRatio:    req.AspectRatio,
			Seed:           req.Seed,
		}
		frame, err := g.images.Generate(ctx, frameReq)
		if err != nil {
			return nil, err
		}
		req.SourceMedia = &SourceMedia{
			ContentType: frame.ContentType,
			Data:        frame.Data,
			URL:         frame.SourceURL,
		}
		// The video half animates the frame; the prompt already shaped it.
		req.Prompt = motionPrompt(req.Prompt)
	}
	return g.video.Generate(ctx, req)
}

func motionPrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "animate the provided image with subtle natural motion"
	}
	return prompt
}

var _ Generator = (*SeededVideoGenerator)(nil)
