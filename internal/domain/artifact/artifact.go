// Package artifact defines the media generation collaborator.
package artifact

import (
	"context"
	"errors"
)

//go:generate mockgen -source=artifact.go -destination=mock/generator.go -package=mock

// Media holds durable references to a generated artifact.
type Media struct {
	URL          string
	ThumbnailURL string
}

var ErrIncompleteMedia = errors.New("generator returned incomplete media")

func (m Media) Validate() error {
	if m.URL == "" || m.ThumbnailURL == "" {
		return ErrIncompleteMedia
	}
	return nil
}

// Generator turns a prompt into durable media. Implementations may poll
// upstream jobs for minutes and must honour ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, prompt string) (Media, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (Media, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (Media, error) {
	return f(ctx, prompt)
}
