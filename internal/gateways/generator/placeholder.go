package generator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nanopets/giftbot/internal/domain/artifact"
)

// Placeholder returns fixed-host URLs without calling upstream. Development only.
type Placeholder struct {
	BaseURL string
}

func NewPlaceholder(baseURL string) *Placeholder {
	if baseURL == "" {
		baseURL = "https://example.com"
	}
	slog.Warn("Placeholder generator enabled, media will not be rendered",
		slog.String("type", "sys"))
	return &Placeholder{BaseURL: baseURL}
}

func (p *Placeholder) Generate(ctx context.Context, _ string) (artifact.Media, error) {
	if err := ctx.Err(); err != nil {
		return artifact.Media{}, err
	}
	id := uuid.NewString()
	return artifact.Media{
		URL:          fmt.Sprintf("%s/placeholder/%s.mp4", p.BaseURL, id),
		ThumbnailURL: fmt.Sprintf("%s/placeholder/%s.jpg", p.BaseURL, id),
	}, nil
}
