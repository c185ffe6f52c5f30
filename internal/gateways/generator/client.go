// Package generator talks to the upstream animation service and turns its
// transient output into durable media.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nanopets/giftbot/internal/domain/artifact"
	"github.com/nanopets/giftbot/internal/gateways/metrics"
)

const (
	DefaultPollInterval  = 5 * time.Second
	DefaultMaxAttempts   = 60
	DefaultMaxConcurrent = 4
)

var (
	ErrGenerationFailed   = errors.New("generation failed")
	ErrGenerationTimedOut = errors.New("generation timed out")
)

type Config struct {
	BaseURL       string
	APIKey        string
	PollInterval  time.Duration
	MaxAttempts   int
	MaxConcurrent int64
}

// Client implements artifact.Generator against the upstream generations API.
type Client struct {
	cfg      Config
	http     *http.Client
	uploader Uploader
	sem      *semaphore.Weighted
}

var _ artifact.Generator = (*Client)(nil)

func NewClient(cfg Config, uploader Uploader, httpClient *http.Client) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if uploader == nil {
		uploader = PassthroughUploader{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:      cfg,
		http:     httpClient,
		uploader: uploader,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
	}
}

type createRequest struct {
	Prompt   string `json:"prompt"`
	Duration int    `json:"duration"`
	Loop     bool   `json:"loop"`
	Style    string `json:"style"`
	Quality  string `json:"quality"`
}

type generation struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	VideoURL     string `json:"video_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Error        string `json:"error"`
}

func (c *Client) Generate(ctx context.Context, prompt string) (artifact.Media, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return artifact.Media{}, err
	}
	defer c.sem.Release(1)

	metrics.GenerationStarted()
	defer metrics.GenerationFinished()

	start := time.Now()
	media, err := c.generate(ctx, prompt)
	metrics.RecordGeneration(err == nil, time.Since(start))
	if err != nil {
		slog.Error("Generation failed",
			slog.String("type", "sys"),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err))
		return artifact.Media{}, err
	}
	return media, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (artifact.Media, error) {
	job, err := c.create(ctx, prompt)
	if err != nil {
		return artifact.Media{}, err
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return artifact.Media{}, ctx.Err()
		case <-ticker.C:
		}

		status, err := c.status(ctx, job.ID)
		if err != nil {
			return artifact.Media{}, err
		}

		switch status.Status {
		case "completed":
			thumb := status.ThumbnailURL
			if thumb == "" {
				thumb = status.VideoURL
			}
			return c.uploader.Upload(ctx, job.ID, status.VideoURL, thumb)
		case "failed":
			return artifact.Media{}, fmt.Errorf("%w: %s", ErrGenerationFailed, status.Error)
		}
	}
	return artifact.Media{}, ErrGenerationTimedOut
}

func (c *Client) create(ctx context.Context, prompt string) (*generation, error) {
	body, err := json.Marshal(createRequest{
		Prompt:   prompt,
		Duration: 2,
		Loop:     true,
		Style:    "3d_plush",
		Quality:  "high",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/generations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out generation
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("create generation: %w", err)
	}
	if out.ID == "" {
		return nil, errors.New("create generation: empty job id")
	}
	return &out, nil
}

func (c *Client) status(ctx context.Context, id string) (*generation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/generations/"+id, nil)
	if err != nil {
		return nil, err
	}
	var out generation
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("poll generation %s: %w", id, err)
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
