// Package fusion burns two or three owned gifts into one rarer gift.
//
// A job moves pending -> processing -> completed|failed. The pending ->
// processing step is a compare-and-set, so at most one caller ever generates
// and commits for a given job. The mint, the burn and the job completion are
// committed in one store transaction; if anything fails after the job was
// claimed, it is marked failed and the parents stay intact.
package fusion

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/nanopets/giftbot/internal/domain/artifact"
	"github.com/nanopets/giftbot/internal/domain/errs"
	"github.com/nanopets/giftbot/internal/domain/gifts"
	"github.com/nanopets/giftbot/internal/domain/prompts"
)

const (
	MinParents = 2
	MaxParents = 3
)

type Service struct {
	store     gifts.Store
	generator artifact.Generator
	picker    *prompts.Picker
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithPicker(p *prompts.Picker) Option   { return func(s *Service) { s.picker = p } }

func NewService(store gifts.Store, generator artifact.Generator, opts ...Option) *Service {
	s := &Service{
		store:     store,
		generator: generator,
		picker:    prompts.NewPicker(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start records a pending fusion of the given gifts.
func (s *Service) Start(ctx context.Context, user *gifts.User, giftIDs []string) (*gifts.FusionJob, error) {
	if len(giftIDs) < MinParents || len(giftIDs) > MaxParents {
		return nil, errs.InvalidInput("fusion needs %d or %d gifts, got %d", MinParents, MaxParents, len(giftIDs))
	}
	seen := make(map[string]struct{}, len(giftIDs))
	for _, id := range giftIDs {
		if id == "" {
			return nil, errs.InvalidInput("empty gift id")
		}
		if _, dup := seen[id]; dup {
			return nil, errs.InvalidInput("gift %s selected more than once", id)
		}
		seen[id] = struct{}{}
	}

	owned, err := s.store.Gifts().ListOwnedByIDs(ctx, user.ID, giftIDs)
	if err != nil {
		return nil, gifts.Classify(err, "gifts not found")
	}
	if len(owned) != len(giftIDs) {
		return nil, errs.Forbidden("you don't own all selected gifts")
	}

	job := &gifts.FusionJob{
		OwnerID:   user.ID,
		ParentIDs: slices.Clone(giftIDs),
		Status:    gifts.JobPending,
		CreatedAt: s.now(),
	}
	if err := s.store.FusionJobs().Create(ctx, job); err != nil {
		slog.Error("Failed to create fusion job",
			slog.String("type", "db"),
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil, gifts.Classify(err, "gifts not found")
	}

	slog.Info("Fusion job created",
		slog.String("type", "wf"),
		slog.String("job_id", job.ID),
		slog.Int("parents", len(job.ParentIDs)))
	return job, nil
}

// Complete runs a pending job to its terminal state and returns the minted gift.
func (s *Service) Complete(ctx context.Context, user *gifts.User, jobID string) (*gifts.Gift, error) {
	if jobID == "" {
		return nil, errs.InvalidInput("missing job id")
	}
	job, err := s.store.FusionJobs().GetOwned(ctx, jobID, user.ID)
	if err != nil {
		return nil, gifts.Classify(err, "fusion job not found")
	}
	if !gifts.CanTransition(job.Status, gifts.JobProcessing) {
		return nil, errs.InvalidState("fusion job is %s", job.Status)
	}

	claimed, err := s.store.FusionJobs().CompareAndSetStatus(ctx, job.ID, gifts.JobPending, gifts.JobProcessing)
	if err != nil {
		return nil, gifts.Classify(err, "fusion job not found")
	}
	if !claimed {
		return nil, errs.InvalidState("fusion job is already being processed")
	}

	gift, err := s.run(ctx, user, job)
	if err != nil {
		s.fail(ctx, job.ID, gifts.JobProcessing, err)
		return nil, err
	}

	slog.Info("Fusion completed",
		slog.String("type", "wf"),
		slog.String("job_id", job.ID),
		slog.String("gift_id", gift.ID),
		slog.String("rarity", string(gift.Rarity)))
	return gift, nil
}

func (s *Service) run(ctx context.Context, user *gifts.User, job *gifts.FusionJob) (*gifts.Gift, error) {
	parents, err := s.parents(ctx, user.ID, job.ParentIDs)
	if err != nil {
		return nil, err
	}

	prompt, rarity := s.compose(parents)
	media, err := s.generator.Generate(ctx, prompt.Text)
	if err == nil {
		err = media.Validate()
	}
	if err != nil {
		return nil, errs.Upstream(err, "failed to generate fused gift")
	}

	gift := &gifts.Gift{
		OwnerID:      user.ID,
		Animals:      prompt.Animals,
		Accessories:  prompt.Accessories,
		Rarity:       rarity,
		MediaURL:     media.URL,
		ThumbnailURL: media.ThumbnailURL,
		Provenance:   gifts.ProvenanceFusion,
		ParentIDs:    slices.Clone(job.ParentIDs),
		CreatedAt:    s.now(),
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx gifts.Repositories) error {
		if err := tx.Gifts().Create(ctx, gift); err != nil {
			return err
		}
		burned, err := tx.Gifts().DeleteOwned(ctx, user.ID, job.ParentIDs)
		if err != nil {
			return err
		}
		if burned != int64(len(job.ParentIDs)) {
			return errs.NotFound("selected gifts no longer exist")
		}
		done, err := tx.FusionJobs().Complete(ctx, job.ID, gift.ID)
		if err != nil {
			return err
		}
		if !done {
			return errs.InvalidState("fusion job is no longer processing")
		}
		return nil
	})
	if err != nil {
		return nil, gifts.Classify(err, "selected gifts no longer exist")
	}
	return gift, nil
}

// parents returns the job's parents in job order, failing if any is gone.
func (s *Service) parents(ctx context.Context, ownerID string, ids []string) ([]*gifts.Gift, error) {
	found, err := s.store.Gifts().ListOwnedByIDs(ctx, ownerID, ids)
	if err != nil {
		return nil, gifts.Classify(err, "selected gifts no longer exist")
	}
	byID := make(map[string]*gifts.Gift, len(found))
	for _, g := range found {
		byID[g.ID] = g
	}
	out := make([]*gifts.Gift, 0, len(ids))
	for _, id := range ids {
		g, ok := byID[id]
		if !ok {
			return nil, errs.NotFound("selected gifts no longer exist")
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *Service) compose(parents []*gifts.Gift) (prompts.Prompt, gifts.Rarity) {
	if len(parents) == MinParents {
		p := prompts.Fusion(
			prompts.FirstAnimal(parents[0].Animals),
			prompts.FirstAnimal(parents[1].Animals),
			parents[0].Accessories,
			parents[1].Accessories,
			s.picker.LegendaryTrait(),
		)
		return p, gifts.RarityRare
	}

	var accessories []string
	for _, p := range parents {
		accessories = append(accessories, p.Accessories...)
	}
	p := prompts.Legendary(
		prompts.FirstAnimal(parents[0].Animals),
		prompts.FirstAnimal(parents[1].Animals),
		prompts.FirstAnimal(parents[2].Animals),
		accessories,
	)
	return p, gifts.RarityLegendary
}

// fail marks a claimed job failed. It must run even when the request
// context was cancelled.
func (s *Service) fail(ctx context.Context, jobID string, from gifts.JobStatus, cause error) {
	slog.Warn("Fusion failed",
		slog.String("type", "wf"),
		slog.String("job_id", jobID),
		slog.Any("error", cause))

	if !gifts.CanTransition(from, gifts.JobFailed) {
		slog.Error("Fusion job cannot be marked failed",
			slog.String("type", "wf"),
			slog.String("job_id", jobID),
			slog.String("status", string(from)))
		return
	}

	ctx = context.WithoutCancel(ctx)
	ok, err := s.store.FusionJobs().CompareAndSetStatus(ctx, jobID, from, gifts.JobFailed)
	if err != nil || !ok {
		slog.Error("Failed to mark fusion job failed",
			slog.String("type", "db"),
			slog.String("job_id", jobID),
			slog.Bool("transitioned", ok),
			slog.Any("error", err))
	}
}
