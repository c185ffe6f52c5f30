// Package daily runs the once-per-cooldown draft flow: open a draft, fill it
// with generated candidates, then mint exactly one of them.
package daily

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nanopets/giftbot/internal/domain/artifact"
	"github.com/nanopets/giftbot/internal/domain/errs"
	"github.com/nanopets/giftbot/internal/domain/gifts"
	"github.com/nanopets/giftbot/internal/domain/prompts"
)

const (
	DefaultCooldown   = 24 * time.Hour
	DefaultDraftTTL   = time.Hour
	DefaultCandidates = 2
)

type Service struct {
	store      gifts.Store
	generator  artifact.Generator
	picker     *prompts.Picker
	cooldown   time.Duration
	ttl        time.Duration
	candidates int
	now        func() time.Time
}

type Option func(*Service)

func WithCooldown(d time.Duration) Option { return func(s *Service) { s.cooldown = d } }
func WithDraftTTL(d time.Duration) Option { return func(s *Service) { s.ttl = d } }
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}
func WithPicker(p *prompts.Picker) Option { return func(s *Service) { s.picker = p } }

func NewService(store gifts.Store, generator artifact.Generator, opts ...Option) *Service {
	s := &Service{
		store:      store,
		generator:  generator,
		picker:     prompts.NewPicker(),
		cooldown:   DefaultCooldown,
		ttl:        DefaultDraftTTL,
		candidates: DefaultCandidates,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a fresh draft for the user, discarding any previous one.
func (s *Service) Start(ctx context.Context, user *gifts.User) (*gifts.Draft, error) {
	now := s.now()

	fresh, err := s.store.Users().GetByID(ctx, user.ID)
	if err != nil {
		return nil, gifts.Classify(err, "user not found")
	}
	if remaining := s.remaining(fresh.LastDailyAt, now); remaining > 0 {
		hours := int(math.Ceil(remaining.Hours()))
		return nil, errs.RateLimited(remaining, "daily gift already claimed, come back in %d hours", hours)
	}

	draft := &gifts.Draft{
		OwnerID:   user.ID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx gifts.Repositories) error {
		if _, err := tx.Drafts().DeleteByOwner(ctx, user.ID); err != nil {
			return err
		}
		return tx.Drafts().Create(ctx, draft)
	})
	if err != nil {
		slog.Error("Failed to open daily draft",
			slog.String("type", "db"),
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil, gifts.Classify(err, "user not found")
	}

	slog.Info("Daily draft opened",
		slog.String("type", "wf"),
		slog.String("user_id", user.ID),
		slog.String("draft_id", draft.ID),
		slog.Time("expires_at", draft.ExpiresAt))
	return draft, nil
}

func (s *Service) remaining(last *time.Time, now time.Time) time.Duration {
	if last == nil {
		return 0
	}
	return last.Add(s.cooldown).Sub(now)
}

// open loads the user's current draft, deleting it lazily when expired.
func (s *Service) open(ctx context.Context, user *gifts.User, draftID string) (*gifts.Draft, error) {
	if draftID == "" {
		return nil, errs.InvalidInput("missing draft id")
	}
	draft, err := s.store.Drafts().GetOpen(ctx, draftID, user.ID)
	if err != nil {
		return nil, gifts.Classify(err, "draft not found")
	}
	if draft.Expired(s.now()) {
		if _, err := s.store.Drafts().Delete(ctx, draft.ID, user.ID); err != nil {
			slog.Warn("Failed to delete expired draft",
				slog.String("type", "db"),
				slog.String("draft_id", draft.ID),
				slog.Any("error", err))
		}
		return nil, errs.Expired("draft expired")
	}
	return draft, nil
}

// Generate fills the draft with freshly generated candidates. Calling it
// again replaces the previous candidates.
func (s *Service) Generate(ctx context.Context, user *gifts.User, draftID string) ([]gifts.Candidate, error) {
	draft, err := s.open(ctx, user, draftID)
	if err != nil {
		return nil, err
	}

	style := user.Style
	if !style.Valid() {
		style = gifts.DefaultStyle
	}

	plans := make([]prompts.Prompt, s.candidates)
	for i := range plans {
		plans[i] = prompts.Daily(s.picker.Animal(), s.picker.Accessory(), string(style))
	}

	candidates := make([]gifts.Candidate, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	for i, plan := range plans {
		g.Go(func() error {
			media, err := s.generator.Generate(gctx, plan.Text)
			if err != nil {
				return err
			}
			if err := media.Validate(); err != nil {
				return err
			}
			candidates[i] = gifts.Candidate{
				Animals:      plan.Animals,
				Accessories:  plan.Accessories,
				MediaURL:     media.URL,
				ThumbnailURL: media.ThumbnailURL,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("Candidate generation failed",
			slog.String("type", "wf"),
			slog.String("draft_id", draft.ID),
			slog.Any("error", err))
		return nil, errs.Upstream(err, "failed to generate candidates")
	}

	if err := s.store.Drafts().ReplaceCandidates(ctx, draft.ID, user.ID, candidates); err != nil {
		return nil, gifts.Classify(err, "draft not found")
	}
	return candidates, nil
}

// Choose mints candidate index as the user's daily gift and closes the draft.
func (s *Service) Choose(ctx context.Context, user *gifts.User, draftID string, index int) (*gifts.Gift, error) {
	draft, err := s.open(ctx, user, draftID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(draft.Candidates) {
		return nil, errs.InvalidInput("invalid candidate index %d", index)
	}

	chosen := draft.Candidates[index]
	now := s.now()
	gift := &gifts.Gift{
		OwnerID:      user.ID,
		Animals:      chosen.Animals,
		Accessories:  chosen.Accessories,
		Rarity:       gifts.RarityCommon,
		MediaURL:     chosen.MediaURL,
		ThumbnailURL: chosen.ThumbnailURL,
		Provenance:   gifts.ProvenanceDaily,
		CreatedAt:    now,
	}
	if err := gift.Validate(); err != nil {
		return nil, errs.InvalidState("candidate %d is incomplete", index)
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx gifts.Repositories) error {
		if err := tx.Gifts().Create(ctx, gift); err != nil {
			return err
		}
		if err := tx.Users().SetLastDailyAt(ctx, user.ID, now); err != nil {
			return err
		}
		n, err := tx.Drafts().Delete(ctx, draft.ID, user.ID)
		if err != nil {
			return err
		}
		if n != 1 {
			return errs.NotFound("draft not found")
		}
		return nil
	})
	if err != nil {
		if !errs.Is(err, errs.KindNotFound) {
			slog.Error("Failed to mint daily gift",
				slog.String("type", "db"),
				slog.String("draft_id", draft.ID),
				slog.Any("error", err))
		}
		return nil, gifts.Classify(err, "draft not found")
	}

	user.LastDailyAt = &now
	slog.Info("Daily gift minted",
		slog.String("type", "wf"),
		slog.String("user_id", user.ID),
		slog.String("gift_id", gift.ID))
	return gift, nil
}

// Sweeper removes expired drafts in the background.
type Sweeper struct {
	drafts   gifts.DraftRepository
	interval time.Duration
	now      func() time.Time
	onSwept  func(n int64)
}

func NewSweeper(drafts gifts.DraftRepository, interval time.Duration, onSwept func(n int64)) *Sweeper {
	if onSwept == nil {
		onSwept = func(int64) {}
	}
	return &Sweeper{drafts: drafts, interval: interval, now: time.Now, onSwept: onSwept}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.drafts.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("Swept expired drafts",
			slog.String("type", "sys"),
			slog.Int64("count", n))
	}
	s.onSwept(n)
	return n, nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Draft sweep failed",
					slog.String("type", "sys"),
					slog.Any("error", err))
			}
		}
	}
}
