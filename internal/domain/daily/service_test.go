package daily

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nanopets/giftbot/internal/domain/artifact"
	"github.com/nanopets/giftbot/internal/domain/artifact/mock"
	"github.com/nanopets/giftbot/internal/domain/errs"
	"github.com/nanopets/giftbot/internal/domain/gifts"
	"github.com/nanopets/giftbot/internal/domain/prompts"
	"github.com/nanopets/giftbot/internal/gateways/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func countingGenerator() (artifact.Generator, *atomic.Int64) {
	var calls atomic.Int64
	gen := artifact.GeneratorFunc(func(ctx context.Context, prompt string) (artifact.Media, error) {
		n := calls.Add(1)
		return artifact.Media{
			URL:          fmt.Sprintf("https://cdn.test/a/%d.mp4", n),
			ThumbnailURL: fmt.Sprintf("https://cdn.test/t/%d.jpg", n),
		}, nil
	})
	return gen, &calls
}

type fixture struct {
	store *memory.Store
	clock *clock
	svc   *Service
	user  *gifts.User
}

func newFixture(t *testing.T, gen artifact.Generator) *fixture {
	t.Helper()
	clk := &clock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	store := memory.NewWithClock(clk.Now)
	user, err := store.Users().FindOrCreate(context.Background(), 1001, "pat")
	require.NoError(t, err)

	svc := NewService(store, gen,
		WithClock(clk.Now),
		WithPicker(prompts.NewSeededPicker(3, 4)))
	return &fixture{store: store, clock: clk, svc: svc, user: user}
}

func TestEndToEndDaily(t *testing.T) {
	ctx := context.Background()
	gen, _ := countingGenerator()
	f := newFixture(t, gen)

	draft, err := f.svc.Start(ctx, f.user)
	require.NoError(t, err)
	assert.Empty(t, draft.Candidates)
	assert.Equal(t, f.clock.Now().Add(time.Hour), draft.ExpiresAt)

	cands, err := f.svc.Generate(ctx, f.user, draft.ID)
	require.NoError(t, err)
	require.Len(t, cands, 2)

	gift, err := f.svc.Choose(ctx, f.user, draft.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, gifts.RarityCommon, gift.Rarity)
	assert.Equal(t, gifts.ProvenanceDaily, gift.Provenance)
	assert.Empty(t, gift.ParentIDs)
	assert.Equal(t, cands[0].MediaURL, gift.MediaURL)

	fresh, err := f.store.Users().GetByID(ctx, f.user.ID)
	require.NoError(t, err)
	require.NotNil(t, fresh.LastDailyAt)
	assert.Equal(t, f.clock.Now(), *fresh.LastDailyAt)

	_, err = f.store.Drafts().GetOpen(ctx, draft.ID, f.user.ID)
	assert.ErrorIs(t, err, gifts.ErrNotFound)

	f.clock.Advance(time.Second)
	_, err = f.svc.Start(ctx, f.user)
	require.Error(t, err)
	assert.Equal(t, errs.KindRateLimited, errs.KindOf(err))
	wait := errs.RetryAfterOf(err)
	assert.InDelta(t, (24 * time.Hour).Seconds(), wait.Seconds(), 2)
	assert.Contains(t, err.Error(), "24 hours")
}

func TestStartCooldownBoundary(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr bool
	}{
		{name: "just claimed", elapsed: 0, wantErr: true},
		{name: "one second short", elapsed: 24*time.Hour - time.Second, wantErr: true},
		{name: "exactly 24h", elapsed: 24 * time.Hour, wantErr: false},
		{name: "well past", elapsed: 48 * time.Hour, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			gen, _ := countingGenerator()
			f := newFixture(t, gen)

			claimed := f.clock.Now()
			require.NoError(t, f.store.Users().SetLastDailyAt(ctx, f.user.ID, claimed))
			f.clock.Advance(tt.elapsed)

			_, err := f.svc.Start(ctx, f.user)
			if tt.wantErr {
				assert.Equal(t, errs.KindRateLimited, errs.KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStartLeavesOneDraft(t *testing.T) {
	ctx := context.Background()
	gen, _ := countingGenerator()
	f := newFixture(t, gen)

	first, err := f.svc.Start(ctx, f.user)
	require.NoError(t, err)
	second, err := f.svc.Start(ctx, f.user)
	require.NoError(t, err)

	_, err = f.store.Drafts().GetOpen(ctx, first.ID, f.user.ID)
	assert.ErrorIs(t, err, gifts.ErrNotFound)
	_, err = f.store.Drafts().GetOpen(ctx, second.ID, f.user.ID)
	assert.NoError(t, err)

	_, err = f.svc.Generate(ctx, f.user, first.ID)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestGenerateReplacesCandidates(t *testing.T) {
	ctx := context.Background()
	gen, calls := countingGenerator()
	f := newFixture(t, gen)

	draft, err := f.svc.Start(ctx, f.user)
	require.NoError(t, err)

	first, err := f.svc.Generate(ctx, f.user, draft.ID)
	require.NoError(t, err)
	second, err := f.svc.Generate(ctx, f.user, draft.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(4), calls.Load())
	assert.NotEqual(t, first[0].MediaURL, second[0].MediaURL)

	stored, err := f.store.Drafts().GetOpen(ctx, draft.ID, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Candidates, 2)
	assert.Equal(t, second, stored.Candidates)
}

func TestGenerateFailureLeavesDraftUntouched(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gen := mock.NewMockGenerator(ctrl)
	f := newFixture(t, gen)

	draft, err := f.svc.Start(ctx, f.user)
	require.NoError(t, err)

	good := artifact.Media{URL: "https://cdn.test/a.mp4", ThumbnailURL: "https://cdn.test/a.jpg"}
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(good, nil).Times(2)
	_, err = f.svc.Generate(ctx, f.user, draft.ID)
	require.NoError(t, err)

	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(good, nil).MaxTimes(1)
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(artifact.Media{}, errors.New("upstream down")).Times(1)

	_, err = f.svc.Generate(ctx, f.user, draft.ID)
	require.Error(t, err)
	assert.Equal(t, errs.KindUpstreamFailure, errs.KindOf(err))

	stored, err := f.store.Drafts().GetOpen(ctx, draft.ID, f.user.ID)
	require.NoError(t, err)
	require.Len(t, stored.Candidates, 2)
	assert.Equal(t, good.URL, stored.Candidates[0].MediaURL)
}

func TestGenerateRejectsIncompleteMedia(t *testing.T) {
	ctx := context.Background()
	gen := artifact.GeneratorFunc(func(ctx context.Context, prompt string) (artifact.Media, error) {
		return artifact.Media{URL: "https://cdn.test/a.mp4"}, nil
	})
	f := newFixture(t, gen)

	draft, err := f.svc.Start(ctx, f.user)
	require.NoError(t, err)

	_, err = f.svc.Generate(ctx, f.user, draft.ID)
	assert.Equal(t, errs.KindUpstreamFailure, errs.KindOf(err))
}

func TestExpiredDraft(t *testing.T) {
	ctx := context.Background()
	gen, calls := countingGenerator()
	f := newFixture(t, gen)

	draft, err := f.svc.Start(ctx, f.user)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	_, err = f.svc.Generate(ctx, f.user, draft.ID)
	assert.Equal(t, errs.KindExpired, errs.KindOf(err))
	assert.Zero(t, calls.Load())

	_, err = f.svc.Choose(ctx, f.user, draft.ID, 0)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestChooseInvalidIndex(t *testing.T) {
	ctx := context.Background()
	gen, _ := countingGenerator()
	f := newFixture(t, gen)

	draft, err := f.svc.Start(ctx, f.user)
	require.NoError(t, err)

	_, err = f.svc.Choose(ctx, f.user, draft.ID, 0)
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err), "no candidates yet")

	_, err = f.svc.Generate(ctx, f.user, draft.ID)
	require.NoError(t, err)

	for _, index := range []int{-1, 2, 99} {
		_, err = f.svc.Choose(ctx, f.user, draft.ID, index)
		assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err), "index %d", index)
	}

	list, err := f.store.Gifts().ListOwned(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestChooseOtherUsersDraft(t *testing.T) {
	ctx := context.Background()
	gen, _ := countingGenerator()
	f := newFixture(t, gen)

	draft, err := f.svc.Start(ctx, f.user)
	require.NoError(t, err)
	_, err = f.svc.Generate(ctx, f.user, draft.ID)
	require.NoError(t, err)

	intruder, err := f.store.Users().FindOrCreate(ctx, 2002, "mallory")
	require.NoError(t, err)

	_, err = f.svc.Choose(ctx, intruder, draft.ID, 0)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestConcurrentChooseMintsOnce(t *testing.T) {
	ctx := context.Background()
	gen, _ := countingGenerator()
	f := newFixture(t, gen)

	draft, err := f.svc.Start(ctx, f.user)
	require.NoError(t, err)
	_, err = f.svc.Generate(ctx, f.user, draft.ID)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		success atomic.Int64
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := *f.user
			if _, err := f.svc.Choose(ctx, &user, draft.ID, 1); err == nil {
				success.Add(1)
			} else {
				assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), success.Load())
	list, err := f.store.Gifts().ListOwned(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSweepOnce(t *testing.T) {
	ctx := context.Background()
	gen, _ := countingGenerator()
	f := newFixture(t, gen)

	_, err := f.svc.Start(ctx, f.user)
	require.NoError(t, err)

	var swept int64
	sweeper := NewSweeper(f.store.Drafts(), time.Minute, func(n int64) { swept += n })
	sweeper.now = f.clock.Now

	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(2 * time.Hour)
	n, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(1), swept)
}

func TestSweeperRunStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sweeper := NewSweeper(memory.New().Drafts(), time.Millisecond, nil)

	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
