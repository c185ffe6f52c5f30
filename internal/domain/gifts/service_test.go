package gifts_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanopets/giftbot/internal/domain/auth"
	"github.com/nanopets/giftbot/internal/domain/errs"
	"github.com/nanopets/giftbot/internal/domain/gifts"
	"github.com/nanopets/giftbot/internal/gateways/memory"
)

func TestResolvePrincipal(t *testing.T) {
	ctx := context.Background()
	svc := gifts.NewService(memory.New())
	identity := &auth.Identity{ID: 42, Username: "alice"}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]struct{}{}
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user, err := svc.ResolvePrincipal(ctx, identity)
			require.NoError(t, err)
			mu.Lock()
			ids[user.ID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 1)

	user, err := svc.ResolvePrincipal(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.PlatformID)
	assert.Equal(t, "alice", user.Handle)
	assert.Equal(t, gifts.DefaultStyle, user.Style)
}

type gatedStore struct {
	gifts.Store
	users *gatedUsers
}

func (s *gatedStore) Users() gifts.UserRepository { return s.users }

type gatedUsers struct {
	gifts.UserRepository
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (r *gatedUsers) FindOrCreate(ctx context.Context, platformID int64, handle string) (*gifts.User, error) {
	r.calls.Add(1)
	select {
	case r.entered <- struct{}{}:
	default:
	}
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.UserRepository.FindOrCreate(ctx, platformID, handle)
}

func TestResolvePrincipalSharedFlightSurvivesCancel(t *testing.T) {
	mem := memory.New()
	users := &gatedUsers{
		UserRepository: mem.Users(),
		entered:        make(chan struct{}, 1),
		release:        make(chan struct{}),
	}
	svc := gifts.NewService(&gatedStore{Store: mem, users: users})
	identity := &auth.Identity{ID: 7, Username: "bob"}

	cancelled, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.ResolvePrincipal(cancelled, identity)
		first <- err
	}()
	<-users.entered

	type result struct {
		user *gifts.User
		err  error
	}
	second := make(chan result, 1)
	go func() {
		user, err := svc.ResolvePrincipal(context.Background(), identity)
		second <- result{user, err}
	}()

	cancel()
	require.Error(t, <-first)

	// let the second caller join the flight before it completes
	time.Sleep(50 * time.Millisecond)
	close(users.release)

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, int64(7), got.user.PlatformID)
	assert.Equal(t, int32(1), users.calls.Load())
}

func TestResolvePrincipalRejectsEmptyIdentity(t *testing.T) {
	svc := gifts.NewService(memory.New())

	_, err := svc.ResolvePrincipal(context.Background(), nil)
	assert.Equal(t, errs.KindAuthFailure, errs.KindOf(err))

	_, err = svc.ResolvePrincipal(context.Background(), &auth.Identity{})
	assert.Equal(t, errs.KindAuthFailure, errs.KindOf(err))
}

func TestGetGiftOwnership(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := gifts.NewService(store)

	alice, err := svc.ResolvePrincipal(ctx, &auth.Identity{ID: 1})
	require.NoError(t, err)
	bob, err := svc.ResolvePrincipal(ctx, &auth.Identity{ID: 2})
	require.NoError(t, err)

	gift := &gifts.Gift{OwnerID: alice.ID, Animals: []string{"cat"}}
	require.NoError(t, store.Gifts().Create(ctx, gift))

	got, err := svc.GetGift(ctx, alice, gift.ID)
	require.NoError(t, err)
	assert.Equal(t, gift.ID, got.ID)

	_, err = svc.GetGift(ctx, bob, gift.ID)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	_, err = svc.GetGift(ctx, alice, "")
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))

	list, err := svc.ListGifts(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSetStyle(t *testing.T) {
	ctx := context.Background()
	svc := gifts.NewService(memory.New())
	user, err := svc.ResolvePrincipal(ctx, &auth.Identity{ID: 7})
	require.NoError(t, err)

	tests := []struct {
		name     string
		style    gifts.Style
		wantErr  bool
		contains string
	}{
		{name: "valid", style: gifts.StyleAnime},
		{name: "typo suggests", style: "anme", wantErr: true, contains: `did you mean "anime"`},
		{name: "unknown", style: "zzzz", wantErr: true, contains: `invalid style "zzzz"`},
		{name: "empty", style: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.SetStyle(ctx, user, tt.style)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
				assert.Contains(t, errs.MessageOf(err), tt.contains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.style, got)
		})
	}

	style, err := svc.GetStyle(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, gifts.StyleAnime, style)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, gifts.Classify(nil, "x"))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(gifts.Classify(gifts.ErrNotFound, "x")))
	assert.Equal(t, errs.KindUpstreamFailure, errs.KindOf(gifts.Classify(errors.New("dial tcp"), "x")))
	assert.Equal(t, errs.KindExpired, errs.KindOf(gifts.Classify(errs.Expired("gone"), "x")))
}

func TestGiftValidate(t *testing.T) {
	base := func() *gifts.Gift {
		return &gifts.Gift{
			Animals:      []string{"cat"},
			MediaURL:     "m",
			ThumbnailURL: "t",
			Provenance:   gifts.ProvenanceDaily,
		}
	}

	tests := []struct {
		name    string
		mutate  func(g *gifts.Gift)
		wantErr bool
	}{
		{name: "daily ok", mutate: func(*gifts.Gift) {}},
		{name: "no animals", mutate: func(g *gifts.Gift) { g.Animals = nil }, wantErr: true},
		{name: "no thumbnail", mutate: func(g *gifts.Gift) { g.ThumbnailURL = "" }, wantErr: true},
		{name: "daily with parents", mutate: func(g *gifts.Gift) { g.ParentIDs = []string{"a"} }, wantErr: true},
		{name: "fusion without parents", mutate: func(g *gifts.Gift) { g.Provenance = gifts.ProvenanceFusion }, wantErr: true},
		{name: "fusion ok", mutate: func(g *gifts.Gift) {
			g.Provenance = gifts.ProvenanceFusion
			g.ParentIDs = []string{"a", "b"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := base()
			tt.mutate(g)
			if err := g.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJobTransitions(t *testing.T) {
	tests := []struct {
		from, to gifts.JobStatus
		want     bool
	}{
		{gifts.JobPending, gifts.JobProcessing, true},
		{gifts.JobPending, gifts.JobCompleted, false},
		{gifts.JobProcessing, gifts.JobCompleted, true},
		{gifts.JobProcessing, gifts.JobFailed, true},
		{gifts.JobCompleted, gifts.JobFailed, false},
		{gifts.JobFailed, gifts.JobPending, false},
	}
	for _, tt := range tests {
		if got := gifts.CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	assert.True(t, gifts.JobFailed.Terminal())
	assert.False(t, gifts.JobProcessing.Terminal())
}

func TestRarityOrder(t *testing.T) {
	assert.True(t, gifts.RarityCommon.Less(gifts.RarityRare))
	assert.True(t, gifts.RarityRare.Less(gifts.RarityLegendary))
	assert.False(t, gifts.RarityLegendary.Less(gifts.RarityCommon))
}
