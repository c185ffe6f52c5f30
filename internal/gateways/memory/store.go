// Package memory is an in-process gifts.Store for tests and single-node runs.
// Transactions run against a private clone of the state under the store lock
// and replace the live state only when fn succeeds.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nanopets/giftbot/internal/domain/gifts"
)

type draftRow struct {
	draft gifts.Draft
	seq   uint64
}

type state struct {
	users      map[string]*gifts.User
	byPlatform map[int64]string
	gifts      map[string]*gifts.Gift
	drafts     map[string]*draftRow
	jobs       map[string]*gifts.FusionJob
	seq        uint64
}

func newState() *state {
	return &state{
		users:      make(map[string]*gifts.User),
		byPlatform: make(map[int64]string),
		gifts:      make(map[string]*gifts.Gift),
		drafts:     make(map[string]*draftRow),
		jobs:       make(map[string]*gifts.FusionJob),
	}
}

func (s *state) clone() *state {
	c := newState()
	c.seq = s.seq
	for k, v := range s.users {
		c.users[k] = copyUser(v)
	}
	for k, v := range s.byPlatform {
		c.byPlatform[k] = v
	}
	for k, v := range s.gifts {
		c.gifts[k] = copyGift(v)
	}
	for k, v := range s.drafts {
		c.drafts[k] = &draftRow{draft: *copyDraft(&v.draft), seq: v.seq}
	}
	for k, v := range s.jobs {
		c.jobs[k] = copyJob(v)
	}
	return c
}

type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

var _ gifts.Store = (*Store)(nil)

func New() *Store {
	return &Store{state: newState(), now: time.Now}
}

// NewWithClock lets tests control record timestamps.
func NewWithClock(now func() time.Time) *Store {
	return &Store{state: newState(), now: now}
}

func (s *Store) Users() gifts.UserRepository           { return &repos{store: s} }
func (s *Store) Gifts() gifts.GiftRepository           { return (&repos{store: s}).giftView() }
func (s *Store) Drafts() gifts.DraftRepository         { return (&repos{store: s}).draftView() }
func (s *Store) FusionJobs() gifts.FusionJobRepository { return (&repos{store: s}).jobView() }

// WithTransaction holds the store lock for the duration of fn. fn must only
// use the repositories it is handed.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos gifts.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txRepos{repos{store: s, tx: s.state.clone()}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.tx
	return nil
}

func (s *Store) Close() error { return nil }

type txRepos struct{ repos }

func (t *txRepos) Users() gifts.UserRepository           { return &t.repos }
func (t *txRepos) Gifts() gifts.GiftRepository           { return t.repos.giftView() }
func (t *txRepos) Drafts() gifts.DraftRepository         { return t.repos.draftView() }
func (t *txRepos) FusionJobs() gifts.FusionJobRepository { return t.repos.jobView() }

// repos implements every repository. Outside a transaction each call takes
// the store lock; inside one, tx is the private clone and the lock is held.
type repos struct {
	store *Store
	tx    *state
}

func (r *repos) do(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.tx != nil {
		return fn(r.tx)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn(r.store.state)
}

// Users

func (r *repos) FindOrCreate(ctx context.Context, platformID int64, handle string) (*gifts.User, error) {
	var out *gifts.User
	err := r.do(ctx, func(st *state) error {
		if id, ok := st.byPlatform[platformID]; ok {
			out = copyUser(st.users[id])
			return nil
		}
		user := &gifts.User{
			ID:         uuid.NewString(),
			PlatformID: platformID,
			Handle:     handle,
			Style:      gifts.DefaultStyle,
			CreatedAt:  r.store.now(),
		}
		st.users[user.ID] = user
		st.byPlatform[platformID] = user.ID
		out = copyUser(user)
		return nil
	})
	return out, err
}

func (r *repos) GetByID(ctx context.Context, id string) (*gifts.User, error) {
	var out *gifts.User
	err := r.do(ctx, func(st *state) error {
		user, ok := st.users[id]
		if !ok {
			return gifts.ErrNotFound
		}
		out = copyUser(user)
		return nil
	})
	return out, err
}

func (r *repos) SetStyle(ctx context.Context, id string, style gifts.Style) error {
	return r.do(ctx, func(st *state) error {
		user, ok := st.users[id]
		if !ok {
			return gifts.ErrNotFound
		}
		user.Style = style
		return nil
	})
}

func (r *repos) SetLastDailyAt(ctx context.Context, id string, at time.Time) error {
	return r.do(ctx, func(st *state) error {
		user, ok := st.users[id]
		if !ok {
			return gifts.ErrNotFound
		}
		user.LastDailyAt = &at
		return nil
	})
}

// Gifts, drafts and jobs share method names, so they live on dedicated views.

func (r *repos) giftView() *giftRepo   { return &giftRepo{r} }
func (r *repos) draftView() *draftRepo { return &draftRepo{r} }
func (r *repos) jobView() *jobRepo     { return &jobRepo{r} }

type giftRepo struct{ *repos }
type draftRepo struct{ *repos }
type jobRepo struct{ *repos }

func (g *giftRepo) Create(ctx context.Context, gift *gifts.Gift) error {
	return g.do(ctx, func(st *state) error {
		if gift.ID == "" {
			gift.ID = uuid.NewString()
		}
		if gift.CreatedAt.IsZero() {
			gift.CreatedAt = g.store.now()
		}
		if _, exists := st.gifts[gift.ID]; exists {
			return gifts.ErrConflict
		}
		st.seq++
		st.gifts[gift.ID] = copyGift(gift)
		return nil
	})
}

func (g *giftRepo) GetOwned(ctx context.Context, id, ownerID string) (*gifts.Gift, error) {
	var out *gifts.Gift
	err := g.do(ctx, func(st *state) error {
		gift, ok := st.gifts[id]
		if !ok || gift.OwnerID != ownerID {
			return gifts.ErrNotFound
		}
		out = copyGift(gift)
		return nil
	})
	return out, err
}

func (g *giftRepo) ListOwned(ctx context.Context, ownerID string) ([]*gifts.Gift, error) {
	var out []*gifts.Gift
	err := g.do(ctx, func(st *state) error {
		for _, gift := range st.gifts {
			if gift.OwnerID == ownerID {
				out = append(out, copyGift(gift))
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, err
}

func (g *giftRepo) ListOwnedByIDs(ctx context.Context, ownerID string, ids []string) ([]*gifts.Gift, error) {
	var out []*gifts.Gift
	err := g.do(ctx, func(st *state) error {
		for _, id := range ids {
			if gift, ok := st.gifts[id]; ok && gift.OwnerID == ownerID {
				out = append(out, copyGift(gift))
			}
		}
		return nil
	})
	return out, err
}

func (g *giftRepo) DeleteOwned(ctx context.Context, ownerID string, ids []string) (int64, error) {
	var n int64
	err := g.do(ctx, func(st *state) error {
		for _, id := range ids {
			if gift, ok := st.gifts[id]; ok && gift.OwnerID == ownerID {
				delete(st.gifts, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (d *draftRepo) Create(ctx context.Context, draft *gifts.Draft) error {
	return d.do(ctx, func(st *state) error {
		if draft.ID == "" {
			draft.ID = uuid.NewString()
		}
		if draft.CreatedAt.IsZero() {
			draft.CreatedAt = d.store.now()
		}
		if _, exists := st.drafts[draft.ID]; exists {
			return gifts.ErrConflict
		}
		st.seq++
		st.drafts[draft.ID] = &draftRow{draft: *copyDraft(draft), seq: st.seq}
		return nil
	})
}

func (d *draftRepo) GetOpen(ctx context.Context, id, ownerID string) (*gifts.Draft, error) {
	var out *gifts.Draft
	err := d.do(ctx, func(st *state) error {
		row, ok := st.drafts[id]
		if !ok || row.draft.OwnerID != ownerID {
			return gifts.ErrNotFound
		}
		for _, other := range st.drafts {
			if other.draft.OwnerID == ownerID && other.seq > row.seq {
				return gifts.ErrNotFound
			}
		}
		out = copyDraft(&row.draft)
		return nil
	})
	return out, err
}

func (d *draftRepo) ReplaceCandidates(ctx context.Context, id, ownerID string, candidates []gifts.Candidate) error {
	return d.do(ctx, func(st *state) error {
		row, ok := st.drafts[id]
		if !ok || row.draft.OwnerID != ownerID {
			return gifts.ErrNotFound
		}
		row.draft.Candidates = copyCandidates(candidates)
		return nil
	})
}

func (d *draftRepo) Delete(ctx context.Context, id, ownerID string) (int64, error) {
	var n int64
	err := d.do(ctx, func(st *state) error {
		if row, ok := st.drafts[id]; ok && row.draft.OwnerID == ownerID {
			delete(st.drafts, id)
			n = 1
		}
		return nil
	})
	return n, err
}

func (d *draftRepo) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := d.do(ctx, func(st *state) error {
		for id, row := range st.drafts {
			if row.draft.OwnerID == ownerID {
				delete(st.drafts, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (d *draftRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := d.do(ctx, func(st *state) error {
		for id, row := range st.drafts {
			if !before.Before(row.draft.ExpiresAt) {
				delete(st.drafts, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (j *jobRepo) Create(ctx context.Context, job *gifts.FusionJob) error {
	return j.do(ctx, func(st *state) error {
		if job.ID == "" {
			job.ID = uuid.NewString()
		}
		now := j.store.now()
		if job.CreatedAt.IsZero() {
			job.CreatedAt = now
		}
		job.UpdatedAt = now
		if _, exists := st.jobs[job.ID]; exists {
			return gifts.ErrConflict
		}
		st.jobs[job.ID] = copyJob(job)
		return nil
	})
}

func (j *jobRepo) GetOwned(ctx context.Context, id, ownerID string) (*gifts.FusionJob, error) {
	var out *gifts.FusionJob
	err := j.do(ctx, func(st *state) error {
		job, ok := st.jobs[id]
		if !ok || job.OwnerID != ownerID {
			return gifts.ErrNotFound
		}
		out = copyJob(job)
		return nil
	})
	return out, err
}

func (j *jobRepo) CompareAndSetStatus(ctx context.Context, id string, from, to gifts.JobStatus) (bool, error) {
	var swapped bool
	err := j.do(ctx, func(st *state) error {
		job, ok := st.jobs[id]
		if !ok || job.Status != from {
			return nil
		}
		job.Status = to
		job.UpdatedAt = j.store.now()
		swapped = true
		return nil
	})
	return swapped, err
}

func (j *jobRepo) Complete(ctx context.Context, id, resultGiftID string) (bool, error) {
	var done bool
	err := j.do(ctx, func(st *state) error {
		job, ok := st.jobs[id]
		if !ok || job.Status != gifts.JobProcessing {
			return nil
		}
		job.Status = gifts.JobCompleted
		job.ResultGiftID = resultGiftID
		job.UpdatedAt = j.store.now()
		done = true
		return nil
	})
	return done, err
}

func copyUser(u *gifts.User) *gifts.User {
	c := *u
	if u.LastDailyAt != nil {
		at := *u.LastDailyAt
		c.LastDailyAt = &at
	}
	return &c
}

func copyGift(g *gifts.Gift) *gifts.Gift {
	c := *g
	c.Animals = slices.Clone(g.Animals)
	c.Accessories = slices.Clone(g.Accessories)
	c.ParentIDs = slices.Clone(g.ParentIDs)
	return &c
}

func copyDraft(d *gifts.Draft) *gifts.Draft {
	c := *d
	c.Candidates = copyCandidates(d.Candidates)
	return &c
}

func copyCandidates(in []gifts.Candidate) []gifts.Candidate {
	if in == nil {
		return nil
	}
	out := make([]gifts.Candidate, len(in))
	for i, cand := range in {
		cand.Animals = slices.Clone(cand.Animals)
		cand.Accessories = slices.Clone(cand.Accessories)
		out[i] = cand
	}
	return out
}

func copyJob(j *gifts.FusionJob) *gifts.FusionJob {
	c := *j
	c.ParentIDs = slices.Clone(j.ParentIDs)
	return &c
}
