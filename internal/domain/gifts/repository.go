package gifts

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for missing records and for records the caller does not own.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a uniqueness constraint is violated.
	ErrConflict = errors.New("record conflict")
)

type UserRepository interface {
	// FindOrCreate returns the user for platformID, creating it with the
	// default style when absent. Concurrent calls never create duplicates.
	FindOrCreate(ctx context.Context, platformID int64, handle string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	SetStyle(ctx context.Context, id string, style Style) error
	SetLastDailyAt(ctx context.Context, id string, at time.Time) error
}

type GiftRepository interface {
	// Create assigns ID and CreatedAt when empty.
	Create(ctx context.Context, gift *Gift) error
	GetOwned(ctx context.Context, id, ownerID string) (*Gift, error)
	// ListOwned returns the owner's gifts, newest first.
	ListOwned(ctx context.Context, ownerID string) ([]*Gift, error)
	// ListOwnedByIDs returns the subset of ids that exist and belong to ownerID.
	ListOwnedByIDs(ctx context.Context, ownerID string, ids []string) ([]*Gift, error)
	// DeleteOwned deletes the owner's gifts among ids and reports how many went.
	DeleteOwned(ctx context.Context, ownerID string, ids []string) (int64, error)
}

type DraftRepository interface {
	Create(ctx context.Context, draft *Draft) error
	// GetOpen returns the draft only when it belongs to ownerID and is the
	// owner's most recently created draft.
	GetOpen(ctx context.Context, id, ownerID string) (*Draft, error)
	ReplaceCandidates(ctx context.Context, id, ownerID string, candidates []Candidate) error
	Delete(ctx context.Context, id, ownerID string) (int64, error)
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type FusionJobRepository interface {
	Create(ctx context.Context, job *FusionJob) error
	GetOwned(ctx context.Context, id, ownerID string) (*FusionJob, error)
	// CompareAndSetStatus moves the job from -> to atomically and reports
	// whether this caller performed the transition.
	CompareAndSetStatus(ctx context.Context, id string, from, to JobStatus) (bool, error)
	// Complete moves a processing job to completed with its result.
	Complete(ctx context.Context, id, resultGiftID string) (bool, error)
}

type Repositories interface {
	Users() UserRepository
	Gifts() GiftRepository
	Drafts() DraftRepository
	FusionJobs() FusionJobRepository
}

// Store is the durable record store. Repositories handed to fn share one
// transaction; an error from fn rolls every write back.
type Store interface {
	Repositories
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Close() error
}
