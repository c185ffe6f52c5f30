package database

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/nanopets/giftbot/internal/domain/gifts"
	"github.com/nanopets/giftbot/internal/gateways/database/repositories"
)

type repos struct {
	users  gifts.UserRepository
	gifts  gifts.GiftRepository
	drafts gifts.DraftRepository
	jobs   gifts.FusionJobRepository
}

func newRepos(db bun.IDB) *repos {
	return &repos{
		users:  repositories.NewUserRepository(db),
		gifts:  repositories.NewGiftRepository(db),
		drafts: repositories.NewDraftRepository(db),
		jobs:   repositories.NewFusionJobRepository(db),
	}
}

func (r *repos) Users() gifts.UserRepository           { return r.users }
func (r *repos) Gifts() gifts.GiftRepository           { return r.gifts }
func (r *repos) Drafts() gifts.DraftRepository         { return r.drafts }
func (r *repos) FusionJobs() gifts.FusionJobRepository { return r.jobs }

// Store is the Postgres gifts.Store.
type Store struct {
	*repos
	db *DB
	tm *TxManager
}

var _ gifts.Store = (*Store)(nil)

func NewStore(db *DB) *Store {
	return &Store{
		repos: newRepos(db.BunDB()),
		db:    db,
		tm:    NewTxManager(db.BunDB()),
	}
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos gifts.Repositories) error) error {
	return s.tm.WithTransaction(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, newRepos(tx))
	})
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}
