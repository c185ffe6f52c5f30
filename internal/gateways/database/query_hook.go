package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/nanopets/giftbot/giftbot/logger"
)

// queryHook logs every bun query at debug level, failures at error level.
type queryHook struct{}

var _ bun.QueryHook = queryHook{}

func (queryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (queryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	err := event.Err
	if errors.Is(err, sql.ErrNoRows) {
		// a miss is an answer, not a failure
		err = nil
	}
	logger.LogQuery(event.Query, time.Since(event.StartTime), err)
}
