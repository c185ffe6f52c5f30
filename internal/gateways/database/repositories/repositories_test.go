package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/nanopets/giftbot/internal/domain/gifts"
)

func newMockDB(t *testing.T) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func TestFusionJobCompareAndSetStatus(t *testing.T) {
	tests := []struct {
		name     string
		from, to gifts.JobStatus
		rows     int64
		want     bool
	}{
		{"claims pending job", gifts.JobPending, gifts.JobProcessing, 1, true},
		{"lost race", gifts.JobPending, gifts.JobProcessing, 0, false},
		{"fails processing job", gifts.JobProcessing, gifts.JobFailed, 1, true},
		{"already terminal", gifts.JobProcessing, gifts.JobFailed, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectExec(`UPDATE "fusion_jobs" .*SET status = '` + string(tt.to) + `', updated_at = .*` +
				`WHERE \(id = 'job-1' AND status = '` + string(tt.from) + `'\)`).
				WillReturnResult(sqlmock.NewResult(0, tt.rows))

			ok, err := NewFusionJobRepository(db).CompareAndSetStatus(context.Background(), "job-1", tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestFusionJobComplete(t *testing.T) {
	tests := []struct {
		name string
		rows int64
		want bool
	}{
		{"processing job completes", 1, true},
		{"job not processing", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectExec(`UPDATE "fusion_jobs" .*SET status = 'completed', result_gift_id = 'gift-9'.*` +
				`WHERE \(id = 'job-1' AND status = 'processing'\)`).
				WillReturnResult(sqlmock.NewResult(0, tt.rows))

			ok, err := NewFusionJobRepository(db).Complete(context.Background(), "job-1", "gift-9")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestFusionJobUpdateError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE "fusion_jobs"`).WillReturnError(errors.New("connection reset"))

	ok, err := NewFusionJobRepository(db).CompareAndSetStatus(context.Background(), "job-1", gifts.JobPending, gifts.JobProcessing)
	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection reset")
	assert.False(t, errors.Is(err, gifts.ErrNotFound))
}

func TestDraftGetOpen(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	columns := []string{"id", "owner_id", "candidates", "expires_at", "created_at"}

	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		wantErr error
	}{
		{
			name: "latest draft",
			rows: sqlmock.NewRows(columns).
				AddRow("d-2", "u-1", []byte(`[{"animals":["cat"],"accessories":["hat"],"media_url":"m","thumbnail_url":"t"}]`), created.Add(time.Hour), created),
		},
		{
			name:    "superseded draft",
			rows:    sqlmock.NewRows(columns).AddRow("d-3", "u-1", []byte(`[]`), created.Add(time.Hour), created),
			wantErr: gifts.ErrNotFound,
		},
		{
			name:    "no drafts",
			rows:    sqlmock.NewRows(columns),
			wantErr: gifts.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectQuery(`SELECT .* FROM "pending_creations" AS "pc" WHERE \(owner_id = 'u-1'\) ` +
				`ORDER BY "?created_at"? DESC, "?id"? DESC LIMIT 1`).
				WillReturnRows(tt.rows)

			draft, err := NewDraftRepository(db).GetOpen(context.Background(), "d-2", "u-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "d-2", draft.ID)
			require.Len(t, draft.Candidates, 1)
			assert.Equal(t, []string{"cat"}, draft.Candidates[0].Animals)
		})
	}
}

func TestUserFindOrCreate(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	columns := []string{"id", "platform_id", "handle", "style", "last_daily_at", "created_at"}

	tests := []struct {
		name     string
		inserted *sqlmock.Rows
		existing string
	}{
		{"first sight", sqlmock.NewRows([]string{"last_daily_at"}).AddRow(nil), "u-new"},
		{"lost insert race", sqlmock.NewRows([]string{"last_daily_at"}), "u-winner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			// a conflicting insert returns no rows and must not fail the call
			mock.ExpectQuery(`INSERT INTO "users" .*ON CONFLICT \(platform_id\) DO NOTHING`).
				WillReturnRows(tt.inserted)
			mock.ExpectQuery(`SELECT .* FROM "users" AS "u" WHERE \(platform_id = 42\)`).
				WillReturnRows(sqlmock.NewRows(columns).AddRow(tt.existing, int64(42), "alice", "kawaii", nil, created))

			user, err := NewUserRepository(db).FindOrCreate(context.Background(), 42, "alice")
			require.NoError(t, err)
			assert.Equal(t, tt.existing, user.ID)
			assert.Equal(t, int64(42), user.PlatformID)
			assert.Equal(t, gifts.DefaultStyle, user.Style)
			assert.Nil(t, user.LastDailyAt)
		})
	}
}

func TestUserSetStyleMissing(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE "users" .*SET style = 'realistic' WHERE \(id = 'u-1'\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewUserRepository(db).SetStyle(context.Background(), "u-1", gifts.StyleRealistic)
	assert.ErrorIs(t, err, gifts.ErrNotFound)
}
