package mongostore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/nanopets/giftbot/internal/domain/gifts"
)

func mockStore(mt *mtest.T) *Store {
	return New(mt.Client, "giftbot")
}

func TestJobCompareAndSetStatus(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	id := primitive.NewObjectID()

	tests := []struct {
		name     string
		from, to gifts.JobStatus
		modified int
		want     bool
	}{
		{"claims pending job", gifts.JobPending, gifts.JobProcessing, 1, true},
		{"lost race", gifts.JobPending, gifts.JobProcessing, 0, false},
		{"fails processing job", gifts.JobProcessing, gifts.JobFailed, 1, true},
		{"already terminal", gifts.JobProcessing, gifts.JobFailed, 0, false},
	}

	for _, tt := range tests {
		mt.Run(tt.name, func(mt *mtest.T) {
			mt.AddMockResponses(mtest.CreateSuccessResponse(
				bson.E{Key: "n", Value: tt.modified},
				bson.E{Key: "nModified", Value: tt.modified},
			))

			ok, err := mockStore(mt).FusionJobs().CompareAndSetStatus(context.Background(), id.Hex(), tt.from, tt.to)
			require.NoError(mt, err)
			assert.Equal(mt, tt.want, ok)

			cmd := mt.GetStartedEvent().Command
			assert.Equal(mt, string(tt.from), cmd.Lookup("updates", "0", "q", "status").StringValue())
			assert.Equal(mt, string(tt.to), cmd.Lookup("updates", "0", "u", "$set", "status").StringValue())
		})
	}

	mt.Run("malformed id", func(mt *mtest.T) {
		ok, err := mockStore(mt).FusionJobs().CompareAndSetStatus(context.Background(), "nope", gifts.JobPending, gifts.JobProcessing)
		require.NoError(mt, err)
		assert.False(mt, ok)
	})
}

func TestJobComplete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	id, giftID := primitive.NewObjectID(), primitive.NewObjectID()

	tests := []struct {
		name     string
		modified int
		want     bool
	}{
		{"processing job completes", 1, true},
		{"job not processing", 0, false},
	}

	for _, tt := range tests {
		mt.Run(tt.name, func(mt *mtest.T) {
			mt.AddMockResponses(mtest.CreateSuccessResponse(
				bson.E{Key: "n", Value: tt.modified},
				bson.E{Key: "nModified", Value: tt.modified},
			))

			ok, err := mockStore(mt).FusionJobs().Complete(context.Background(), id.Hex(), giftID.Hex())
			require.NoError(mt, err)
			assert.Equal(mt, tt.want, ok)

			cmd := mt.GetStartedEvent().Command
			assert.Equal(mt, string(gifts.JobProcessing), cmd.Lookup("updates", "0", "q", "status").StringValue())
			assert.Equal(mt, giftID, cmd.Lookup("updates", "0", "u", "$set", "result_gift_id").ObjectID())
		})
	}
}

func TestDraftGetOpen(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	owner, requested := primitive.NewObjectID(), primitive.NewObjectID()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	draft := func(id primitive.ObjectID) bson.D {
		return bson.D{
			{Key: "_id", Value: id},
			{Key: "user_id", Value: owner},
			{Key: "options", Value: bson.A{bson.D{
				{Key: "animals", Value: bson.A{"cat"}},
				{Key: "accessories", Value: bson.A{"hat"}},
				{Key: "media_url", Value: "m"},
				{Key: "thumbnail_url", Value: "t"},
			}}},
			{Key: "expires_at", Value: created.Add(time.Hour)},
			{Key: "created_at", Value: created},
		}
	}

	mt.Run("latest draft", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "giftbot.pending_creations", mtest.FirstBatch, draft(requested)))

		got, err := mockStore(mt).Drafts().GetOpen(context.Background(), requested.Hex(), owner.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, requested.Hex(), got.ID)
		require.Len(mt, got.Candidates, 1)
		assert.Equal(mt, []string{"cat"}, got.Candidates[0].Animals)
	})

	mt.Run("superseded draft", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "giftbot.pending_creations", mtest.FirstBatch, draft(primitive.NewObjectID())))

		_, err := mockStore(mt).Drafts().GetOpen(context.Background(), requested.Hex(), owner.Hex())
		assert.ErrorIs(mt, err, gifts.ErrNotFound)
	})

	mt.Run("no drafts", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "giftbot.pending_creations", mtest.FirstBatch))

		_, err := mockStore(mt).Drafts().GetOpen(context.Background(), requested.Hex(), owner.Hex())
		assert.ErrorIs(mt, err, gifts.ErrNotFound)
	})
}

func TestUserFindOrCreate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	user := func(id primitive.ObjectID) bson.D {
		return bson.D{
			{Key: "_id", Value: id},
			{Key: "platform_id", Value: int64(42)},
			{Key: "handle", Value: "alice"},
			{Key: "style", Value: "kawaii"},
			{Key: "created_at", Value: created},
		}
	}

	mt.Run("upsert", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: user(id)}})

		got, err := mockStore(mt).Users().FindOrCreate(context.Background(), 42, "alice")
		require.NoError(mt, err)
		assert.Equal(mt, id.Hex(), got.ID)
		assert.Equal(mt, gifts.DefaultStyle, got.Style)
		assert.Nil(mt, got.LastDailyAt)
	})

	mt.Run("lost upsert race", func(mt *mtest.T) {
		winner := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11000, Message: "duplicate key"}),
			mtest.CreateCursorResponse(0, "giftbot.users", mtest.FirstBatch, user(winner)),
		)

		got, err := mockStore(mt).Users().FindOrCreate(context.Background(), 42, "alice")
		require.NoError(mt, err)
		assert.Equal(mt, winner.Hex(), got.ID)
	})
}
