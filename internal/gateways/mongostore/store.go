// Package mongostore is the MongoDB gifts.Store. Multi-record commits use
// session transactions, which need a replica set or sharded cluster.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nanopets/giftbot/internal/domain/gifts"
)

const (
	collUsers  = "users"
	collGifts  = "gifts"
	collDrafts = "pending_creations"
	collJobs   = "fusion_jobs"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

var _ gifts.Store = (*Store)(nil)

func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return New(client, database), nil
}

func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database), now: time.Now}
}

func (s *Store) Users() gifts.UserRepository           { return &userRepo{s} }
func (s *Store) Gifts() gifts.GiftRepository           { return &giftRepo{s} }
func (s *Store) Drafts() gifts.DraftRepository         { return &draftRepo{s} }
func (s *Store) FusionJobs() gifts.FusionJobRepository { return &jobRepo{s} }

// WithTransaction runs fn in a session transaction. The repositories are the
// store's own; the session travels in the context fn receives.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos gifts.Repositories) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc, s)
	})
	return err
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// EnsureIndexes creates the indexes the repositories rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		collUsers: {
			{Keys: bson.D{{Key: "platform_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collGifts: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		collDrafts: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
		collJobs: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
	}

	for coll, models := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll, err)
		}
	}
	slog.Info("Mongo indexes ensured", slog.String("type", "db"))
	return nil
}

func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", op, gifts.ErrNotFound)
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, gifts.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func newID(id string) (primitive.ObjectID, error) {
	if id == "" {
		return primitive.NewObjectID(), nil
	}
	return primitive.ObjectIDFromHex(id)
}

type userRepo struct{ s *Store }

func (r *userRepo) coll() *mongo.Collection { return r.s.db.Collection(collUsers) }

func (r *userRepo) FindOrCreate(ctx context.Context, platformID int64, handle string) (*gifts.User, error) {
	filter := bson.M{"platform_id": platformID}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":         primitive.NewObjectID(),
		"platform_id": platformID,
		"handle":      handle,
		"style":       string(gifts.DefaultStyle),
		"created_at":  r.s.now(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc userDoc
	err := r.coll().FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// lost an upsert race; the winner's document is there now
		err = r.coll().FindOne(ctx, filter).Decode(&doc)
	}
	if err != nil {
		return nil, translate("find or create user", err)
	}
	return doc.toDomain(), nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*gifts.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var doc userDoc
	if err := r.coll().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, translate("get user", err)
	}
	return doc.toDomain(), nil
}

func (r *userRepo) set(ctx context.Context, id string, fields bson.M) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := r.coll().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": fields})
	if err != nil {
		return translate("update user", err)
	}
	if res.MatchedCount == 0 {
		return gifts.ErrNotFound
	}
	return nil
}

func (r *userRepo) SetStyle(ctx context.Context, id string, style gifts.Style) error {
	return r.set(ctx, id, bson.M{"style": string(style)})
}

func (r *userRepo) SetLastDailyAt(ctx context.Context, id string, at time.Time) error {
	return r.set(ctx, id, bson.M{"last_daily_at": at})
}

type giftRepo struct{ s *Store }

func (r *giftRepo) coll() *mongo.Collection { return r.s.db.Collection(collGifts) }

func (r *giftRepo) Create(ctx context.Context, gift *gifts.Gift) error {
	oid, err := newID(gift.ID)
	if err != nil {
		return fmt.Errorf("invalid gift id %q: %w", gift.ID, err)
	}
	owner, err := parseID(gift.OwnerID)
	if err != nil {
		return err
	}
	if gift.CreatedAt.IsZero() {
		gift.CreatedAt = r.s.now()
	}

	doc := giftDoc{
		ID:           oid,
		OwnerID:      owner,
		Animals:      gift.Animals,
		Accessories:  gift.Accessories,
		Rarity:       string(gift.Rarity),
		MediaURL:     gift.MediaURL,
		ThumbnailURL: gift.ThumbnailURL,
		Provenance:   string(gift.Provenance),
		ParentIDs:    parseIDs(gift.ParentIDs),
		CreatedAt:    gift.CreatedAt,
	}
	if _, err := r.coll().InsertOne(ctx, doc); err != nil {
		return translate("insert gift", err)
	}
	gift.ID = oid.Hex()
	return nil
}

func (r *giftRepo) GetOwned(ctx context.Context, id, ownerID string) (*gifts.Gift, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	owner, err := parseID(ownerID)
	if err != nil {
		return nil, err
	}
	var doc giftDoc
	if err := r.coll().FindOne(ctx, bson.M{"_id": oid, "owner_id": owner}).Decode(&doc); err != nil {
		return nil, translate("get gift", err)
	}
	return doc.toDomain(), nil
}

func (r *giftRepo) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*gifts.Gift, error) {
	cur, err := r.coll().Find(ctx, filter, opts...)
	if err != nil {
		return nil, translate("find gifts", err)
	}
	var docs []giftDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate("decode gifts", err)
	}
	out := make([]*gifts.Gift, len(docs))
	for i := range docs {
		out[i] = docs[i].toDomain()
	}
	return out, nil
}

func (r *giftRepo) ListOwned(ctx context.Context, ownerID string) ([]*gifts.Gift, error) {
	owner, err := parseID(ownerID)
	if err != nil {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	return r.find(ctx, bson.M{"owner_id": owner}, opts)
}

func (r *giftRepo) ListOwnedByIDs(ctx context.Context, ownerID string, ids []string) ([]*gifts.Gift, error) {
	owner, err := parseID(ownerID)
	if err != nil {
		return nil, nil
	}
	oids := parseIDs(ids)
	if len(oids) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"owner_id": owner, "_id": bson.M{"$in": oids}})
}

func (r *giftRepo) DeleteOwned(ctx context.Context, ownerID string, ids []string) (int64, error) {
	owner, err := parseID(ownerID)
	if err != nil {
		return 0, nil
	}
	oids := parseIDs(ids)
	if len(oids) == 0 {
		return 0, nil
	}
	res, err := r.coll().DeleteMany(ctx, bson.M{"owner_id": owner, "_id": bson.M{"$in": oids}})
	if err != nil {
		return 0, translate("delete gifts", err)
	}
	return res.DeletedCount, nil
}

type draftRepo struct{ s *Store }

func (r *draftRepo) coll() *mongo.Collection { return r.s.db.Collection(collDrafts) }

func (r *draftRepo) Create(ctx context.Context, draft *gifts.Draft) error {
	oid, err := newID(draft.ID)
	if err != nil {
		return fmt.Errorf("invalid draft id %q: %w", draft.ID, err)
	}
	owner, err := parseID(draft.OwnerID)
	if err != nil {
		return err
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = r.s.now()
	}
	doc := draftDoc{
		ID:         oid,
		OwnerID:    owner,
		Candidates: candidatesToDocs(draft.Candidates),
		ExpiresAt:  draft.ExpiresAt,
		CreatedAt:  draft.CreatedAt,
	}
	if _, err := r.coll().InsertOne(ctx, doc); err != nil {
		return translate("insert draft", err)
	}
	draft.ID = oid.Hex()
	return nil
}

func (r *draftRepo) GetOpen(ctx context.Context, id, ownerID string) (*gifts.Draft, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	owner, err := parseID(ownerID)
	if err != nil {
		return nil, err
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	var doc draftDoc
	if err := r.coll().FindOne(ctx, bson.M{"user_id": owner}, opts).Decode(&doc); err != nil {
		return nil, translate("get draft", err)
	}
	if doc.ID != oid {
		return nil, gifts.ErrNotFound
	}
	return doc.toDomain(), nil
}

func (r *draftRepo) ReplaceCandidates(ctx context.Context, id, ownerID string, candidates []gifts.Candidate) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	owner, err := parseID(ownerID)
	if err != nil {
		return err
	}
	res, err := r.coll().UpdateOne(ctx,
		bson.M{"_id": oid, "user_id": owner},
		bson.M{"$set": bson.M{"options": candidatesToDocs(candidates)}})
	if err != nil {
		return translate("update draft", err)
	}
	if res.MatchedCount == 0 {
		return gifts.ErrNotFound
	}
	return nil
}

func (r *draftRepo) Delete(ctx context.Context, id, ownerID string) (int64, error) {
	oid, err := parseID(id)
	if err != nil {
		return 0, nil
	}
	owner, err := parseID(ownerID)
	if err != nil {
		return 0, nil
	}
	res, err := r.coll().DeleteOne(ctx, bson.M{"_id": oid, "user_id": owner})
	if err != nil {
		return 0, translate("delete draft", err)
	}
	return res.DeletedCount, nil
}

func (r *draftRepo) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	owner, err := parseID(ownerID)
	if err != nil {
		return 0, nil
	}
	res, err := r.coll().DeleteMany(ctx, bson.M{"user_id": owner})
	if err != nil {
		return 0, translate("delete drafts", err)
	}
	return res.DeletedCount, nil
}

func (r *draftRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.coll().DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": before}})
	if err != nil {
		return 0, translate("delete expired drafts", err)
	}
	return res.DeletedCount, nil
}

type jobRepo struct{ s *Store }

func (r *jobRepo) coll() *mongo.Collection { return r.s.db.Collection(collJobs) }

func (r *jobRepo) Create(ctx context.Context, job *gifts.FusionJob) error {
	oid, err := newID(job.ID)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", job.ID, err)
	}
	owner, err := parseID(job.OwnerID)
	if err != nil {
		return err
	}
	now := r.s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	doc := fusionJobDoc{
		ID:        oid,
		OwnerID:   owner,
		ParentIDs: parseIDs(job.ParentIDs),
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if _, err := r.coll().InsertOne(ctx, doc); err != nil {
		return translate("insert fusion job", err)
	}
	job.ID = oid.Hex()
	return nil
}

func (r *jobRepo) GetOwned(ctx context.Context, id, ownerID string) (*gifts.FusionJob, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	owner, err := parseID(ownerID)
	if err != nil {
		return nil, err
	}
	var doc fusionJobDoc
	if err := r.coll().FindOne(ctx, bson.M{"_id": oid, "user_id": owner}).Decode(&doc); err != nil {
		return nil, translate("get fusion job", err)
	}
	return doc.toDomain(), nil
}

func (r *jobRepo) CompareAndSetStatus(ctx context.Context, id string, from, to gifts.JobStatus) (bool, error) {
	oid, err := parseID(id)
	if err != nil {
		return false, nil
	}
	res, err := r.coll().UpdateOne(ctx,
		bson.M{"_id": oid, "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updated_at": r.s.now()}})
	if err != nil {
		return false, translate("update fusion job", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *jobRepo) Complete(ctx context.Context, id, resultGiftID string) (bool, error) {
	oid, err := parseID(id)
	if err != nil {
		return false, nil
	}
	result, err := parseID(resultGiftID)
	if err != nil {
		return false, err
	}
	res, err := r.coll().UpdateOne(ctx,
		bson.M{"_id": oid, "status": string(gifts.JobProcessing)},
		bson.M{"$set": bson.M{
			"status":         string(gifts.JobCompleted),
			"result_gift_id": result,
			"updated_at":     r.s.now(),
		}})
	if err != nil {
		return false, translate("complete fusion job", err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}
