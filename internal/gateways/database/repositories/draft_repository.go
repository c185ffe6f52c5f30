package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/nanopets/giftbot/internal/domain/gifts"
	"github.com/nanopets/giftbot/internal/gateways/database/models"
)

type draftRepository struct {
	db bun.IDB
}

func NewDraftRepository(db bun.IDB) gifts.DraftRepository {
	return &draftRepository{db: db}
}

func (r *draftRepository) Create(ctx context.Context, draft *gifts.Draft) error {
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now()
	}
	_, err := r.db.NewInsert().Model(models.DraftFromDomain(draft)).Exec(ctx)
	return translate("insert draft", err)
}

func (r *draftRepository) GetOpen(ctx context.Context, id, ownerID string) (*gifts.Draft, error) {
	var latest models.Draft
	err := r.db.NewSelect().
		Model(&latest).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translate("select draft", err)
	}
	if latest.ID != id {
		return nil, translate("select draft", gifts.ErrNotFound)
	}
	return models.DraftToDomain(&latest), nil
}

func (r *draftRepository) ReplaceCandidates(ctx context.Context, id, ownerID string, candidates []gifts.Candidate) error {
	payload, err := json.Marshal(models.CandidatesFromDomain(candidates))
	if err != nil {
		return err
	}
	res, err := r.db.NewUpdate().
		Model((*models.Draft)(nil)).
		Set("candidates = ?::jsonb", string(payload)).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Exec(ctx)
	if err != nil {
		return translate("update candidates", err)
	}
	if affected(res) == 0 {
		return translate("update candidates", gifts.ErrNotFound)
	}
	return nil
}

func (r *draftRepository) Delete(ctx context.Context, id, ownerID string) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.Draft)(nil)).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Exec(ctx)
	if err != nil {
		return 0, translate("delete draft", err)
	}
	return affected(res), nil
}

func (r *draftRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.Draft)(nil)).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return 0, translate("delete owner drafts", err)
	}
	return affected(res), nil
}

func (r *draftRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.Draft)(nil)).
		Where("expires_at <= ?", before).
		Exec(ctx)
	if err != nil {
		return 0, translate("delete expired drafts", err)
	}
	return affected(res), nil
}
