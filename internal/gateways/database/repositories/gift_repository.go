package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/nanopets/giftbot/internal/domain/gifts"
	"github.com/nanopets/giftbot/internal/gateways/database/models"
)

type giftRepository struct {
	db bun.IDB
}

func NewGiftRepository(db bun.IDB) gifts.GiftRepository {
	return &giftRepository{db: db}
}

func (r *giftRepository) Create(ctx context.Context, gift *gifts.Gift) error {
	if gift.ID == "" {
		gift.ID = uuid.NewString()
	}
	if gift.CreatedAt.IsZero() {
		gift.CreatedAt = time.Now()
	}
	_, err := r.db.NewInsert().Model(models.GiftFromDomain(gift)).Exec(ctx)
	return translate("insert gift", err)
}

func (r *giftRepository) GetOwned(ctx context.Context, id, ownerID string) (*gifts.Gift, error) {
	var gift models.Gift
	err := r.db.NewSelect().
		Model(&gift).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Scan(ctx)
	if err != nil {
		return nil, translate("select gift", err)
	}
	return models.GiftToDomain(&gift), nil
}

func (r *giftRepository) ListOwned(ctx context.Context, ownerID string) ([]*gifts.Gift, error) {
	var rows []*models.Gift
	err := r.db.NewSelect().
		Model(&rows).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, translate("list gifts", err)
	}
	return toDomainGifts(rows), nil
}

func (r *giftRepository) ListOwnedByIDs(ctx context.Context, ownerID string, ids []string) ([]*gifts.Gift, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []*models.Gift
	err := r.db.NewSelect().
		Model(&rows).
		Where("owner_id = ? AND id IN (?)", ownerID, bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, translate("list gifts by id", err)
	}
	return toDomainGifts(rows), nil
}

func (r *giftRepository) DeleteOwned(ctx context.Context, ownerID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.NewDelete().
		Model((*models.Gift)(nil)).
		Where("owner_id = ? AND id IN (?)", ownerID, bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return 0, translate("delete gifts", err)
	}
	return affected(res), nil
}

func toDomainGifts(rows []*models.Gift) []*gifts.Gift {
	out := make([]*gifts.Gift, len(rows))
	for i, row := range rows {
		out[i] = models.GiftToDomain(row)
	}
	return out
}
