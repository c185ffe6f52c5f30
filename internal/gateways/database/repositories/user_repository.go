package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/nanopets/giftbot/internal/domain/gifts"
	"github.com/nanopets/giftbot/internal/gateways/database/models"
)

type userRepository struct {
	db bun.IDB
}

// NewUserRepository works on a *bun.DB or a bun.Tx.
func NewUserRepository(db bun.IDB) gifts.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindOrCreate(ctx context.Context, platformID int64, handle string) (*gifts.User, error) {
	user := &models.User{
		ID:         uuid.NewString(),
		PlatformID: platformID,
		Handle:     handle,
		Style:      string(gifts.DefaultStyle),
		CreatedAt:  time.Now(),
	}
	_, err := r.db.NewInsert().
		Model(user).
		On("CONFLICT (platform_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, translate("insert user", err)
	}

	var existing models.User
	err = r.db.NewSelect().
		Model(&existing).
		Where("platform_id = ?", platformID).
		Scan(ctx)
	if err != nil {
		return nil, translate("select user", err)
	}
	return models.UserToDomain(&existing), nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*gifts.User, error) {
	var user models.User
	err := r.db.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, translate("select user", err)
	}
	return models.UserToDomain(&user), nil
}

func (r *userRepository) SetStyle(ctx context.Context, id string, style gifts.Style) error {
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("style = ?", string(style)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return translate("update style", err)
	}
	if affected(res) == 0 {
		return translate("update style", gifts.ErrNotFound)
	}
	return nil
}

func (r *userRepository) SetLastDailyAt(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("last_daily_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return translate("update last daily", err)
	}
	if affected(res) == 0 {
		return translate("update last daily", gifts.ErrNotFound)
	}
	return nil
}
