package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/nanopets/giftbot/internal/domain/gifts"
	"github.com/nanopets/giftbot/internal/gateways/database/models"
)

type fusionJobRepository struct {
	db bun.IDB
}

func NewFusionJobRepository(db bun.IDB) gifts.FusionJobRepository {
	return &fusionJobRepository{db: db}
}

func (r *fusionJobRepository) Create(ctx context.Context, job *gifts.FusionJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	_, err := r.db.NewInsert().Model(models.FusionJobFromDomain(job)).Exec(ctx)
	return translate("insert fusion job", err)
}

func (r *fusionJobRepository) GetOwned(ctx context.Context, id, ownerID string) (*gifts.FusionJob, error) {
	var job models.FusionJob
	err := r.db.NewSelect().
		Model(&job).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Scan(ctx)
	if err != nil {
		return nil, translate("select fusion job", err)
	}
	return models.FusionJobToDomain(&job), nil
}

func (r *fusionJobRepository) CompareAndSetStatus(ctx context.Context, id string, from, to gifts.JobStatus) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.FusionJob)(nil)).
		Set("status = ?", string(to)).
		Set("updated_at = ?", time.Now()).
		Where("id = ? AND status = ?", id, string(from)).
		Exec(ctx)
	if err != nil {
		return false, translate("update fusion job status", err)
	}
	return affected(res) == 1, nil
}

func (r *fusionJobRepository) Complete(ctx context.Context, id, resultGiftID string) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.FusionJob)(nil)).
		Set("status = ?", string(gifts.JobCompleted)).
		Set("result_gift_id = ?", resultGiftID).
		Set("updated_at = ?", time.Now()).
		Where("id = ? AND status = ?", id, string(gifts.JobProcessing)).
		Exec(ctx)
	if err != nil {
		return false, translate("complete fusion job", err)
	}
	return affected(res) == 1, nil
}
