package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nanopets/giftbot/internal/domain/gifts"
)

type userDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	PlatformID  int64              `bson:"platform_id"`
	Handle      string             `bson:"handle,omitempty"`
	Style       string             `bson:"style"`
	LastDailyAt *time.Time         `bson:"last_daily_at,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
}

type giftDoc struct {
	ID           primitive.ObjectID   `bson:"_id"`
	OwnerID      primitive.ObjectID   `bson:"owner_id"`
	Animals      []string             `bson:"animals"`
	Accessories  []string             `bson:"accessories"`
	Rarity       string               `bson:"rarity"`
	MediaURL     string               `bson:"media_url"`
	ThumbnailURL string               `bson:"thumbnail_url"`
	Provenance   string               `bson:"created_from"`
	ParentIDs    []primitive.ObjectID `bson:"parent_ids,omitempty"`
	CreatedAt    time.Time            `bson:"created_at"`
}

type candidateDoc struct {
	Animals      []string `bson:"animals"`
	Accessories  []string `bson:"accessories"`
	MediaURL     string   `bson:"media_url"`
	ThumbnailURL string   `bson:"thumbnail_url"`
}

type draftDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	OwnerID    primitive.ObjectID `bson:"user_id"`
	Candidates []candidateDoc     `bson:"options"`
	ExpiresAt  time.Time          `bson:"expires_at"`
	CreatedAt  time.Time          `bson:"created_at"`
}

type fusionJobDoc struct {
	ID           primitive.ObjectID   `bson:"_id"`
	OwnerID      primitive.ObjectID   `bson:"user_id"`
	ParentIDs    []primitive.ObjectID `bson:"input_gift_ids"`
	Status       string               `bson:"status"`
	ResultGiftID *primitive.ObjectID  `bson:"result_gift_id,omitempty"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

// parseID turns a domain ID into an ObjectID. Malformed IDs cannot name a
// stored record, so they read as not found.
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, gifts.ErrNotFound
	}
	return oid, nil
}

// parseIDs drops malformed IDs.
func parseIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

func hexIDs(ids []primitive.ObjectID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}

func (d *userDoc) toDomain() *gifts.User {
	return &gifts.User{
		ID:          d.ID.Hex(),
		PlatformID:  d.PlatformID,
		Handle:      d.Handle,
		Style:       gifts.Style(d.Style),
		LastDailyAt: d.LastDailyAt,
		CreatedAt:   d.CreatedAt,
	}
}

func (d *giftDoc) toDomain() *gifts.Gift {
	return &gifts.Gift{
		ID:           d.ID.Hex(),
		OwnerID:      d.OwnerID.Hex(),
		Animals:      d.Animals,
		Accessories:  d.Accessories,
		Rarity:       gifts.Rarity(d.Rarity),
		MediaURL:     d.MediaURL,
		ThumbnailURL: d.ThumbnailURL,
		Provenance:   gifts.Provenance(d.Provenance),
		ParentIDs:    hexIDs(d.ParentIDs),
		CreatedAt:    d.CreatedAt,
	}
}

func candidatesToDocs(in []gifts.Candidate) []candidateDoc {
	out := make([]candidateDoc, len(in))
	for i, c := range in {
		out[i] = candidateDoc{
			Animals:      c.Animals,
			Accessories:  c.Accessories,
			MediaURL:     c.MediaURL,
			ThumbnailURL: c.ThumbnailURL,
		}
	}
	return out
}

func (d *draftDoc) toDomain() *gifts.Draft {
	var cands []gifts.Candidate
	for _, c := range d.Candidates {
		cands = append(cands, gifts.Candidate{
			Animals:      c.Animals,
			Accessories:  c.Accessories,
			MediaURL:     c.MediaURL,
			ThumbnailURL: c.ThumbnailURL,
		})
	}
	return &gifts.Draft{
		ID:         d.ID.Hex(),
		OwnerID:    d.OwnerID.Hex(),
		Candidates: cands,
		ExpiresAt:  d.ExpiresAt,
		CreatedAt:  d.CreatedAt,
	}
}

func (d *fusionJobDoc) toDomain() *gifts.FusionJob {
	job := &gifts.FusionJob{
		ID:        d.ID.Hex(),
		OwnerID:   d.OwnerID.Hex(),
		ParentIDs: hexIDs(d.ParentIDs),
		Status:    gifts.JobStatus(d.Status),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.ResultGiftID != nil {
		job.ResultGiftID = d.ResultGiftID.Hex()
	}
	return job
}
