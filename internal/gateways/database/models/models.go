package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/nanopets/giftbot/internal/domain/gifts"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          string     `bun:"id,pk,type:text"`
	PlatformID  int64      `bun:"platform_id,notnull,unique"`
	Handle      string     `bun:"handle"`
	Style       string     `bun:"style,notnull,default:'kawaii'"`
	LastDailyAt *time.Time `bun:"last_daily_at,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

type Gift struct {
	bun.BaseModel `bun:"table:gifts,alias:g"`

	ID           string    `bun:"id,pk,type:text"`
	OwnerID      string    `bun:"owner_id,notnull"`
	Animals      []string  `bun:"animals,type:jsonb"`
	Accessories  []string  `bun:"accessories,type:jsonb"`
	Rarity       string    `bun:"rarity,notnull"`
	MediaURL     string    `bun:"media_url,notnull"`
	ThumbnailURL string    `bun:"thumbnail_url,notnull"`
	Provenance   string    `bun:"provenance,notnull"`
	ParentIDs    []string  `bun:"parent_ids,type:jsonb"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type Candidate struct {
	Animals      []string `json:"animals"`
	Accessories  []string `json:"accessories"`
	MediaURL     string   `json:"media_url"`
	ThumbnailURL string   `json:"thumbnail_url"`
}

// Draft rows live in pending_creations.
type Draft struct {
	bun.BaseModel `bun:"table:pending_creations,alias:pc"`

	ID         string      `bun:"id,pk,type:text"`
	OwnerID    string      `bun:"owner_id,notnull"`
	Candidates []Candidate `bun:"candidates,type:jsonb"`
	ExpiresAt  time.Time   `bun:"expires_at,notnull"`
	CreatedAt  time.Time   `bun:"created_at,notnull,default:current_timestamp"`
}

type FusionJob struct {
	bun.BaseModel `bun:"table:fusion_jobs,alias:fj"`

	ID           string    `bun:"id,pk,type:text"`
	OwnerID      string    `bun:"owner_id,notnull"`
	ParentIDs    []string  `bun:"parent_ids,type:jsonb"`
	Status       string    `bun:"status,notnull"`
	ResultGiftID string    `bun:"result_gift_id,nullzero"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

func UserToDomain(m *User) *gifts.User {
	return &gifts.User{
		ID:          m.ID,
		PlatformID:  m.PlatformID,
		Handle:      m.Handle,
		Style:       gifts.Style(m.Style),
		LastDailyAt: m.LastDailyAt,
		CreatedAt:   m.CreatedAt,
	}
}

func GiftFromDomain(g *gifts.Gift) *Gift {
	return &Gift{
		ID:           g.ID,
		OwnerID:      g.OwnerID,
		Animals:      nonNil(g.Animals),
		Accessories:  nonNil(g.Accessories),
		Rarity:       string(g.Rarity),
		MediaURL:     g.MediaURL,
		ThumbnailURL: g.ThumbnailURL,
		Provenance:   string(g.Provenance),
		ParentIDs:    nonNil(g.ParentIDs),
		CreatedAt:    g.CreatedAt,
	}
}

func GiftToDomain(m *Gift) *gifts.Gift {
	g := &gifts.Gift{
		ID:           m.ID,
		OwnerID:      m.OwnerID,
		Animals:      m.Animals,
		Accessories:  m.Accessories,
		Rarity:       gifts.Rarity(m.Rarity),
		MediaURL:     m.MediaURL,
		ThumbnailURL: m.ThumbnailURL,
		Provenance:   gifts.Provenance(m.Provenance),
		CreatedAt:    m.CreatedAt,
	}
	if len(m.ParentIDs) > 0 {
		g.ParentIDs = m.ParentIDs
	}
	return g
}

func CandidatesFromDomain(in []gifts.Candidate) []Candidate {
	out := make([]Candidate, len(in))
	for i, c := range in {
		out[i] = Candidate{
			Animals:      c.Animals,
			Accessories:  c.Accessories,
			MediaURL:     c.MediaURL,
			ThumbnailURL: c.ThumbnailURL,
		}
	}
	return out
}

func CandidatesToDomain(in []Candidate) []gifts.Candidate {
	if len(in) == 0 {
		return nil
	}
	out := make([]gifts.Candidate, len(in))
	for i, c := range in {
		out[i] = gifts.Candidate{
			Animals:      c.Animals,
			Accessories:  c.Accessories,
			MediaURL:     c.MediaURL,
			ThumbnailURL: c.ThumbnailURL,
		}
	}
	return out
}

func DraftFromDomain(d *gifts.Draft) *Draft {
	return &Draft{
		ID:         d.ID,
		OwnerID:    d.OwnerID,
		Candidates: CandidatesFromDomain(d.Candidates),
		ExpiresAt:  d.ExpiresAt,
		CreatedAt:  d.CreatedAt,
	}
}

func DraftToDomain(m *Draft) *gifts.Draft {
	return &gifts.Draft{
		ID:         m.ID,
		OwnerID:    m.OwnerID,
		Candidates: CandidatesToDomain(m.Candidates),
		ExpiresAt:  m.ExpiresAt,
		CreatedAt:  m.CreatedAt,
	}
}

func FusionJobFromDomain(j *gifts.FusionJob) *FusionJob {
	return &FusionJob{
		ID:           j.ID,
		OwnerID:      j.OwnerID,
		ParentIDs:    nonNil(j.ParentIDs),
		Status:       string(j.Status),
		ResultGiftID: j.ResultGiftID,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

func FusionJobToDomain(m *FusionJob) *gifts.FusionJob {
	return &gifts.FusionJob{
		ID:           m.ID,
		OwnerID:      m.OwnerID,
		ParentIDs:    m.ParentIDs,
		Status:       gifts.JobStatus(m.Status),
		ResultGiftID: m.ResultGiftID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// jsonb columns store [] rather than null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
