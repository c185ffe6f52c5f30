package models

import (
	"time"

	"github.com/nanopets/giftbot/internal/domain/gifts"
)

// AuthRequest carries the session token when it travels in the JSON body.
type AuthRequest struct {
	InitData string `json:"initData"`
}

type DraftRequest struct {
	PendingID string `json:"pending_id"`
}

type ChooseRequest struct {
	PendingID   string `json:"pending_id"`
	OptionIndex *int   `json:"option_index"`
}

type FusionStartRequest struct {
	GiftIDs []string `json:"gift_ids"`
}

type FusionCompleteRequest struct {
	FusionJobID string `json:"fusion_job_id"`
}

type StyleRequest struct {
	Style string `json:"style"`
}

type StyleResponse struct {
	Style  string   `json:"style"`
	Styles []string `json:"styles"`
}

type UserResponse struct {
	ID         string     `json:"id"`
	PlatformID int64      `json:"telegram_id"`
	Handle     string     `json:"username,omitempty"`
	Style      string     `json:"style"`
	LastDaily  *time.Time `json:"last_daily_at,omitempty"`
}

type GiftResponse struct {
	ID           string    `json:"id"`
	Animals      []string  `json:"animals"`
	Accessories  []string  `json:"accessories"`
	Rarity       string    `json:"rarity"`
	AnimationURL string    `json:"animation_url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	SourceType   string    `json:"source_type"`
	ParentIDs    []string  `json:"fusion_parents,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type CandidateResponse struct {
	Index        int      `json:"index"`
	Animals      []string `json:"animals"`
	Accessories  []string `json:"accessories"`
	AnimationURL string   `json:"animation_url"`
	ThumbnailURL string   `json:"thumbnail_url"`
}

type DraftResponse struct {
	PendingID string              `json:"pending_id"`
	ExpiresAt time.Time           `json:"expires_at"`
	Options   []CandidateResponse `json:"options"`
}

type FusionJobResponse struct {
	FusionJobID  string   `json:"fusion_job_id"`
	Status       string   `json:"status"`
	ParentIDs    []string `json:"parent_ids"`
	ResultGiftID string   `json:"result_gift_id,omitempty"`
}

func NewUserResponse(u *gifts.User) *UserResponse {
	return &UserResponse{
		ID:         u.ID,
		PlatformID: u.PlatformID,
		Handle:     u.Handle,
		Style:      string(u.Style),
		LastDaily:  u.LastDailyAt,
	}
}

func NewGiftResponse(g *gifts.Gift) *GiftResponse {
	return &GiftResponse{
		ID:           g.ID,
		Animals:      g.Animals,
		Accessories:  g.Accessories,
		Rarity:       string(g.Rarity),
		AnimationURL: g.MediaURL,
		ThumbnailURL: g.ThumbnailURL,
		SourceType:   string(g.Provenance),
		ParentIDs:    g.ParentIDs,
		CreatedAt:    g.CreatedAt,
	}
}

func NewGiftList(list []*gifts.Gift) []*GiftResponse {
	out := make([]*GiftResponse, len(list))
	for i, g := range list {
		out[i] = NewGiftResponse(g)
	}
	return out
}

func NewCandidates(cands []gifts.Candidate) []CandidateResponse {
	out := make([]CandidateResponse, len(cands))
	for i, c := range cands {
		out[i] = CandidateResponse{
			Index:        i,
			Animals:      c.Animals,
			Accessories:  c.Accessories,
			AnimationURL: c.MediaURL,
			ThumbnailURL: c.ThumbnailURL,
		}
	}
	return out
}

func NewDraftResponse(d *gifts.Draft) *DraftResponse {
	return &DraftResponse{
		PendingID: d.ID,
		ExpiresAt: d.ExpiresAt,
		Options:   NewCandidates(d.Candidates),
	}
}

func NewFusionJobResponse(j *gifts.FusionJob) *FusionJobResponse {
	return &FusionJobResponse{
		FusionJobID:  j.ID,
		Status:       string(j.Status),
		ParentIDs:    j.ParentIDs,
		ResultGiftID: j.ResultGiftID,
	}
}
