package gifts

import (
	"errors"
	"slices"
	"time"
)

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityLegendary Rarity = "legendary"
)

var rarityRank = map[Rarity]int{
	RarityCommon:    0,
	RarityRare:      1,
	RarityLegendary: 2,
}

// Less orders rarities common < rare < legendary.
func (r Rarity) Less(other Rarity) bool {
	return rarityRank[r] < rarityRank[other]
}

type Provenance string

const (
	ProvenanceDaily  Provenance = "daily"
	ProvenanceFusion Provenance = "fusion"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition may leave s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition reports whether from -> to is a legal job transition.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobPending:
		return to == JobProcessing
	case JobProcessing:
		return to == JobCompleted || to == JobFailed
	default:
		return false
	}
}

type Style string

const (
	StyleKawaii    Style = "kawaii"
	StyleRealistic Style = "realistic"
	StyleAnime     Style = "anime"
	StyleChibi     Style = "chibi"
	StyleVintage   Style = "vintage"

	DefaultStyle = StyleKawaii
)

var Styles = []Style{StyleKawaii, StyleRealistic, StyleAnime, StyleChibi, StyleVintage}

func (s Style) Valid() bool {
	return slices.Contains(Styles, s)
}

// User is the principal, anchored to the platform's numeric ID.
type User struct {
	ID          string
	PlatformID  int64
	Handle      string
	Style       Style
	LastDailyAt *time.Time
	CreatedAt   time.Time
}

type Gift struct {
	ID           string
	OwnerID      string
	Animals      []string
	Accessories  []string
	Rarity       Rarity
	MediaURL     string
	ThumbnailURL string
	Provenance   Provenance
	// ParentIDs is kept for audit after the parents are burned.
	ParentIDs []string
	CreatedAt time.Time
}

var (
	errNoAnimals      = errors.New("gift needs at least one animal")
	errNoMedia        = errors.New("gift needs media and thumbnail urls")
	errParentMismatch = errors.New("fusion parents must be present iff provenance is fusion")
)

func (g *Gift) Validate() error {
	if len(g.Animals) == 0 {
		return errNoAnimals
	}
	if g.MediaURL == "" || g.ThumbnailURL == "" {
		return errNoMedia
	}
	if (len(g.ParentIDs) > 0) != (g.Provenance == ProvenanceFusion) {
		return errParentMismatch
	}
	return nil
}

// Candidate is a generated, not yet minted gift inside a draft.
type Candidate struct {
	Animals      []string
	Accessories  []string
	MediaURL     string
	ThumbnailURL string
}

// Draft is the time-boxed scratch space of the daily flow.
type Draft struct {
	ID         string
	OwnerID    string
	Candidates []Candidate
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

func (d *Draft) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

type FusionJob struct {
	ID           string
	OwnerID      string
	ParentIDs    []string
	Status       JobStatus
	ResultGiftID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
