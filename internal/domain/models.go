package domain

import (
	"time"
)

type RecordStatus string

const (
	StatusPending RecordStatus = "pending"
	StatusReady   RecordStatus = "ready"
	StatusHidden  RecordStatus = "hidden"
	StatusFailed  RecordStatus = "failed"
)

// Display text for seats that could not be enriched.
const (
	HiddenDisplayName   = "hidden player"
	FailedDisplayName   = "query failed"
	NotFoundDisplayName = "not found"
)

// Identity is one roster entry's addressable identity. A zero or negative
// PlayerID means the upstream provider withheld it; such seats are
// disambiguated only by their selected character.
type Identity struct {
	PlayerID    int64
	OpaqueID    string
	DisplayName string
}

func (i Identity) Hidden() bool {
	return i.PlayerID <= 0 && i.OpaqueID == ""
}

// Same reports whether two identities address the same player. OpaqueID
// wins when both sides carry one; display names are never compared.
func (i Identity) Same(other Identity) bool {
	if i.Hidden() || other.Hidden() {
		return false
	}
	if i.OpaqueID != "" && other.OpaqueID != "" {
		return i.OpaqueID == other.OpaqueID
	}
	return i.PlayerID == other.PlayerID
}

// SeatSnapshot is one roster entry as reported by the session provider at
// a point in time. Immutable once captured.
type SeatSnapshot struct {
	Team        int
	SeatIndex   int
	Identity    Identity
	CharacterID int
	CapturedAt  time.Time
}

type RankSummary struct {
	Queue        string
	Tier         string
	Division     string
	LeaguePoints int
	Wins         int
	Losses       int
}

type MatchOutcome struct {
	MatchID     string
	Win         bool
	Kills       int
	Deaths      int
	Assists     int
	CharacterID int
}

// Profile is the identity provider's view of a player.
type Profile struct {
	DisplayName string
	OpaqueID    string
	Private     bool
}

// EnrichedRecord carries everything the renderer needs for one seat.
// Records are created pending, filled in as fetch stages complete, and
// replaced wholesale whenever the seat's character changes.
type EnrichedRecord struct {
	Identity       Identity
	DisplayName    string
	CharacterID    int
	SoloRank       RankSummary
	FlexRank       RankSummary
	RecentMatches  []MatchOutcome
	Fingerprints   map[string]struct{}
	PartyKey       string
	PartyColor     string
	Status         RecordStatus
	Placeholder    bool
	EncounterCount int
	FetchedAt      time.Time
}

func NewPendingRecord(id Identity, characterID int) *EnrichedRecord {
	return &EnrichedRecord{
		Identity:    id,
		DisplayName: id.DisplayName,
		CharacterID: characterID,
		Status:      StatusPending,
	}
}

func NewHiddenRecord(characterID int) *EnrichedRecord {
	return &EnrichedRecord{
		DisplayName: HiddenDisplayName,
		CharacterID: characterID,
		Status:      StatusHidden,
		FetchedAt:   time.Now(),
	}
}

func NewFailedRecord(id Identity, characterID int) *EnrichedRecord {
	name := id.DisplayName
	if name == "" {
		name = FailedDisplayName
	}
	return &EnrichedRecord{
		Identity:    id,
		DisplayName: name,
		CharacterID: characterID,
		Status:      StatusFailed,
		FetchedAt:   time.Now(),
	}
}

// Encounter is one journal row: a player observed in a scouting session.
type Encounter struct {
	ID          string
	SessionID   string
	OpaqueID    string
	DisplayName string
	CharacterID int
	Team        int
	SeenAt      time.Time
}
