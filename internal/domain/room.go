package domain

import "time"

// RuleVariant - which play-legality rule is active
type RuleVariant string

const (
	// VariantClassic requires a played card to match the top discard's suit or
	// rank; any card is legal while the discard pile is empty.
	VariantClassic RuleVariant = "classic"
	// VariantFree allows any card from the hand.
	VariantFree RuleVariant = "free"
)

// RoomSettings - configurable per-room game parameters
type RoomSettings struct {
	MaxPlayers       int         `json:"max_players"`
	MinPlayers       int         `json:"min_players"`
	DealCount        int         `json:"deal_count"`
	Rounds           int         `json:"rounds"`
	Variant          RuleVariant `json:"variant"`
	ReshuffleDiscard bool        `json:"reshuffle_discard"`
}

// DefaultSettings returns the documented defaults (2..8 seats, 7-card deal).
func DefaultSettings() RoomSettings {
	return RoomSettings{
		MaxPlayers:       4,
		MinPlayers:       2,
		DealCount:        7,
		Rounds:           1,
		Variant:          VariantClassic,
		ReshuffleDiscard: true,
	}
}

// Normalize clamps out-of-range values back to sane defaults.
func (s RoomSettings) Normalize() RoomSettings {
	d := DefaultSettings()
	if s.MaxPlayers < 2 || s.MaxPlayers > 8 {
		s.MaxPlayers = d.MaxPlayers
	}
	if s.MinPlayers < 2 || s.MinPlayers > s.MaxPlayers {
		s.MinPlayers = d.MinPlayers
	}
	if s.DealCount < 1 || s.DealCount > 17 {
		s.DealCount = d.DealCount
	}
	if s.Rounds < 1 {
		s.Rounds = d.Rounds
	}
	if s.Variant != VariantClassic && s.Variant != VariantFree {
		s.Variant = d.Variant
	}
	return s
}

// GameRoom is one running game session.
type GameRoom struct {
	ID             string       `json:"id"`
	OwnerID        string       `json:"owner_id"`
	Name           string       `json:"name,omitempty"`
	Settings       RoomSettings `json:"settings"`
	State          *GameState   `json:"state"`
	CreatedAt      time.Time    `json:"created_at"`
	LastActivityAt time.Time    `json:"last_activity_at"`
}
