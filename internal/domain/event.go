package domain

// EventKind discriminates the closed set of observable state changes.
type EventKind string

const (
	EventPlayerJoined  EventKind = "player_joined"
	EventPlayerLeft    EventKind = "player_left"
	EventCardPlayed    EventKind = "card_played"
	EventCardDrawn     EventKind = "card_drawn"
	EventTurnAdvanced  EventKind = "turn_advanced"
	EventRoundEnded    EventKind = "round_ended"
	EventGameEnded     EventKind = "game_ended"
	EventStateSnapshot EventKind = "state_snapshot"
)

// Event describes an accepted state change. Every event carries the version it
// produced so clients can detect missed updates and resync. All events caused
// by one accepted action share that action's version.
type Event interface {
	Kind() EventKind
	Version() int64
	// RedactFor returns the event as it may be shown to the given viewer.
	// Most events are public; events exposing hand contents hide them from
	// everyone but the owner.
	RedactFor(viewerID string) Event
	isEvent()
}

// PlayerJoinedEvent - a player took a seat.
type PlayerJoinedEvent struct {
	Ver         int64  `json:"version"`
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Seat        int    `json:"seat"`
}

func (PlayerJoinedEvent) Kind() EventKind          { return EventPlayerJoined }
func (e PlayerJoinedEvent) Version() int64         { return e.Ver }
func (e PlayerJoinedEvent) RedactFor(string) Event { return e }
func (PlayerJoinedEvent) isEvent()                 {}

// PlayerLeftEvent - a seat was vacated, explicitly or by grace expiry.
type PlayerLeftEvent struct {
	Ver          int64  `json:"version"`
	PlayerID     string `json:"player_id"`
	GraceExpired bool   `json:"grace_expired,omitempty"`
}

func (PlayerLeftEvent) Kind() EventKind          { return EventPlayerLeft }
func (e PlayerLeftEvent) Version() int64         { return e.Ver }
func (e PlayerLeftEvent) RedactFor(string) Event { return e }
func (PlayerLeftEvent) isEvent()                 {}

// CardPlayedEvent - a card moved from a hand to the top of the discard pile.
type CardPlayedEvent struct {
	Ver      int64  `json:"version"`
	PlayerID string `json:"player_id"`
	Card     Card   `json:"card"`
	HandSize int    `json:"hand_size"`
}

func (CardPlayedEvent) Kind() EventKind          { return EventCardPlayed }
func (e CardPlayedEvent) Version() int64         { return e.Ver }
func (e CardPlayedEvent) RedactFor(string) Event { return e }
func (CardPlayedEvent) isEvent()                 {}

// CardDrawnEvent - the top deck card moved to a hand. The drawn card is
// visible to the drawing player only.
type CardDrawnEvent struct {
	Ver        int64  `json:"version"`
	PlayerID   string `json:"player_id"`
	Card       Card   `json:"card,omitzero"`
	Hidden     bool   `json:"hidden,omitempty"`
	DeckSize   int    `json:"deck_size"`
	Reshuffled bool   `json:"reshuffled,omitempty"`
}

func (CardDrawnEvent) Kind() EventKind  { return EventCardDrawn }
func (e CardDrawnEvent) Version() int64 { return e.Ver }
func (CardDrawnEvent) isEvent()         {}

func (e CardDrawnEvent) RedactFor(viewerID string) Event {
	if viewerID == e.PlayerID {
		return e
	}
	e.Card = Card{}
	e.Hidden = true
	return e
}

// TurnAdvancedEvent - the turn moved to another seat.
type TurnAdvancedEvent struct {
	Ver      int64  `json:"version"`
	PlayerID string `json:"player_id"`
	Seat     int    `json:"seat"`
}

func (TurnAdvancedEvent) Kind() EventKind          { return EventTurnAdvanced }
func (e TurnAdvancedEvent) Version() int64         { return e.Ver }
func (e TurnAdvancedEvent) RedactFor(string) Event { return e }
func (TurnAdvancedEvent) isEvent()                 {}

// RoundEndedEvent - a player emptied their hand.
type RoundEndedEvent struct {
	Ver       int64  `json:"version"`
	WinnerID  string `json:"winner_id"`
	WonRounds int    `json:"won_rounds"`
}

func (RoundEndedEvent) Kind() EventKind          { return EventRoundEnded }
func (e RoundEndedEvent) Version() int64         { return e.Ver }
func (e RoundEndedEvent) RedactFor(string) Event { return e }
func (RoundEndedEvent) isEvent()                 {}

// GameEndedEvent - the game reached its terminal phase.
type GameEndedEvent struct {
	Ver      int64  `json:"version"`
	WinnerID string `json:"winner_id,omitempty"`
	Reason   string `json:"reason"`
}

func (GameEndedEvent) Kind() EventKind          { return EventGameEnded }
func (e GameEndedEvent) Version() int64         { return e.Ver }
func (e GameEndedEvent) RedactFor(string) Event { return e }
func (GameEndedEvent) isEvent()                 {}

// StateSnapshotEvent - full authoritative state, used after dealing and for
// reconnect resync. Redacted per viewer before delivery.
type StateSnapshotEvent struct {
	Ver   int64      `json:"version"`
	State *GameState `json:"state"`
}

func (StateSnapshotEvent) Kind() EventKind  { return EventStateSnapshot }
func (e StateSnapshotEvent) Version() int64 { return e.Ver }
func (StateSnapshotEvent) isEvent()         {}

func (e StateSnapshotEvent) RedactFor(viewerID string) Event {
	e.State = e.State.View(viewerID)
	return e
}

// NewSnapshotEvent wraps a state into its snapshot event.
func NewSnapshotEvent(s *GameState) StateSnapshotEvent {
	return StateSnapshotEvent{Ver: s.Version, State: s}
}
