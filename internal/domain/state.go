package domain

// Phase - lifecycle phase of a game. Transitions are monotonic except
// roundEnd -> dealing (next round); finished is terminal.
type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseDealing    Phase = "dealing"
	PhaseInProgress Phase = "in_progress"
	PhaseRoundEnd   Phase = "round_end"
	PhaseFinished   Phase = "finished"
)

// GameState is the authoritative state of one room's game. It is only ever
// mutated by the owning room actor; the engine produces new values instead of
// mutating shared ones.
type GameState struct {
	RoomID             string   `json:"room_id"`
	Players            []Player `json:"players"`
	Deck               []Card   `json:"deck,omitempty"`
	Discard            []Card   `json:"discard"`
	CurrentPlayerIndex int      `json:"current_player_index"`
	Phase              Phase    `json:"phase"`
	Version            int64    `json:"version"`
}

// NewGameState returns the initial waiting-phase state for a room.
func NewGameState(roomID string) *GameState {
	return &GameState{
		RoomID:  roomID,
		Phase:   PhaseWaiting,
		Players: []Player{},
		Deck:    []Card{},
		Discard: []Card{},
	}
}

// Clone returns a deep copy. Card slices are copied so the engine can build a
// new state without touching the committed one.
func (s *GameState) Clone() *GameState {
	cp := *s
	cp.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		cp.Players[i] = p
		cp.Players[i].Hand = append([]Card(nil), p.Hand...)
	}
	cp.Deck = append([]Card(nil), s.Deck...)
	cp.Discard = append([]Card(nil), s.Discard...)
	return &cp
}

// View returns a copy redacted for the given viewer: other players' hands are
// reduced to counts and the deck is hidden. Hands are visible only to their
// owner and the server.
func (s *GameState) View(viewerID string) *GameState {
	v := s.Clone()
	for i := range v.Players {
		v.Players[i].HandSize = len(v.Players[i].Hand)
		if v.Players[i].ID != viewerID {
			v.Players[i].Hand = nil
		}
	}
	v.Deck = nil
	return v
}

// DeckSize reports how many cards remain in the draw deck.
func (s *GameState) DeckSize() int {
	return len(s.Deck)
}

// PlayerIndex returns the seat index for the given player id, or -1.
func (s *GameState) PlayerIndex(playerID string) int {
	for i := range s.Players {
		if s.Players[i].ID == playerID {
			return i
		}
	}
	return -1
}

// FindPlayer returns the seat for the given player id, or nil.
func (s *GameState) FindPlayer(playerID string) *Player {
	if i := s.PlayerIndex(playerID); i >= 0 {
		return &s.Players[i]
	}
	return nil
}

// SeatedCount counts players that have not left.
func (s *GameState) SeatedCount() int {
	n := 0
	for i := range s.Players {
		if s.Players[i].Seated() {
			n++
		}
	}
	return n
}

// ConnectedCount counts players currently connected.
func (s *GameState) ConnectedCount() int {
	n := 0
	for i := range s.Players {
		if s.Players[i].ConnectionState == ConnStateConnected {
			n++
		}
	}
	return n
}

// CurrentPlayer returns the seat holding the turn, or nil outside of a game.
func (s *GameState) CurrentPlayer() *Player {
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players) {
		return nil
	}
	return &s.Players[s.CurrentPlayerIndex]
}

// NextSeat returns the index of the next seat after from that has not left,
// wrapping around. Returns -1 when no such seat exists.
func (s *GameState) NextSeat(from int) int {
	n := len(s.Players)
	if n == 0 {
		return -1
	}
	for step := 1; step <= n; step++ {
		i := (from + step) % n
		if s.Players[i].Seated() {
			return i
		}
	}
	return -1
}

// TopDiscard returns the top of the discard pile, or a zero card when empty.
func (s *GameState) TopDiscard() (Card, bool) {
	if len(s.Discard) == 0 {
		return Card{}, false
	}
	return s.Discard[len(s.Discard)-1], true
}
