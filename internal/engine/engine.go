// Package engine implements the card-game rules as a pure transition
// function: given a state, an action and an explicit randomness source it
// returns a new state plus the events describing the change, or a rejection.
// It never does I/O and has no concurrency concerns of its own; the room
// actor totally orders the actions it feeds in.
package engine

import (
	"math/rand"

	"cardroom/internal/domain"
)

// Engine validates actions for one room. Owner and settings are fixed at room
// creation.
type Engine struct {
	ownerID  string
	settings domain.RoomSettings
}

// New builds an engine for a room.
func New(ownerID string, settings domain.RoomSettings) *Engine {
	return &Engine{ownerID: ownerID, settings: settings.Normalize()}
}

// Settings returns the active settings.
func (e *Engine) Settings() domain.RoomSettings { return e.settings }

// Apply validates the action against the state and produces the successor
// state and its events. The input state is never mutated; on rejection it is
// returned unchanged with a nil event list. rng is only consulted for
// shuffling (start of game, discard reshuffle).
func (e *Engine) Apply(s *domain.GameState, a domain.Action, rng *rand.Rand) (*domain.GameState, []domain.Event, error) {
	next := s.Clone()
	next.Version++

	var (
		events []domain.Event
		err    error
	)
	switch act := a.(type) {
	case domain.JoinAction:
		events, err = e.applyJoin(next, act)
	case domain.LeaveAction:
		events, err = e.applyLeave(next, act)
	case domain.PlayCardAction:
		events, err = e.applyPlayCard(next, act)
	case domain.DrawCardAction:
		events, err = e.applyDrawCard(next, act, rng)
	case domain.PassTurnAction:
		events, err = e.applyPassTurn(next, act)
	case domain.StartGameAction:
		events, err = e.applyStartGame(next, act, rng)
	default:
		err = domain.Violation(domain.RuleBadPhase, "unsupported action %q", a.Kind())
	}
	if err != nil {
		return s, nil, err
	}
	return next, events, nil
}

func (e *Engine) applyJoin(s *domain.GameState, a domain.JoinAction) ([]domain.Event, error) {
	if s.Phase != domain.PhaseWaiting {
		return nil, domain.Violation(domain.RuleGameInProgress, "cannot join in phase %s", s.Phase)
	}
	if p := s.FindPlayer(a.ActorID); p != nil {
		if p.Seated() {
			return nil, domain.Violation(domain.RuleAlreadyJoined, "player %s already seated", a.ActorID)
		}
		// Reclaim a previously vacated seat while still waiting.
		p.ConnectionState = domain.ConnStateConnected
		p.DisplayName = a.DisplayName
		return []domain.Event{domain.PlayerJoinedEvent{
			Ver:         s.Version,
			PlayerID:    a.ActorID,
			DisplayName: a.DisplayName,
			Seat:        s.PlayerIndex(a.ActorID),
		}}, nil
	}
	if s.SeatedCount() >= e.settings.MaxPlayers {
		return nil, domain.Violation(domain.RuleRoomFull, "room holds %d players", e.settings.MaxPlayers)
	}
	s.Players = append(s.Players, domain.Player{
		ID:              a.ActorID,
		DisplayName:     a.DisplayName,
		ConnectionState: domain.ConnStateConnected,
	})
	return []domain.Event{domain.PlayerJoinedEvent{
		Ver:         s.Version,
		PlayerID:    a.ActorID,
		DisplayName: a.DisplayName,
		Seat:        len(s.Players) - 1,
	}}, nil
}

func (e *Engine) applyStartGame(s *domain.GameState, a domain.StartGameAction, rng *rand.Rand) ([]domain.Event, error) {
	if a.ActorID != e.ownerID {
		return nil, domain.Violation(domain.RuleNotOwner, "only the room owner can start the game")
	}
	if s.Phase != domain.PhaseWaiting && s.Phase != domain.PhaseRoundEnd {
		return nil, domain.Violation(domain.RuleBadPhase, "cannot start in phase %s", s.Phase)
	}
	seated := s.SeatedCount()
	if seated < e.settings.MinPlayers || seated > e.settings.MaxPlayers {
		return nil, domain.Violation(domain.RuleNotEnough,
			"need %d-%d players, have %d", e.settings.MinPlayers, e.settings.MaxPlayers, seated)
	}
	if seated*e.settings.DealCount > domain.DeckSize {
		return nil, domain.Violation(domain.RuleDeckTooSmall,
			"cannot deal %d cards each to %d players from %d cards",
			e.settings.DealCount, seated, domain.DeckSize)
	}

	// A fresh round always recollects the full card set.
	deck := domain.NewDeck()
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	s.Deck = deck
	s.Discard = s.Discard[:0]
	for i := range s.Players {
		s.Players[i].Hand = nil
		s.Players[i].HandSize = 0
	}

	s.Phase = domain.PhaseDealing
	// Round-robin deal, one card at a time, seat order. The deck check above
	// guarantees every seated player receives the full deal.
	for c := 0; c < e.settings.DealCount; c++ {
		for i := range s.Players {
			if !s.Players[i].Seated() {
				continue
			}
			top := s.Deck[len(s.Deck)-1]
			s.Deck = s.Deck[:len(s.Deck)-1]
			s.Players[i].Hand = append(s.Players[i].Hand, top)
			s.Players[i].HandSize = len(s.Players[i].Hand)
		}
	}
	s.Phase = domain.PhaseInProgress

	s.CurrentPlayerIndex = 0
	if !s.Players[0].Seated() {
		s.CurrentPlayerIndex = s.NextSeat(0)
	}

	return []domain.Event{domain.NewSnapshotEvent(s.Clone())}, nil
}

func (e *Engine) applyPlayCard(s *domain.GameState, a domain.PlayCardAction) ([]domain.Event, error) {
	p, err := e.requireTurn(s, a.ActorID)
	if err != nil {
		return nil, err
	}
	if !p.HasCard(a.Card) {
		return nil, domain.Violation(domain.RuleCardNotInHand, "card %s not in hand", a.Card)
	}
	if !e.legalPlay(s, a.Card) {
		top, _ := s.TopDiscard()
		return nil, domain.Violation(domain.RuleCardNotLegal,
			"card %s does not match top discard %s", a.Card, top)
	}

	p.RemoveCard(a.Card)
	s.Discard = append(s.Discard, a.Card)

	events := []domain.Event{domain.CardPlayedEvent{
		Ver:      s.Version,
		PlayerID: a.ActorID,
		Card:     a.Card,
		HandSize: len(p.Hand),
	}}

	if len(p.Hand) == 0 {
		p.WonRounds++
		events = append(events, domain.RoundEndedEvent{
			Ver:       s.Version,
			WinnerID:  p.ID,
			WonRounds: p.WonRounds,
		})
		if p.WonRounds >= e.settings.Rounds {
			s.Phase = domain.PhaseFinished
			events = append(events, domain.GameEndedEvent{
				Ver:      s.Version,
				WinnerID: p.ID,
				Reason:   "rounds_won",
			})
		} else {
			s.Phase = domain.PhaseRoundEnd
		}
		return events, nil
	}

	s.CurrentPlayerIndex = s.NextSeat(s.CurrentPlayerIndex)
	events = append(events, domain.TurnAdvancedEvent{
		Ver:      s.Version,
		PlayerID: s.Players[s.CurrentPlayerIndex].ID,
		Seat:     s.CurrentPlayerIndex,
	})
	return events, nil
}

func (e *Engine) applyDrawCard(s *domain.GameState, a domain.DrawCardAction, rng *rand.Rand) ([]domain.Event, error) {
	p, err := e.requireTurn(s, a.ActorID)
	if err != nil {
		return nil, err
	}

	reshuffled := false
	if len(s.Deck) == 0 {
		// Fold the discard pile back into the deck, keeping its top card.
		if !e.settings.ReshuffleDiscard || len(s.Discard) < 2 {
			return nil, domain.Violation(domain.RuleDeckEmpty, "deck is empty")
		}
		top := s.Discard[len(s.Discard)-1]
		s.Deck = append(s.Deck, s.Discard[:len(s.Discard)-1]...)
		s.Discard = []domain.Card{top}
		rng.Shuffle(len(s.Deck), func(i, j int) { s.Deck[i], s.Deck[j] = s.Deck[j], s.Deck[i] })
		reshuffled = true
	}

	card := s.Deck[len(s.Deck)-1]
	s.Deck = s.Deck[:len(s.Deck)-1]
	p.Hand = append(p.Hand, card)
	p.HandSize = len(p.Hand)

	return []domain.Event{domain.CardDrawnEvent{
		Ver:        s.Version,
		PlayerID:   a.ActorID,
		Card:       card,
		DeckSize:   len(s.Deck),
		Reshuffled: reshuffled,
	}}, nil
}

func (e *Engine) applyPassTurn(s *domain.GameState, a domain.PassTurnAction) ([]domain.Event, error) {
	if _, err := e.requireTurn(s, a.ActorID); err != nil {
		return nil, err
	}
	s.CurrentPlayerIndex = s.NextSeat(s.CurrentPlayerIndex)
	return []domain.Event{domain.TurnAdvancedEvent{
		Ver:      s.Version,
		PlayerID: s.Players[s.CurrentPlayerIndex].ID,
		Seat:     s.CurrentPlayerIndex,
	}}, nil
}

func (e *Engine) applyLeave(s *domain.GameState, a domain.LeaveAction) ([]domain.Event, error) {
	p := s.FindPlayer(a.ActorID)
	if p == nil || !p.Seated() {
		return nil, domain.Violation(domain.RuleNotSeated, "player %s is not seated", a.ActorID)
	}

	hadTurn := s.Phase == domain.PhaseInProgress &&
		s.CurrentPlayer() != nil && s.CurrentPlayer().ID == a.ActorID

	// Return the vacated hand to the bottom of the deck so the full card set
	// stays in play.
	if len(p.Hand) > 0 {
		s.Deck = append(append([]domain.Card(nil), p.Hand...), s.Deck...)
		p.Hand = nil
		p.HandSize = 0
	}
	p.ConnectionState = domain.ConnStateLeft

	events := []domain.Event{domain.PlayerLeftEvent{
		Ver:          s.Version,
		PlayerID:     a.ActorID,
		GraceExpired: a.GraceExpired,
	}}

	started := s.Phase == domain.PhaseInProgress || s.Phase == domain.PhaseRoundEnd
	if started && s.SeatedCount() < 2 {
		s.Phase = domain.PhaseFinished
		winnerID := ""
		for i := range s.Players {
			if s.Players[i].Seated() {
				winnerID = s.Players[i].ID
			}
		}
		events = append(events, domain.GameEndedEvent{
			Ver:      s.Version,
			WinnerID: winnerID,
			Reason:   "opponents_left",
		})
		return events, nil
	}

	if hadTurn {
		s.CurrentPlayerIndex = s.NextSeat(s.CurrentPlayerIndex)
		events = append(events, domain.TurnAdvancedEvent{
			Ver:      s.Version,
			PlayerID: s.Players[s.CurrentPlayerIndex].ID,
			Seat:     s.CurrentPlayerIndex,
		})
	}
	return events, nil
}

// requireTurn checks phase, seating and turn ownership for play/draw/pass.
func (e *Engine) requireTurn(s *domain.GameState, actorID string) (*domain.Player, error) {
	if s.Phase != domain.PhaseInProgress {
		return nil, domain.Violation(domain.RuleBadPhase, "game is not in progress (phase %s)", s.Phase)
	}
	p := s.FindPlayer(actorID)
	if p == nil || !p.Seated() {
		return nil, domain.Violation(domain.RuleNotSeated, "player %s is not seated", actorID)
	}
	cur := s.CurrentPlayer()
	if cur == nil || cur.ID != actorID {
		return nil, domain.Violation(domain.RuleNotYourTurn, "it is not %s's turn", actorID)
	}
	return p, nil
}

// legalPlay applies the active rule variant.
func (e *Engine) legalPlay(s *domain.GameState, c domain.Card) bool {
	switch e.settings.Variant {
	case domain.VariantFree:
		return true
	default: // classic
		top, ok := s.TopDiscard()
		if !ok {
			return true
		}
		return c.Suit == top.Suit || c.Rank == top.Rank
	}
}
