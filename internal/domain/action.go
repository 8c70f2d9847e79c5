package domain

import (
	"encoding/json"
	"fmt"
)

// ActionKind discriminates the closed set of player actions.
type ActionKind string

const (
	ActionJoin      ActionKind = "join"
	ActionLeave     ActionKind = "leave"
	ActionPlayCard  ActionKind = "play_card"
	ActionDrawCard  ActionKind = "draw_card"
	ActionPassTurn  ActionKind = "pass_turn"
	ActionStartGame ActionKind = "start_game"
)

// Action is a player-initiated request to change game state. The variant set
// is closed; the rule engine handles every kind exhaustively.
type Action interface {
	Kind() ActionKind
	Actor() string
	isAction()
}

type baseAction struct {
	ActorID string `json:"actor_id"`
}

func (a baseAction) Actor() string { return a.ActorID }
func (baseAction) isAction()       {}

// JoinAction seats a new player.
type JoinAction struct {
	baseAction
	DisplayName string `json:"display_name"`
}

func (JoinAction) Kind() ActionKind { return ActionJoin }

// LeaveAction marks the actor's seat as left.
type LeaveAction struct {
	baseAction
	// GraceExpired distinguishes an explicit leave from a grace-period expiry.
	GraceExpired bool `json:"grace_expired,omitempty"`
}

func (LeaveAction) Kind() ActionKind { return ActionLeave }

// PlayCardAction moves a card from the actor's hand to the discard pile.
type PlayCardAction struct {
	baseAction
	Card Card `json:"card"`
}

func (PlayCardAction) Kind() ActionKind { return ActionPlayCard }

// DrawCardAction moves the top deck card to the actor's hand.
type DrawCardAction struct {
	baseAction
}

func (DrawCardAction) Kind() ActionKind { return ActionDrawCard }

// PassTurnAction hands the turn to the next seated player.
type PassTurnAction struct {
	baseAction
}

func (PassTurnAction) Kind() ActionKind { return ActionPassTurn }

// StartGameAction shuffles and deals; owner only.
type StartGameAction struct {
	baseAction
}

func (StartGameAction) Kind() ActionKind { return ActionStartGame }

// NewJoin builds a JoinAction.
func NewJoin(actorID, displayName string) JoinAction {
	return JoinAction{baseAction: baseAction{ActorID: actorID}, DisplayName: displayName}
}

// NewLeave builds a LeaveAction.
func NewLeave(actorID string, graceExpired bool) LeaveAction {
	return LeaveAction{baseAction: baseAction{ActorID: actorID}, GraceExpired: graceExpired}
}

// NewPlayCard builds a PlayCardAction.
func NewPlayCard(actorID string, card Card) PlayCardAction {
	return PlayCardAction{baseAction: baseAction{ActorID: actorID}, Card: card}
}

// NewDrawCard builds a DrawCardAction.
func NewDrawCard(actorID string) DrawCardAction {
	return DrawCardAction{baseAction: baseAction{ActorID: actorID}}
}

// NewPassTurn builds a PassTurnAction.
func NewPassTurn(actorID string) PassTurnAction {
	return PassTurnAction{baseAction: baseAction{ActorID: actorID}}
}

// NewStartGame builds a StartGameAction.
func NewStartGame(actorID string) StartGameAction {
	return StartGameAction{baseAction: baseAction{ActorID: actorID}}
}

// actionEnvelope is the wire shape of an inbound action frame.
type actionEnvelope struct {
	Type        ActionKind `json:"type"`
	DisplayName string     `json:"display_name,omitempty"`
	Card        *Card      `json:"card,omitempty"`
}

// DecodeAction parses a wire action for the given authenticated actor. The
// actor identity always comes from the verified token, never from the payload.
func DecodeAction(actorID string, raw []byte) (Action, error) {
	var env actionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	switch env.Type {
	case ActionJoin:
		return NewJoin(actorID, env.DisplayName), nil
	case ActionLeave:
		return NewLeave(actorID, false), nil
	case ActionPlayCard:
		if env.Card == nil {
			return nil, fmt.Errorf("play_card requires a card")
		}
		return NewPlayCard(actorID, *env.Card), nil
	case ActionDrawCard:
		return NewDrawCard(actorID), nil
	case ActionPassTurn:
		return NewPassTurn(actorID), nil
	case ActionStartGame:
		return NewStartGame(actorID), nil
	default:
		return nil, fmt.Errorf("unknown action type: %s", env.Type)
	}
}
