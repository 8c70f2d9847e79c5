package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy consumed by the API layer:
//   - RuleViolationError: the action is not legal in the current state;
//     reported to the submitting client only, state unchanged.
//   - ErrNotFound: unknown room or player.
//   - ErrVersionConflict: optimistic check failed in the persistence gateway.
//   - StorageError: gateway failure; the room keeps serving from memory.

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrRoomClosed      = errors.New("room closed")
)

// RuleCode identifies why an action was rejected.
type RuleCode string

const (
	RuleRoomFull       RuleCode = "room_full"
	RuleGameInProgress RuleCode = "game_in_progress"
	RuleAlreadyJoined  RuleCode = "already_joined"
	RuleNotOwner       RuleCode = "not_owner"
	RuleBadPhase       RuleCode = "bad_phase"
	RuleNotEnough      RuleCode = "not_enough_players"
	RuleNotYourTurn    RuleCode = "not_your_turn"
	RuleCardNotInHand  RuleCode = "card_not_in_hand"
	RuleCardNotLegal   RuleCode = "card_not_legal"
	RuleDeckEmpty      RuleCode = "deck_empty"
	RuleDeckTooSmall   RuleCode = "deck_too_small"
	RuleNotSeated      RuleCode = "not_seated"
)

// RuleViolationError rejects an action without touching state.
type RuleViolationError struct {
	Code   RuleCode
	Reason string
}

func (e *RuleViolationError) Error() string {
	return fmt.Sprintf("rule violation (%s): %s", e.Code, e.Reason)
}

// Violation builds a RuleViolationError.
func Violation(code RuleCode, format string, args ...any) error {
	return &RuleViolationError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// IsRuleViolation reports whether err is a rule rejection.
func IsRuleViolation(err error) bool {
	var rv *RuleViolationError
	return errors.As(err, &rv)
}

// StorageError wraps a gateway failure so callers can distinguish it from a
// rule rejection or a version conflict.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is a persistence failure.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
