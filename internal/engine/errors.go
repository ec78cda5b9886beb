// internal/engine/errors.go
package engine

import "errors"

// Rejections returned by Session commands. A rejected command never changes
// session state; use errors.Is to classify.
var (
	ErrNotYourTurn           = errors.New("not your turn")
	ErrIllegalCard           = errors.New("illegal card")
	ErrColorChoiceRequired   = errors.New("a color choice of red, blue, green or yellow is required")
	ErrColorChoiceNotAllowed = errors.New("color choice not allowed")
	ErrSessionEnded          = errors.New("session ended")
	ErrDeckExhausted         = errors.New("deck exhausted")

	ErrNotStarted          = errors.New("session not started")
	ErrAlreadyStarted      = errors.New("session already started")
	ErrSessionFull         = errors.New("session full")
	ErrNotEnoughPlayers    = errors.New("not enough players")
	ErrInvalidSeat         = errors.New("invalid seat")
	ErrCardNotInHand       = errors.New("card not in hand")
	ErrUnoNotAllowed       = errors.New("uno can only be called holding exactly one card")
	ErrChallengeNotAllowed = errors.New("no wild draw four to challenge")
	ErrRoundOver           = errors.New("round over")
	ErrRoundInProgress     = errors.New("round in progress")
	ErrUnknownCommand      = errors.New("unknown command")
	ErrCorruptSnapshot     = errors.New("corrupt snapshot")
)
