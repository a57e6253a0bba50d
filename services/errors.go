package services

import "errors"

// Error taxonomy. Handlers map these onto HTTP statuses: validation → 400,
// state conflicts → 409, unknown references → 404, transient infrastructure
// failures → 503.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnknownGame    = errors.New("unknown game type")

	ErrSessionNotFound = errors.New("session not found")
	ErrRatingNotFound  = errors.New("rating record not found")
	ErrNotParticipant  = errors.New("not a participant of this session")

	ErrNotYourTurn       = errors.New("not your turn")
	ErrIllegalMove       = errors.New("illegal move")
	ErrSessionConcluded  = errors.New("session already concluded")
	ErrSessionPaused     = errors.New("session paused awaiting reconnection")
	ErrSessionNotRunning = errors.New("session is not running")
	ErrAlreadyInSession  = errors.New("participant already in an open session")

	ErrLedgerUnavailable = errors.New("rating ledger unavailable")
)
