package games

import "encoding/json"

// State is the variant-owned board representation. The engine never looks
// inside it; it only threads it through the Rules contract.
type State interface{}

// Verdict is what CheckEnd reports when a game is over. WinnerSeat is the
// rotation index of the winning seat, or -1 for a draw.
type Verdict struct {
	WinnerSeat int
	Draw       bool
}

// Rules is the capability contract one game variant implements. Seats are
// rotation indices 0..RequiredPlayers-1; the session layer owns the mapping
// from participants to seats, so rules stay pure board logic.
type Rules interface {
	// Name returns the game type key this variant registers under.
	Name() string

	// RequiredPlayers is the exact seat count a session of this game needs.
	RequiredPlayers() int

	// CreateInitialState builds a fresh board from per-queue preferences.
	CreateInitialState(config map[string]string) (State, error)

	// IsLegal reports whether the seat may play the move on the state.
	// A nil error means legal.
	IsLegal(state State, seat int, move json.RawMessage) error

	// Apply plays a legal move and returns the successor state.
	Apply(state State, seat int, move json.RawMessage) (State, error)

	// CheckEnd returns a non-nil verdict once the game is decided.
	CheckEnd(state State) *Verdict

	// PublicView returns the client-safe projection of the state.
	PublicView(state State) interface{}
}
