package games

import (
	"encoding/json"
	"errors"
)

var (
	ErrInvalidMove   = errors.New("invalid move")
	ErrPositionTaken = errors.New("position already taken")
)

// ticTacToeWins defines all possible winning combinations
var ticTacToeWins = [][]int{
	{0, 1, 2}, // top row
	{3, 4, 5}, // middle row
	{6, 7, 8}, // bottom row
	{0, 3, 6}, // left column
	{1, 4, 7}, // middle column
	{2, 5, 8}, // right column
	{0, 4, 8}, // diagonal
	{2, 4, 6}, // anti-diagonal
}

// ticTacToeState is a flat 3x3 board. Cells hold the seat index that played
// them, or -1 when empty.
type ticTacToeState struct {
	Board [9]int `json:"board"`
}

type ticTacToeMove struct {
	Position int `json:"position"`
}

// TicTacToe is the 3x3 two-player variant.
type TicTacToe struct{}

func NewTicTacToe() *TicTacToe { return &TicTacToe{} }

func (t *TicTacToe) Name() string         { return "tictactoe" }
func (t *TicTacToe) RequiredPlayers() int { return 2 }

func (t *TicTacToe) CreateInitialState(config map[string]string) (State, error) {
	s := &ticTacToeState{}
	for i := range s.Board {
		s.Board[i] = -1
	}
	return s, nil
}

func (t *TicTacToe) IsLegal(state State, seat int, move json.RawMessage) error {
	s := state.(*ticTacToeState)
	var m ticTacToeMove
	if err := json.Unmarshal(move, &m); err != nil {
		return ErrInvalidMove
	}
	if m.Position < 0 || m.Position > 8 {
		return ErrInvalidMove
	}
	if s.Board[m.Position] != -1 {
		return ErrPositionTaken
	}
	return nil
}

func (t *TicTacToe) Apply(state State, seat int, move json.RawMessage) (State, error) {
	s := state.(*ticTacToeState)
	var m ticTacToeMove
	if err := json.Unmarshal(move, &m); err != nil {
		return nil, ErrInvalidMove
	}
	next := *s
	next.Board[m.Position] = seat
	return &next, nil
}

func (t *TicTacToe) CheckEnd(state State) *Verdict {
	s := state.(*ticTacToeState)
	for _, condition := range ticTacToeWins {
		a, b, c := condition[0], condition[1], condition[2]
		if s.Board[a] != -1 && s.Board[a] == s.Board[b] && s.Board[b] == s.Board[c] {
			return &Verdict{WinnerSeat: s.Board[a]}
		}
	}
	for _, cell := range s.Board {
		if cell == -1 {
			return nil
		}
	}
	return &Verdict{WinnerSeat: -1, Draw: true}
}

func (t *TicTacToe) PublicView(state State) interface{} {
	return state.(*ticTacToeState)
}
