package games

import (
	"encoding/json"
	"errors"
)

var ErrColumnFull = errors.New("column is full")

const (
	connectFourRows = 6
	connectFourCols = 7
	connectFourLine = 4
)

// connectFourState stores the grid row-major, row 0 at the bottom. Cells
// hold the seat index that played them, or -1 when empty.
type connectFourState struct {
	Grid [connectFourRows][connectFourCols]int `json:"grid"`
}

type connectFourMove struct {
	Column int `json:"column"`
}

// ConnectFour is the 6x7 drop-four-in-a-row two-player variant.
type ConnectFour struct{}

func NewConnectFour() *ConnectFour { return &ConnectFour{} }

func (c *ConnectFour) Name() string         { return "connectfour" }
func (c *ConnectFour) RequiredPlayers() int { return 2 }

func (c *ConnectFour) CreateInitialState(config map[string]string) (State, error) {
	s := &connectFourState{}
	for r := 0; r < connectFourRows; r++ {
		for col := 0; col < connectFourCols; col++ {
			s.Grid[r][col] = -1
		}
	}
	return s, nil
}

func (c *ConnectFour) IsLegal(state State, seat int, move json.RawMessage) error {
	s := state.(*connectFourState)
	var m connectFourMove
	if err := json.Unmarshal(move, &m); err != nil {
		return ErrInvalidMove
	}
	if m.Column < 0 || m.Column >= connectFourCols {
		return ErrInvalidMove
	}
	if s.Grid[connectFourRows-1][m.Column] != -1 {
		return ErrColumnFull
	}
	return nil
}

func (c *ConnectFour) Apply(state State, seat int, move json.RawMessage) (State, error) {
	s := state.(*connectFourState)
	var m connectFourMove
	if err := json.Unmarshal(move, &m); err != nil {
		return nil, ErrInvalidMove
	}
	next := *s
	for r := 0; r < connectFourRows; r++ {
		if next.Grid[r][m.Column] == -1 {
			next.Grid[r][m.Column] = seat
			break
		}
	}
	return &next, nil
}

func (c *ConnectFour) CheckEnd(state State) *Verdict {
	s := state.(*connectFourState)

	dirs := [][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	for r := 0; r < connectFourRows; r++ {
		for col := 0; col < connectFourCols; col++ {
			seat := s.Grid[r][col]
			if seat == -1 {
				continue
			}
			for _, d := range dirs {
				count := 1
				rr, cc := r+d[0], col+d[1]
				for rr >= 0 && rr < connectFourRows && cc >= 0 && cc < connectFourCols && s.Grid[rr][cc] == seat {
					count++
					if count == connectFourLine {
						return &Verdict{WinnerSeat: seat}
					}
					rr += d[0]
					cc += d[1]
				}
			}
		}
	}

	for col := 0; col < connectFourCols; col++ {
		if s.Grid[connectFourRows-1][col] == -1 {
			return nil
		}
	}
	return &Verdict{WinnerSeat: -1, Draw: true}
}

func (c *ConnectFour) PublicView(state State) interface{} {
	return state.(*connectFourState)
}
