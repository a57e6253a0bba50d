package games

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ttMove(t *testing.T, position int) json.RawMessage {
	t.Helper()
	payload, err := json.Marshal(map[string]int{"position": position})
	require.NoError(t, err)
	return payload
}

func TestTicTacToeLegality(t *testing.T) {
	g := NewTicTacToe()
	state, err := g.CreateInitialState(nil)
	require.NoError(t, err)

	assert.NoError(t, g.IsLegal(state, 0, ttMove(t, 4)))
	assert.ErrorIs(t, g.IsLegal(state, 0, ttMove(t, 9)), ErrInvalidMove)
	assert.ErrorIs(t, g.IsLegal(state, 0, ttMove(t, -1)), ErrInvalidMove)
	assert.ErrorIs(t, g.IsLegal(state, 0, json.RawMessage(`not json`)), ErrInvalidMove)

	state, err = g.Apply(state, 0, ttMove(t, 4))
	require.NoError(t, err)
	assert.ErrorIs(t, g.IsLegal(state, 1, ttMove(t, 4)), ErrPositionTaken)
}

func TestTicTacToeWin(t *testing.T) {
	g := NewTicTacToe()
	state, err := g.CreateInitialState(nil)
	require.NoError(t, err)

	// Seat 0 takes the top row, seat 1 scatters.
	plays := []struct {
		seat     int
		position int
	}{
		{0, 0}, {1, 3}, {0, 1}, {1, 4},
	}
	for _, p := range plays {
		state, err = g.Apply(state, p.seat, ttMove(t, p.position))
		require.NoError(t, err)
		require.Nil(t, g.CheckEnd(state))
	}

	state, err = g.Apply(state, 0, ttMove(t, 2))
	require.NoError(t, err)

	verdict := g.CheckEnd(state)
	require.NotNil(t, verdict)
	assert.Equal(t, 0, verdict.WinnerSeat)
	assert.False(t, verdict.Draw)
}

func TestTicTacToeDraw(t *testing.T) {
	g := NewTicTacToe()
	state, err := g.CreateInitialState(nil)
	require.NoError(t, err)

	// X O X / X O O / O X X — full board, no line.
	seats := []int{0, 1, 0, 0, 1, 1, 1, 0, 0}
	order := []int{0, 1, 2, 3, 4, 5, 6, 7, 8}
	for i, position := range order {
		state, err = g.Apply(state, seats[i], ttMove(t, position))
		require.NoError(t, err)
	}

	verdict := g.CheckEnd(state)
	require.NotNil(t, verdict)
	assert.True(t, verdict.Draw)
	assert.Equal(t, -1, verdict.WinnerSeat)
}

func TestTicTacToeApplyDoesNotMutateInput(t *testing.T) {
	g := NewTicTacToe()
	state, err := g.CreateInitialState(nil)
	require.NoError(t, err)

	next, err := g.Apply(state, 0, ttMove(t, 0))
	require.NoError(t, err)

	assert.Equal(t, -1, state.(*ticTacToeState).Board[0])
	assert.Equal(t, 0, next.(*ticTacToeState).Board[0])
}
