package tictactoe

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuran001/GameLauncher-Go/launcher"
)

func play(t *testing.T, moves string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	g := New(strings.NewReader(moves), &out)
	var got []launcher.Stat
	g.SetListener(launcher.ListenerFunc(func(s launcher.Stat) { got = append(got, s) }))
	require.NoError(t, g.Start(context.Background()))
	require.Len(t, got, 1)
	assert.Equal(t, "resultado", got[0].Key)
	assert.Equal(t, got[0], g.Stats(context.Background()))
	return got[0].Value, out.String()
}

func TestPlayerWins(t *testing.T) {
	// Computer fills 1 and 2 while X takes the right column.
	result, out := play(t, "3\n6\n9\n")
	assert.Equal(t, Win, result)
	assert.Contains(t, out, "Resultado: 1")
}

func TestComputerWins(t *testing.T) {
	// Computer takes 1, 2, 3 while X plays elsewhere.
	result, _ := play(t, "5\n9\n7\n")
	assert.Equal(t, Loss, result)
}

func TestDraw(t *testing.T) {
	// X: 5, 3, 4, 8, 9 against O: 1, 2, 6, 7.
	result, _ := play(t, "5\n3\n4\n8\n9\n")
	assert.Equal(t, Draw, result)
}

func TestInvalidMovesAreRetried(t *testing.T) {
	result, out := play(t, "0\nabc\n3\n3\n6\n9\n")
	assert.Equal(t, Win, result)
	assert.Contains(t, out, "Casilla no válida.")
}

func TestWinner(t *testing.T) {
	b := newBoard()
	assert.Equal(t, byte(empty), b.winner())
	b[2], b[4], b[6] = computer, computer, computer
	assert.Equal(t, byte(computer), b.winner())
	assert.True(t, b.over())
}
