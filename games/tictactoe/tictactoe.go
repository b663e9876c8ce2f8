package tictactoe

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/liuran001/GameLauncher-Go/launcher"
	"github.com/liuran001/GameLauncher-Go/launcher/builtin"
)

const Name = "Tres en Raya"

const (
	empty    = ' '
	player   = 'X'
	computer = 'O'
)

// Outcomes reported as the result value.
const (
	Win  = 1
	Draw = 0
	Loss = -1
)

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

type board [9]byte

func newBoard() board {
	var b board
	for i := range b {
		b[i] = empty
	}
	return b
}

func (b *board) winner() byte {
	for _, line := range lines {
		if c := b[line[0]]; c != empty && c == b[line[1]] && c == b[line[2]] {
			return c
		}
	}
	return empty
}

func (b *board) full() bool {
	for _, c := range b {
		if c == empty {
			return false
		}
	}
	return true
}

func (b *board) over() bool {
	return b.winner() != empty || b.full()
}

// computerMove takes the first free cell.
func (b *board) computerMove() {
	for i, c := range b {
		if c == empty {
			b[i] = computer
			return
		}
	}
}

func (b *board) render(w io.Writer) {
	for row := 0; row < 3; row++ {
		cells := make([]string, 3)
		for col := 0; col < 3; col++ {
			i := row*3 + col
			if b[i] == empty {
				cells[col] = strconv.Itoa(i + 1)
			} else {
				cells[col] = string(b[i])
			}
		}
		fmt.Fprintf(w, " %s\n", strings.Join(cells, " | "))
		if row < 2 {
			fmt.Fprintln(w, "---+---+---")
		}
	}
}

// Game is tic-tac-toe against a first-free-cell opponent.
type Game struct {
	in  io.Reader
	out io.Writer

	mu       sync.Mutex
	result   int
	listener launcher.Listener
}

func New(in io.Reader, out io.Writer) *Game {
	return &Game{in: in, out: out}
}

func (g *Game) Start(ctx context.Context) error {
	b := newBoard()
	for !b.over() {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.render(g.out)
		cell, err := g.move(&b)
		if err != nil {
			return fmt.Errorf("tres en raya: %w", err)
		}
		b[cell] = player
		if b.over() {
			break
		}
		b.computerMove()
	}
	b.render(g.out)

	result := Draw
	switch b.winner() {
	case player:
		result = Win
	case computer:
		result = Loss
	}
	g.mu.Lock()
	g.result = result
	l := g.listener
	g.mu.Unlock()

	fmt.Fprintf(g.out, "Resultado: %d\n", result)
	if l != nil {
		l.GameFinished(g.Stats(ctx))
	}
	return nil
}

func (g *Game) move(b *board) (int, error) {
	for {
		fmt.Fprint(g.out, "Tu jugada (1-9): ")
		line, err := builtin.ReadLine(g.in)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && n >= 1 && n <= 9 && b[n-1] == empty {
			return n - 1, nil
		}
		fmt.Fprintln(g.out, "Casilla no válida.")
	}
}

func (g *Game) Stats(context.Context) launcher.Stat {
	g.mu.Lock()
	defer g.mu.Unlock()
	return launcher.Stat{Key: "resultado", Label: "Resultado", Value: g.result}
}

func (g *Game) SetListener(l launcher.Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listener = l
}
