package dice

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/liuran001/GameLauncher-Go/launcher"
	"github.com/liuran001/GameLauncher-Go/launcher/builtin"
)

const (
	Name   = "Dado"
	Rounds = 5
)

// Game is a five-roll even/odd guessing game.
type Game struct {
	in   io.Reader
	out  io.Writer
	roll func() int

	mu       sync.Mutex
	hits     int
	listener launcher.Listener
}

func New(in io.Reader, out io.Writer) *Game {
	return &Game{in: in, out: out, roll: func() int { return 1 + rand.IntN(6) }}
}

func (g *Game) Start(ctx context.Context) error {
	g.mu.Lock()
	g.hits = 0
	g.mu.Unlock()

	fmt.Fprintf(g.out, "Apuesta por par o impar en %d tiradas.\n", Rounds)
	for round := 1; round <= Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		even, err := g.bet(round)
		if err != nil {
			return fmt.Errorf("dado: %w", err)
		}
		value := g.roll()
		hit := (value%2 == 0) == even

		g.mu.Lock()
		if hit {
			g.hits++
		}
		hits := g.hits
		g.mu.Unlock()

		verdict := "Fallaste."
		if hit {
			verdict = "¡Acierto!"
		}
		fmt.Fprintf(g.out, "Sacaste %d. %s Total: %d | Aciertos: %d\n", value, verdict, round, hits)
	}

	stat := g.Stats(ctx)
	g.mu.Lock()
	l := g.listener
	g.mu.Unlock()
	if l != nil {
		l.GameFinished(stat)
	}
	return nil
}

// bet asks until the player answers par or impar.
func (g *Game) bet(round int) (bool, error) {
	for {
		fmt.Fprintf(g.out, "Tirada %d: (p)ar o (i)mpar? ", round)
		line, err := builtin.ReadLine(g.in)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "p", "par":
			return true, nil
		case "i", "impar":
			return false, nil
		}
		fmt.Fprintln(g.out, "Respuesta no válida.")
	}
}

func (g *Game) Stats(context.Context) launcher.Stat {
	g.mu.Lock()
	defer g.mu.Unlock()
	return launcher.Stat{Key: "aciertos", Label: "Aciertos en 5 tiradas", Value: g.hits}
}

func (g *Game) SetListener(l launcher.Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listener = l
}
