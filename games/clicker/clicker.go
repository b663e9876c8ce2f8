package clicker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/liuran001/GameLauncher-Go/launcher"
	"github.com/liuran001/GameLauncher-Go/launcher/builtin"
)

const (
	Name     = "Clicker"
	Duration = 10 * time.Second
)

// Game counts Enter presses within Duration. The first press after the
// deadline ends the round without counting.
type Game struct {
	in       io.Reader
	out      io.Writer
	duration time.Duration
	now      func() time.Time

	mu       sync.Mutex
	clicks   int
	listener launcher.Listener
}

func New(in io.Reader, out io.Writer) *Game {
	return &Game{in: in, out: out, duration: Duration, now: time.Now}
}

func (g *Game) Start(ctx context.Context) error {
	g.mu.Lock()
	g.clicks = 0
	g.mu.Unlock()

	fmt.Fprintf(g.out, "Pulsa Enter tantas veces como puedas en %d segundos.\n", int(g.duration/time.Second))
	fmt.Fprintln(g.out, "Pulsa Enter para empezar.")
	if _, err := builtin.ReadLine(g.in); err != nil {
		return fmt.Errorf("clicker: %w", err)
	}

	deadline := g.now().Add(g.duration)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := builtin.ReadLine(g.in)
		if g.now().After(deadline) {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("clicker: %w", err)
		}
		g.mu.Lock()
		g.clicks++
		n := g.clicks
		g.mu.Unlock()
		fmt.Fprintf(g.out, "Clicks: %d\n", n)
	}

	fmt.Fprintln(g.out, "¡Tiempo!")
	stat := g.Stats(ctx)
	g.mu.Lock()
	l := g.listener
	g.mu.Unlock()
	if l != nil {
		l.GameFinished(stat)
	}
	return nil
}

func (g *Game) Stats(context.Context) launcher.Stat {
	g.mu.Lock()
	defer g.mu.Unlock()
	return launcher.Stat{Key: "clicks", Label: "Clicks totales", Value: g.clicks}
}

func (g *Game) SetListener(l launcher.Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listener = l
}
