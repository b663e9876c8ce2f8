// Package console is the terminal menu of the launcher.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/liuran001/GameLauncher-Go/launcher"
	"github.com/liuran001/GameLauncher-Go/launcher/builtin"
	"github.com/liuran001/GameLauncher-Go/launcher/registry"
	"github.com/liuran001/GameLauncher-Go/launcher/session"
)

// Catalog is the part of the registry the menu uses.
type Catalog interface {
	List() []registry.Entry
	Get(name string) (registry.Entry, error)
	Count() int
	ReloadExternal(ctx context.Context) error
}

// Player runs a play session.
type Player interface {
	Play(ctx context.Context, name string, game launcher.Game) (session.Session, error)
	Running(name string) bool
}

type Console struct {
	in      io.Reader
	out     io.Writer
	catalog Catalog
	player  Player
	store   launcher.ScoreStore
	logger  launcher.Logger

	outMu sync.Mutex
}

// New creates the menu. in is shared with the games and must be read
// line by line only.
func New(in io.Reader, out io.Writer, catalog Catalog, player Player, store launcher.ScoreStore, logger launcher.Logger) *Console {
	return &Console{
		in:      in,
		out:     out,
		catalog: catalog,
		player:  player,
		store:   store,
		logger:  logger.With("component", "console"),
	}
}

// SetPlayer sets the session runner.
func (c *Console) SetPlayer(p Player) { c.player = p }

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// Notify shows a finished session. It is the session finish callback.
func (c *Console) Notify(game string, stat launcher.Stat) {
	c.printf("Partida finalizada. Resultado: %d\n", stat.Value)
}

// Run shows the menu until the player quits, input ends or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		entries := c.catalog.List()
		c.menu(entries)

		line, err := builtin.ReadLine(c.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		choice := strings.ToLower(strings.TrimSpace(line))
		switch choice {
		case "":
			continue
		case "q", "salir":
			c.printf("¡Hasta pronto!\n")
			return nil
		case "p":
			c.reload(ctx)
		case "r":
			if err := c.showRecords(ctx, entries); err != nil {
				return err
			}
		case "c":
			if err := c.clearRecords(ctx, entries); err != nil {
				return err
			}
		default:
			entry, ok := pick(entries, choice)
			if !ok {
				c.printf("Opción no válida.\n")
				continue
			}
			c.play(ctx, entry)
		}
	}
}

func (c *Console) menu(entries []registry.Entry) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintln(c.out, "\n=== Game Launcher ===")
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "No hay juegos disponibles.")
	}
	for i, e := range entries {
		marker := ""
		if !e.Builtin {
			marker = " [plugin]"
		}
		if c.player != nil && c.player.Running(e.Name) {
			marker += " (en curso)"
		}
		fmt.Fprintf(c.out, "%d. %s%s\n", i+1, e.Name, marker)
	}
	fmt.Fprintln(c.out, "r. Ver records")
	fmt.Fprintln(c.out, "c. Limpiar records")
	fmt.Fprintln(c.out, "p. Recargar plugins")
	fmt.Fprintln(c.out, "q. Salir")
	fmt.Fprint(c.out, "Elige una opción: ")
}

func pick(entries []registry.Entry, choice string) (registry.Entry, bool) {
	n, err := strconv.Atoi(choice)
	if err != nil || n < 1 || n > len(entries) {
		return registry.Entry{}, false
	}
	return entries[n-1], true
}

func (c *Console) play(ctx context.Context, picked registry.Entry) {
	// The menu may be stale after a background reload.
	entry, err := c.catalog.Get(picked.Name)
	if err != nil {
		if errors.Is(err, launcher.ErrNotFound) {
			c.printf("%s ya no está disponible.\n", picked.Name)
			return
		}
		c.printf("Error en %s: %v\n", picked.Name, err)
		return
	}
	if c.player.Running(entry.Name) {
		c.printf("%s ya está en marcha.\n", entry.Name)
		return
	}
	c.printf("Iniciando %s...\n", entry.Name)
	_, err = c.player.Play(ctx, entry.Name, entry.Game)
	if err == nil {
		return
	}
	var playErr *launcher.PlayError
	switch {
	case errors.Is(err, launcher.ErrBusy):
		c.printf("%s ya está en marcha.\n", entry.Name)
	case errors.As(err, &playErr):
		c.printf("Aviso: no se pudo jugar a %s: %v\n", entry.Name, playErr.Err)
	default:
		c.printf("Error en %s: %v\n", entry.Name, err)
	}
}

func (c *Console) reload(ctx context.Context) {
	if err := c.catalog.ReloadExternal(ctx); err != nil {
		c.logger.Error("reload failed", "error", err)
		c.printf("No se pudieron recargar los plugins: %v\n", err)
		return
	}
	c.printf("Plugins recargados. %d juegos disponibles.\n", c.catalog.Count())
}

func (c *Console) askGame(entries []registry.Entry, prompt string) (string, bool, error) {
	c.printf("%s", prompt)
	line, err := builtin.ReadLine(c.in)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", false, nil
		}
		return "", false, err
	}
	choice := strings.ToLower(strings.TrimSpace(line))
	if choice == "todos" {
		return "", true, nil
	}
	entry, ok := pick(entries, choice)
	if !ok {
		c.printf("Opción no válida.\n")
		return "", false, nil
	}
	return entry.Name, false, nil
}

func (c *Console) showRecords(ctx context.Context, entries []registry.Entry) error {
	name, all, err := c.askGame(entries, "Número de juego (o 'todos'): ")
	if err != nil {
		return err
	}
	var names []string
	switch {
	case all:
		for _, e := range entries {
			names = append(names, e.Name)
		}
	case name != "":
		names = []string{name}
	default:
		return nil
	}
	for _, n := range names {
		best, err := c.store.BestResults(ctx, n)
		if err != nil {
			c.logger.Error("read records failed", "game", n, "error", err)
			c.printf("No se pudieron leer los records de %s.\n", n)
			continue
		}
		c.printf("Records de %s:\n", n)
		if len(best) == 0 {
			c.printf("  (sin records)\n")
		}
		for i, s := range best {
			c.printf("  %d. %s\n", i+1, s)
		}
	}
	return nil
}

func (c *Console) clearRecords(ctx context.Context, entries []registry.Entry) error {
	name, all, err := c.askGame(entries, "Número de juego a limpiar (o 'todos'): ")
	if err != nil {
		return err
	}
	switch {
	case all:
		err = c.store.ClearAll(ctx)
	case name != "":
		err = c.store.Clear(ctx, name)
	default:
		return nil
	}
	if err != nil {
		c.logger.Error("clear records failed", "game", name, "error", err)
		c.printf("No se pudieron limpiar los records: %v\n", err)
		return nil
	}
	c.printf("Records limpiados.\n")
	return nil
}
