// Package builtin keeps the factories of the games that ship with the
// launcher. Game packages register themselves from init.
package builtin

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/liuran001/GameLauncher-Go/launcher"
)

// Deps are the resources a built-in game is created with.
type Deps struct {
	// In is shared with the menu; games must not buffer past a line.
	In     io.Reader
	Out    io.Writer
	Logger launcher.Logger
}

// Factory creates a built-in game.
type Factory func(deps Deps) (launcher.Game, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register registers a game factory by display name.
func Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("game name required")
	}
	if factory == nil {
		return fmt.Errorf("game factory required")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("game %s already registered", name)
	}
	factories[name] = factory
	return nil
}

// MustRegister is Register for init functions.
func MustRegister(name string, factory Factory) {
	if err := Register(name, factory); err != nil {
		panic(err)
	}
}

// Get returns a registered factory by name.
func Get(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	factory, ok := factories[name]
	return factory, ok
}

// Names returns all registered game names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	nameList := make([]string, 0, len(factories))
	for name := range factories {
		nameList = append(nameList, name)
	}
	sort.Strings(nameList)
	return nameList
}

// ReadLine reads one line from r without consuming anything after it.
// The trailing newline and carriage return are dropped.
func ReadLine(r io.Reader) (string, error) {
	var line []byte
	if br, ok := r.(interface{ ReadString(byte) (string, error) }); ok {
		s, err := br.ReadString('\n')
		line = []byte(s)
		if err != nil && (err != io.EOF || len(line) == 0) {
			return "", err
		}
	} else {
		buf := make([]byte, 1)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				if buf[0] == '\n' {
					break
				}
				line = append(line, buf[0])
			}
			if err == io.EOF && len(line) > 0 {
				break
			}
			if err != nil {
				return "", err
			}
		}
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}
