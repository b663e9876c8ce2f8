package launcher

import (
	"errors"
	"fmt"
	"sort"
)

// MaxRecords is the number of results kept per game.
const MaxRecords = 3

// Stat is one scoreable outcome of a play session.
type Stat struct {
	Key   string
	Label string
	Value int
}

// ErrorStat is reported when a game cannot produce its stats.
var ErrorStat = Stat{Key: "error", Label: "Error", Value: 0}

func (s Stat) String() string {
	return fmt.Sprintf("%s (%s): %d", s.Label, s.Key, s.Value)
}

// SortStats orders stats by value, highest first. Equal values keep their order.
func SortStats(stats []Stat) {
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Value > stats[j].Value
	})
}

// TopStats returns a sorted copy of stats truncated to MaxRecords.
func TopStats(stats []Stat) []Stat {
	result := make([]Stat, len(stats))
	copy(result, stats)
	SortStats(result)
	if len(result) > MaxRecords {
		result = result[:MaxRecords]
	}
	return result
}

// Listener receives the final stat of a play session.
type Listener interface {
	GameFinished(stat Stat)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(stat Stat)

func (f ListenerFunc) GameFinished(stat Stat) { f(stat) }

var (
	// ErrBusy is returned when a game is started while a session of it is running.
	ErrBusy = errors.New("launcher: game already running")

	// ErrNotFound is returned when no catalog entry has the requested name.
	ErrNotFound = errors.New("launcher: game not found")
)

// PlayError is a non-fatal failure of a play session, shown to the player
// as a notification.
type PlayError struct {
	Game string
	Err  error
}

func (e *PlayError) Error() string {
	return fmt.Sprintf("%s: %v", e.Game, e.Err)
}

func (e *PlayError) Unwrap() error {
	return e.Err
}
