package clicker

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuran001/GameLauncher-Go/launcher"
	"github.com/liuran001/GameLauncher-Go/launcher/builtin"
)

// steppingClock advances one second on every reading.
func steppingClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestClickerCountsUntilDeadline(t *testing.T) {
	var out bytes.Buffer
	g := New(strings.NewReader(strings.Repeat("\n", 30)), &out)
	g.duration = 5 * time.Second
	g.now = steppingClock()

	var got []launcher.Stat
	g.SetListener(launcher.ListenerFunc(func(s launcher.Stat) { got = append(got, s) }))
	require.NoError(t, g.Start(context.Background()))

	want := launcher.Stat{Key: "clicks", Label: "Clicks totales", Value: 5}
	assert.Equal(t, []launcher.Stat{want}, got)
	assert.Equal(t, want, g.Stats(context.Background()))
	assert.Contains(t, out.String(), "¡Tiempo!")
}

func TestClickerResetsBetweenRounds(t *testing.T) {
	g := New(strings.NewReader(strings.Repeat("\n", 30)), &bytes.Buffer{})
	g.duration = 3 * time.Second
	g.now = steppingClock()

	require.NoError(t, g.Start(context.Background()))
	first := g.Stats(context.Background()).Value
	require.NoError(t, g.Start(context.Background()))
	assert.Equal(t, first, g.Stats(context.Background()).Value)
}

func TestClickerInputClosed(t *testing.T) {
	g := New(strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, g.Start(context.Background()))
}

func TestClickerRegistered(t *testing.T) {
	factory, ok := builtin.Get(Name)
	require.True(t, ok)
	game, err := factory(builtin.Deps{In: strings.NewReader(""), Out: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.Equal(t, 0, game.Stats(context.Background()).Value)
}
