package app

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuran001/GameLauncher-Go/launcher"
	"github.com/liuran001/GameLauncher-Go/launcher/config"
)

const fooSource = `package foo

type Result struct {
	Key   string
	Label string
	Value string
}

type Listener interface {
	GameFinished(r Result)
}

type FooGame struct {
	listener Listener
}

func NewFooGame() *FooGame { return &FooGame{} }

func (g *FooGame) Start() {
	if g.listener != nil {
		g.listener.GameFinished(g.GetStats())
	}
}

func (g *FooGame) GetStats() Result {
	return Result{Key: "score", Label: "Puntos", Value: "42"}
}

func (g *FooGame) SetGameListener(l Listener) { g.listener = l }
`

func testConfig() *config.Config {
	conf := config.Defaults()
	conf.Set("LogDir", "")
	conf.Set("BundleDir", "plugins")
	conf.Set("RecordsDir", "records")
	return conf
}

func newTestApp(t *testing.T, fs afero.Fs, input string) (*App, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	a, err := New(context.Background(), Options{
		Config: testConfig(),
		FS:     fs,
		Stdin:  strings.NewReader(input),
		Stdout: out,
		Stderr: out,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a, out
}

func writeBundle(t *testing.T, fs afero.Fs, name string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for file, src := range files {
		w, err := zw.Create(file)
		require.NoError(t, err)
		_, err = w.Write([]byte(src))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, fs.MkdirAll("plugins", 0o755))
	require.NoError(t, afero.WriteFile(fs, "plugins/"+name+".zip", buf.Bytes(), 0o644))
}

func names(t *testing.T, a *App) []string {
	t.Helper()
	var out []string
	for _, e := range a.Registry.List() {
		out = append(out, e.Name)
	}
	return out
}

func TestEmptyBundleDirListsBuiltins(t *testing.T) {
	a, _ := newTestApp(t, afero.NewMemMapFs(), "")
	require.NoError(t, a.Registry.Load(context.Background()))

	assert.Equal(t, []string{"Clicker", "Dado", "Tres en Raya"}, names(t, a))
	for _, e := range a.Registry.List() {
		assert.True(t, e.Builtin, e.Name)
	}
}

func TestBundleGameJoinsCatalog(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeBundle(t, fs, "foo", map[string]string{"foo.go": fooSource})
	a, out := newTestApp(t, fs, "")
	ctx := context.Background()
	require.NoError(t, a.Registry.Load(ctx))

	assert.Equal(t, []string{"Clicker", "Dado", "Tres en Raya", "FooGame"}, names(t, a))
	entry, err := a.Registry.Get("FooGame")
	require.NoError(t, err)
	assert.False(t, entry.Builtin)

	sess, err := a.Sessions.Play(ctx, entry.Name, entry.Game)
	require.NoError(t, err)
	assert.Equal(t, []launcher.Stat{{Key: "score", Label: "Puntos", Value: 42}}, sess.Results)
	assert.Contains(t, out.String(), "Partida finalizada. Resultado: 42")

	best, err := a.Store.BestResults(ctx, "FooGame")
	require.NoError(t, err)
	require.Len(t, best, 1)
	assert.Equal(t, 42, best[0].Value)
}

func TestCatalogEntryDeliversResult(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeBundle(t, fs, "foo", map[string]string{"foo.go": fooSource})
	a, _ := newTestApp(t, fs, "")
	ctx := context.Background()
	require.NoError(t, a.Registry.Load(ctx))

	entry, err := a.Registry.Get("FooGame")
	require.NoError(t, err)

	var got []launcher.Stat
	entry.Game.SetListener(launcher.ListenerFunc(func(s launcher.Stat) { got = append(got, s) }))
	require.NoError(t, entry.Game.Start(ctx))

	assert.Equal(t, []launcher.Stat{{Key: "score", Label: "Puntos", Value: 42}}, got)
	assert.Equal(t, launcher.Stat{Key: "score", Label: "Puntos", Value: 42}, entry.Game.Stats(ctx))
}

func TestRunQuits(t *testing.T) {
	a, out := newTestApp(t, afero.NewMemMapFs(), "q\n")
	require.NoError(t, a.Run(context.Background()))

	assert.Contains(t, out.String(), "Tres en Raya")
	assert.Contains(t, out.String(), "¡Hasta pronto!")
}

func TestDisabledBundleSkipped(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeBundle(t, fs, "foo", map[string]string{"foo.go": fooSource})

	path := filepath.Join(t.TempDir(), "config.ini")
	ini := "BundleDir = plugins\nRecordsDir = records\nLogDir =\n\n[plugins.foo]\nenabled = false\n"
	require.NoError(t, os.WriteFile(path, []byte(ini), 0o644))

	a, err := New(context.Background(), Options{
		ConfigPath: path,
		FS:         fs,
		Stdin:      strings.NewReader(""),
		Stdout:     &bytes.Buffer{},
	})
	require.NoError(t, err)
	defer a.Shutdown(context.Background())

	require.NoError(t, a.Registry.Load(context.Background()))
	assert.Equal(t, 3, a.Registry.Count())
	assert.Empty(t, a.Bundles.Bundles())
}
