package dynplugin

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"sort"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func readTestBundle(t *testing.T, name string, files map[string]string) *Bundle {
	t.Helper()
	data := zipBytes(t, files)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	b, err := ReadBundle(zr, name, name+".zip")
	require.NoError(t, err)
	return b
}

func writeTestBundle(t *testing.T, fs afero.Fs, dir, name string, files map[string]string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, name+".zip"), zipBytes(t, files), 0o644))
}

func unitNames(units []CodeUnit) []string {
	names := make([]string, 0, len(units))
	for _, u := range units {
		names = append(names, u.Name)
	}
	return names
}

const snakeSource = `package snake

type Stat struct {
	Key   string
	Label string
	Value int
}

type GameListener interface {
	GameFinished(s Stat)
}

type Snake struct {
	listener GameListener
	length   int
}

var shared = &Snake{}

func GetInstance() *Snake { return shared }

func (s *Snake) Start() {
	s.length += 4
	if s.listener != nil {
		s.listener.GameFinished(s.GetStats())
	}
}

func (s *Snake) GetStats() Stat {
	return Stat{Key: "length", Label: "Longitud", Value: s.length}
}

func (s *Snake) SetGameListener(l GameListener) { s.listener = l }
`
