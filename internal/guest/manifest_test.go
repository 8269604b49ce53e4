package guest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "guests.yaml")
	write(t, yamlPath, `
guests:
  - name: counter
    source: guests/counter.wasm
  - source: https://example.com/apps/todo.js
`)
	tomlPath := filepath.Join(dir, "guests.toml")
	write(t, tomlPath, `
[[guests]]
name = "counter"
source = "guests/counter.wasm"

[[guests]]
source = "https://example.com/apps/todo.js"
`)

	want := &Manifest{Guests: []Entry{
		{Name: "counter", Source: filepath.Join(dir, "guests", "counter.wasm")},
		{Name: "todo", Source: "https://example.com/apps/todo.js"},
	}}
	for _, path := range []string{yamlPath, tomlPath} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			m, err := LoadManifest(path)
			require.NoError(t, err)
			assert.Equal(t, want, m)
		})
	}
}

func TestLoadManifestErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		file string
		body string
	}{
		{"guests.json", `{}`},
		{"nosource.yaml", "guests:\n  - name: x\n"},
		{"broken.toml", "[[guests]\n"},
		{"longname.yml", "guests:\n  - name: " + strings.Repeat("a", 300) + "\n    source: a.wasm\n"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			write(t, path, tt.body)
			_, err := LoadManifest(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadManifest(filepath.Join(dir, "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.wasm", "sub/b.js", "sub/deep/c.wasm.gz", "notes.txt", "sub/d.json"} {
		write(t, filepath.Join(dir, name), "x")
	}

	got, err := Discover(context.Background(), dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.wasm"),
		filepath.Join(dir, "sub", "b.js"),
		filepath.Join(dir, "sub", "deep", "c.wasm.gz"),
	}, got)

	got, err = Discover(context.Background(), dir, "sub/*.js")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "sub", "b.js")}, got)

	_, err = Discover(context.Background(), dir, "[")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Discover(ctx, dir, "")
	assert.ErrorIs(t, err, context.Canceled)
}
