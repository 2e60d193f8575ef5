package assetcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"habit_notifier/assets"
	"habit_notifier/internal/infra/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivate_RemovesStaleVersions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "habit-tracker-v0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "habit-tracker-v0", "icon.svg"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644))

	src := fstest.MapFS{
		"icon.svg":  {Data: []byte("<svg>icon</svg>")},
		"badge.svg": {Data: []byte("<svg>badge</svg>")},
	}
	c := New(dir, "habit-tracker-v1", src, []string{"icon.svg", "badge.svg"}, logger.Discard())
	fixed := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	require.NoError(t, c.Activate(context.Background()))

	_, err := os.Stat(filepath.Join(dir, "habit-tracker-v0"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err)

	icon, err := os.ReadFile(c.Path("icon.svg"))
	require.NoError(t, err)
	assert.Equal(t, "<svg>icon</svg>", string(icon))

	m, err := c.ReadManifest()
	require.NoError(t, err)
	assert.Equal(t, "habit-tracker-v1", m.Name)
	assert.Equal(t, []string{"icon.svg", "badge.svg"}, m.Files)
	assert.True(t, fixed.Equal(m.ActivatedAt))
}

func TestActivate_Idempotent(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, "habit-tracker-v1", assets.FS, assets.List(), logger.Discard())

	require.NoError(t, c.Activate(context.Background()))
	require.NoError(t, c.Activate(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "habit-tracker-v1", entries[0].Name())
	assert.FileExists(t, c.Path(assets.Badge))
}

func TestActivate_MissingAsset(t *testing.T) {
	c := New(t.TempDir(), "v1", fstest.MapFS{}, []string{"icon.svg"}, logger.Discard())
	assert.Error(t, c.Activate(context.Background()))
}
