package assetcache

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pquerna/ffjson/ffjson"
	"github.com/sirupsen/logrus"
)

const manifestFile = "manifest.json"

// Manifest describes one materialised cache version.
type Manifest struct {
	Name        string    `json:"name"`
	Files       []string  `json:"files"`
	ActivatedAt time.Time `json:"activatedAt"`
}

// Cache keeps the current version of the static assets under dir/name.
// Sibling directories with another name belong to older versions.
type Cache struct {
	dir    string
	name   string
	src    fs.FS
	files  []string
	logger *logrus.Entry
	now    func() time.Time
}

func New(dir, name string, src fs.FS, files []string, logger *logrus.Entry) *Cache {
	return &Cache{
		dir:    dir,
		name:   name,
		src:    src,
		files:  files,
		logger: logger,
		now:    time.Now,
	}
}

// Activate removes stale versions and writes the current assets.
func (c *Cache) Activate(ctx context.Context) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to list cache dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == c.name {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return fmt.Errorf("failed to remove stale cache %s: %w", e.Name(), err)
		}
		c.logger.WithField("cache", e.Name()).Info("Stale asset cache removed")
	}

	current := c.versionDir()
	if err := os.MkdirAll(current, 0o755); err != nil {
		return fmt.Errorf("failed to create cache %s: %w", c.name, err)
	}
	for _, name := range c.files {
		data, err := fs.ReadFile(c.src, name)
		if err != nil {
			return fmt.Errorf("failed to read asset %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(current, name), data, 0o644); err != nil {
			return fmt.Errorf("failed to write asset %s: %w", name, err)
		}
	}

	manifest, err := ffjson.Marshal(&Manifest{Name: c.name, Files: c.files, ActivatedAt: c.now()})
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(current, manifestFile), manifest, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache": c.name,
		"files": len(c.files),
	}).Info("Asset cache activated")
	return nil
}

// Path returns where asset name lives in the current version.
func (c *Cache) Path(name string) string {
	return filepath.Join(c.versionDir(), name)
}

// ReadManifest loads the manifest of the current version.
func (c *Cache) ReadManifest() (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(c.versionDir(), manifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := ffjson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

func (c *Cache) versionDir() string {
	return filepath.Join(c.dir, c.name)
}
