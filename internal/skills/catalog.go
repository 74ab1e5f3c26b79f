// Package skills provides the skill catalog: a precomputed index of skill
// records, an enable/disable overlay, and the offline indexer that builds
// the index from SKILL.md files.
package skills

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Record is one entry of the skill index.
type Record struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Instructions string `json:"instructions,omitempty"`
	Category     string `json:"category,omitempty"`
	Location     string `json:"path"`
	Version      string `json:"version,omitempty"`
}

// Listing is a record annotated with its overlay state.
type Listing struct {
	Record
	Enabled bool `json:"enabled"`
}

// Catalog serves skill records from the index file. The index is read once,
// on first use; the overlay is consulted on every query.
type Catalog struct {
	indexPath string
	skillsDir string
	overlay   *Overlay
	readFile  func(string) ([]byte, error)

	group   singleflight.Group
	mu      sync.RWMutex
	records []Record
	loaded  bool
}

// NewCatalog creates a catalog for the index at indexPath. skillsDir is where
// SKILL.md files live for records without inline instructions. A nil overlay
// treats every skill as enabled.
func NewCatalog(indexPath, skillsDir string, overlay *Overlay) *Catalog {
	return &Catalog{
		indexPath: indexPath,
		skillsDir: skillsDir,
		overlay:   overlay,
		readFile:  os.ReadFile,
	}
}

// NewCatalogFromRecords creates a catalog over an in-memory index.
func NewCatalogFromRecords(records []Record, skillsDir string, overlay *Overlay) *Catalog {
	c := NewCatalog("", skillsDir, overlay)
	c.records = records
	c.loaded = true
	return c
}

// Reload discards the cached index and reads it again.
func (c *Catalog) Reload(ctx context.Context) error {
	records, err := c.readIndex()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.records = records
	c.loaded = true
	c.mu.Unlock()
	slog.InfoContext(ctx, "Skill index reloaded", "skills", len(records))
	return nil
}

func (c *Catalog) all() []Record {
	c.mu.RLock()
	if c.loaded {
		records := c.records
		c.mu.RUnlock()
		return records
	}
	c.mu.RUnlock()

	v, _, _ := c.group.Do("index", func() (any, error) {
		c.mu.RLock()
		if c.loaded {
			defer c.mu.RUnlock()
			return c.records, nil
		}
		c.mu.RUnlock()

		records, err := c.readIndex()
		if err != nil {
			// An unreadable index leaves the catalog empty until Reload.
			slog.Warn("Skill index not loaded", "path", c.indexPath, "error", err)
		} else {
			slog.Debug("Skill index loaded", "path", c.indexPath, "skills", len(records))
		}
		c.mu.Lock()
		c.records = records
		c.loaded = true
		c.mu.Unlock()
		return records, nil
	})
	records, _ := v.([]Record)
	return records
}

func (c *Catalog) readIndex() ([]Record, error) {
	if c.indexPath == "" {
		return nil, nil
	}
	data, err := c.readFile(c.indexPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read skill index: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse skill index: %w", err)
	}
	return records, nil
}

// Len returns the number of indexed skills, enabled or not.
func (c *Catalog) Len() int { return len(c.all()) }

// List returns the catalog in index order. Without includeDisabled the
// disabled skills are omitted.
func (c *Catalog) List(includeDisabled bool) []Listing {
	disabled := c.overlay.Disabled()
	records := c.all()
	out := make([]Listing, 0, len(records))
	for _, r := range records {
		enabled := !disabled[r.Name]
		if !enabled && !includeDisabled {
			continue
		}
		out = append(out, Listing{Record: r, Enabled: enabled})
	}
	return out
}

// FindRelevant returns enabled skills whose name or description contains
// query, case-insensitively, in index order. limit <= 0 means no cap.
func (c *Catalog) FindRelevant(query string, limit int) []Record {
	q := strings.ToLower(query)
	var out []Record
	for _, l := range c.List(false) {
		if strings.Contains(strings.ToLower(l.Name), q) || strings.Contains(strings.ToLower(l.Description), q) {
			out = append(out, l.Record)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

// Get returns the named skill with its instructions. It reports false when
// the skill is unknown or disabled.
func (c *Catalog) Get(name string) (Record, bool) {
	if !c.overlay.IsEnabled(name) {
		return Record{}, false
	}
	for _, r := range c.all() {
		if r.Name != name {
			continue
		}
		if r.Instructions == "" {
			r.Instructions = c.loadInstructions(r)
		}
		return r, true
	}
	return Record{}, false
}

func (c *Catalog) loadInstructions(r Record) string {
	if c.skillsDir == "" || r.Location == "" {
		return ""
	}
	path := filepath.Join(c.skillsDir, filepath.FromSlash(r.Location), skillFile)
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("Skill instructions unavailable", "skill", r.Name, "path", path, "error", err)
		return ""
	}
	return string(data)
}

// SetEnabled records the enabled state of name in the overlay. Names not in
// the index are recorded too.
func (c *Catalog) SetEnabled(name string, enabled bool) error {
	if c.overlay == nil {
		return fmt.Errorf("skill overlay not configured")
	}
	return c.overlay.SetEnabled(name, enabled)
}
