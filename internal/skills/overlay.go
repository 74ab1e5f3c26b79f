package skills

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

type overlayFile struct {
	DisabledSkills []string `json:"disabledSkills"`
}

// Overlay persists which skills are disabled. The file is re-read on every
// query and written synchronously on every change. Concurrent writers are
// not coordinated; the last write wins.
type Overlay struct {
	path string
}

// NewOverlay returns an overlay stored at path.
func NewOverlay(path string) *Overlay {
	return &Overlay{path: path}
}

// Path returns the overlay file location.
func (o *Overlay) Path() string { return o.path }

func (o *Overlay) read() []string {
	data, err := os.ReadFile(o.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Skill overlay unreadable, treating all skills as enabled", "path", o.path, "error", err)
		}
		return nil
	}
	var f overlayFile
	if err := json.Unmarshal(data, &f); err != nil {
		slog.Warn("Skill overlay corrupt, treating all skills as enabled", "path", o.path, "error", err)
		return nil
	}
	return f.DisabledSkills
}

// Disabled returns the set of disabled skill names.
func (o *Overlay) Disabled() map[string]bool {
	out := map[string]bool{}
	if o == nil {
		return out
	}
	for _, name := range o.read() {
		out[name] = true
	}
	return out
}

// IsEnabled reports whether name is not disabled.
func (o *Overlay) IsEnabled(name string) bool {
	return !o.Disabled()[name]
}

// SetEnabled adds name to or removes it from the disabled set. Setting the
// current state again leaves the file content unchanged.
func (o *Overlay) SetEnabled(name string, enabled bool) error {
	current := o.read()
	next := make([]string, 0, len(current)+1)
	seen := false
	for _, n := range current {
		if n == name {
			if enabled {
				continue
			}
			if seen {
				continue
			}
			seen = true
		}
		next = append(next, n)
	}
	if !enabled && !seen {
		next = append(next, name)
	}

	data, err := json.MarshalIndent(overlayFile{DisabledSkills: next}, "", "    ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(o.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create overlay dir: %w", err)
		}
	}
	if err := os.WriteFile(o.path, data, 0o644); err != nil {
		return fmt.Errorf("write skill overlay: %w", err)
	}
	slog.Info("Skill toggled", "skill", name, "enabled", enabled)
	return nil
}
