package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// EnvFileVar names an env file loaded before all others.
const EnvFileVar = "KORTEX_ENV_FILE"

// envFileCandidates lists env files in load order. Earlier files win because
// variables that are already set are never replaced.
func envFileCandidates() []string {
	var out []string
	if explicit := strings.TrimSpace(os.Getenv(EnvFileVar)); explicit != "" {
		out = append(out, explicit)
	}
	// Project-local files, as used by the web frontend.
	out = append(out, ".env.local", ".env")
	if home, err := os.UserHomeDir(); err == nil {
		out = append(out,
			filepath.Join(home, ".kortex", ".env"),
			filepath.Join(home, ".config", "kortex", "env"),
		)
	}
	return out
}

// LoadEnvFileCandidates applies every readable env file from the candidate
// list and returns the ones that were loaded. Missing files are skipped.
func LoadEnvFileCandidates() []string {
	seen := make(map[string]bool)
	var loaded []string
	for _, p := range envFileCandidates() {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		n, err := loadEnvFile(abs)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			slog.Warn("Env file not loaded", "path", abs, "error", err)
		default:
			slog.Debug("Env file loaded", "path", abs, "vars", n)
			loaded = append(loaded, abs)
		}
	}
	return loaded
}

// loadEnvFile sets the KEY=value pairs of path that are not already present
// in the process environment and returns how many it set.
func loadEnvFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	set := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, val, ok := parseEnvLine(sc.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return set, fmt.Errorf("set %s: %w", key, err)
		}
		set++
	}
	return set, sc.Err()
}

// parseEnvLine accepts `KEY=value` with an optional `export ` prefix and
// single or double quotes around the value. Blank lines and comments yield
// ok=false.
func parseEnvLine(line string) (key, val string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	key, val, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", false
	}
	val = strings.TrimSpace(val)
	if n := len(val); n >= 2 && (val[0] == '"' || val[0] == '\'') && val[n-1] == val[0] {
		val = val[1 : n-1]
	}
	return key, val, true
}
