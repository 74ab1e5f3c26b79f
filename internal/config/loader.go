package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".kortex"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("KORTEX_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Env files only fill variables the process does not already set.
	LoadEnvFileCandidates()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := loadResolvedConfig(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// Override with environment variables for each group
	envconfig.Process("KORTEX_PATHS", &cfg.Paths)
	envconfig.Process("KORTEX_MODEL", &cfg.Model)
	envconfig.Process("KORTEX_GROQ", &cfg.Providers.Groq)
	envconfig.Process("KORTEX_GEMINI", &cfg.Providers.Gemini)
	envconfig.Process("KORTEX_OPENAI", &cfg.Providers.OpenAI)
	envconfig.Process("KORTEX_OPENROUTER", &cfg.Providers.OpenRouter)
	envconfig.Process("KORTEX_DEEPSEEK", &cfg.Providers.DeepSeek)
	envconfig.Process("KORTEX_VLLM", &cfg.Providers.VLLM)
	envconfig.Process("KORTEX_MEMORY", &cfg.Memory)
	envconfig.Process("KORTEX_TOOLS", &cfg.Tools)
	envconfig.Process("KORTEX_TELEMETRY", &cfg.Telemetry)
	envconfig.Process("KORTEX_AUDIT", &cfg.Audit)
	envconfig.Process("KORTEX_SERVER", &cfg.Server)

	applyWellKnownEnv(cfg)

	// Expand ~ in paths
	expandHome := func(p *string) {
		if strings.HasPrefix(*p, "~") {
			if home, err := os.UserHomeDir(); err == nil {
				*p = filepath.Join(home, (*p)[1:])
			}
		}
	}
	expandHome(&cfg.Paths.Root)
	expandHome(&cfg.Paths.SkillsDir)
	expandHome(&cfg.Paths.SkillsIndex)
	expandHome(&cfg.Paths.SkillsConfig)
	expandHome(&cfg.Paths.DataDir)
	expandHome(&cfg.Memory.DBPath)

	if abs, err := filepath.Abs(cfg.Paths.Root); err == nil {
		cfg.Paths.Root = abs
	}
	if cfg.Model.MaxSteps <= 0 {
		cfg.Model.MaxSteps = 5
	}
	if cfg.Tools.Exec.MaxOutputBytes <= 0 {
		cfg.Tools.Exec.MaxOutputBytes = 1 << 20
	}
	if len(cfg.Tools.WritableGlobs) == 0 {
		cfg.Tools.WritableGlobs = []string{"**"}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Memory.Backend)) {
	case "qdrant":
		cfg.Memory.Backend = "qdrant"
	default:
		cfg.Memory.Backend = "sqlite"
	}

	return cfg, nil
}

// applyWellKnownEnv fills provider credentials from the conventional
// unprefixed variables when nothing more specific was set.
func applyWellKnownEnv(cfg *Config) {
	fallback := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	fallback(&cfg.Providers.Groq.APIKey, "GROQ_API_KEY")
	fallback(&cfg.Providers.Gemini.APIKey, "GOOGLE_AI_KEY", "GEMINI_API_KEY")
	fallback(&cfg.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	fallback(&cfg.Providers.OpenRouter.APIKey, "OPENROUTER_API_KEY")
	fallback(&cfg.Providers.DeepSeek.APIKey, "DEEPSEEK_API_KEY")

	if p := strings.TrimSpace(os.Getenv("DEFAULT_PROVIDER")); p != "" && os.Getenv("KORTEX_MODEL_PROVIDER") == "" {
		cfg.Model.Provider = p
	}
}

// ResolvePath joins a relative path onto the configured root.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Paths.Root, p)
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// EnsureDir ensures a directory exists with proper permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func loadResolvedConfig(path string) ([]byte, error) {
	obj, err := loadConfigObject(path, map[string]struct{}{})
	if err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

// loadConfigObject reads a config file, following "$include" entries and
// substituting ${VAR} tokens from the environment.
func loadConfigObject(path string, visited map[string]struct{}) (map[string]any, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, seen := visited[absPath]; seen {
		return nil, fmt.Errorf("config include cycle detected at %s", absPath)
	}
	visited[absPath] = struct{}{}
	defer delete(visited, absPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}

	merged := map[string]any{}
	if includeRaw, ok := raw["$include"]; ok {
		includeFiles, err := parseIncludes(includeRaw)
		if err != nil {
			return nil, err
		}
		baseDir := filepath.Dir(absPath)
		for _, includePath := range includeFiles {
			resolvedPath := includePath
			if !filepath.IsAbs(includePath) {
				resolvedPath = filepath.Join(baseDir, includePath)
			}
			child, err := loadConfigObject(resolvedPath, visited)
			if err != nil {
				return nil, err
			}
			deepMerge(merged, child)
		}
	}
	delete(raw, "$include")
	substituteEnvValues(raw)
	deepMerge(merged, raw)
	return merged, nil
}

func parseIncludes(v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("$include entries must be strings")
			}
			if strings.TrimSpace(s) == "" {
				continue
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("$include must be a string or array of strings")
	}
}

func deepMerge(dst, src map[string]any) {
	for key, val := range src {
		srcMap, srcIsMap := val.(map[string]any)
		if !srcIsMap {
			dst[key] = val
			continue
		}
		dstMap, dstIsMap := dst[key].(map[string]any)
		if !dstIsMap {
			dstMap = map[string]any{}
			dst[key] = dstMap
		}
		deepMerge(dstMap, srcMap)
	}
}

func substituteEnvValues(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = substituteEnvValues(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = substituteEnvValues(item)
		}
		return t
	case string:
		return envPattern.ReplaceAllStringFunc(t, func(match string) string {
			parts := envPattern.FindStringSubmatch(match)
			if len(parts) != 2 {
				return match
			}
			if value, ok := os.LookupEnv(parts[1]); ok {
				return value
			}
			return match
		})
	default:
		return v
	}
}
