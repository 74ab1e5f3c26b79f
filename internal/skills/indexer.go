package skills

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	skillFile          = "SKILL.md"
	defaultVersion     = "1.0.0"
	defaultDescription = "No description"
)

var (
	headingExpr     = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	descriptionExpr = regexp.MustCompile(`(?i)\*\*Description\*\*:\s*(.*)`)
)

type skillFrontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

// BuildIndex scans <skillsDir>/<category>/<skill>/SKILL.md and returns one
// record per skill, ordered by category then folder name.
func BuildIndex(skillsDir string) ([]Record, error) {
	categories, err := os.ReadDir(skillsDir)
	if err != nil {
		return nil, fmt.Errorf("read skills dir: %w", err)
	}

	records := []Record{}
	for _, cat := range categories {
		if !cat.IsDir() {
			continue
		}
		folders, err := os.ReadDir(filepath.Join(skillsDir, cat.Name()))
		if err != nil {
			return nil, fmt.Errorf("read category %s: %w", cat.Name(), err)
		}
		for _, folder := range folders {
			if !folder.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(skillsDir, cat.Name(), folder.Name(), skillFile))
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return nil, err
			}
			rec := parseSkillDoc(data, folder.Name())
			rec.Category = cat.Name()
			rec.Location = path.Join(cat.Name(), folder.Name())
			records = append(records, rec)
		}
	}
	return records, nil
}

// parseSkillDoc reads name and description from YAML frontmatter when
// present, otherwise from the first heading and a **Description**: line.
func parseSkillDoc(data []byte, folder string) Record {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	rec := Record{Version: defaultVersion}

	body := text
	if fm, rest, ok := splitFrontmatter(text); ok {
		var meta skillFrontmatter
		if err := yaml.Unmarshal([]byte(fm), &meta); err == nil {
			rec.Name = strings.TrimSpace(meta.Name)
			rec.Description = strings.TrimSpace(meta.Description)
			if v := strings.TrimSpace(meta.Version); v != "" {
				rec.Version = v
			}
		}
		body = rest
	}

	if rec.Name == "" {
		if m := headingExpr.FindStringSubmatch(body); m != nil {
			rec.Name = strings.TrimSpace(m[1])
		} else {
			rec.Name = folder
		}
	}
	if rec.Description == "" {
		if m := descriptionExpr.FindStringSubmatch(body); m != nil && strings.TrimSpace(m[1]) != "" {
			rec.Description = strings.TrimSpace(m[1])
		} else {
			rec.Description = defaultDescription
		}
	}
	rec.Instructions = strings.TrimSpace(body)
	return rec
}

func splitFrontmatter(text string) (string, string, bool) {
	if !strings.HasPrefix(text, "---\n") {
		return "", text, false
	}
	end := strings.Index(text[4:], "\n---")
	if end < 0 {
		return "", text, false
	}
	block := text[4 : 4+end]
	rest := text[4+end+len("\n---"):]
	rest = strings.TrimPrefix(rest, "\n")
	return block, rest, true
}

// WriteIndex writes records as an indented JSON array.
func WriteIndex(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
