package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeSkill(t *testing.T, root, category, folder, content string) {
	t.Helper()
	dir := filepath.Join(root, category, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBuildIndex(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "research", "web-search", "---\nname: web-search\ndescription: \"Search the web\"\nversion: 2.1.0\n---\n# Web Search\n\nSteps here.\n")
	writeSkill(t, root, "dev", "review", "# Code Reviewer\n\n**Description**: Reviews pull requests\n\nBe strict.")
	writeSkill(t, root, "dev", "bare", "Just text.")
	if err := os.MkdirAll(filepath.Join(root, "dev", "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := BuildIndex(root)
	if err != nil {
		t.Fatal(err)
	}
	want := []Record{
		{
			Name:         "bare",
			Description:  defaultDescription,
			Instructions: "Just text.",
			Category:     "dev",
			Location:     "dev/bare",
			Version:      defaultVersion,
		},
		{
			Name:         "Code Reviewer",
			Description:  "Reviews pull requests",
			Instructions: "# Code Reviewer\n\n**Description**: Reviews pull requests\n\nBe strict.",
			Category:     "dev",
			Location:     "dev/review",
			Version:      defaultVersion,
		},
		{
			Name:         "web-search",
			Description:  "Search the web",
			Instructions: "# Web Search\n\nSteps here.",
			Category:     "research",
			Location:     "research/web-search",
			Version:      "2.1.0",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildIndex mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildIndex_MissingDir(t *testing.T) {
	if _, err := BuildIndex(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing skills dir")
	}
}

func TestWriteIndexRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "skills_index.json")
	if err := WriteIndex(path, nil); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "[]\n" {
		t.Errorf("empty index = %q", data)
	}
}
