package initcmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildFileList(t *testing.T) {
	files := BuildFileList()
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}

	paths := make(map[string]bool)
	for _, f := range files {
		paths[f.Path] = true
	}
	for _, p := range []string{"config.yaml", "macros/README.md"} {
		if !paths[p] {
			t.Errorf("expected file %s not found", p)
		}
	}
}

func TestMustReadTemplate(t *testing.T) {
	for _, tmpl := range []string{"config.yaml", "macros-readme.md", "gitignore-append.md"} {
		t.Run(tmpl, func(t *testing.T) {
			content := MustReadTemplate(tmpl)
			if content == "" {
				t.Errorf("template %s is empty", tmpl)
			}
		})
	}
}

func TestRun_DryRun(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(origDir) }()

	var buf bytes.Buffer
	opts := Options{DryRun: true, Writer: &buf}

	result, err := Run(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "DRY RUN") {
		t.Error("expected DRY RUN banner")
	}
	if !strings.Contains(output, "Would create") {
		t.Error("expected 'Would create' in output")
	}
	if result.TargetDir != ".grblctl" {
		t.Errorf("expected target dir .grblctl, got %s", result.TargetDir)
	}
	if len(result.Created) != 2 {
		t.Errorf("expected 2 created files in dry-run result, got %d", len(result.Created))
	}

	// Dry run must not touch the filesystem.
	if _, err := os.Stat(".grblctl"); !os.IsNotExist(err) {
		t.Error(".grblctl should not exist after a dry run")
	}
}

func TestRun_Install(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(origDir) }()

	var buf bytes.Buffer
	result, err := Run(Options{Writer: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, f := range []string{".grblctl/config.yaml", ".grblctl/macros/README.md", ".gitignore"} {
		if _, err := os.Stat(filepath.Join(tmpDir, f)); os.IsNotExist(err) {
			t.Errorf("expected file %s to be created", f)
		}
	}

	if len(result.Created) != 3 {
		t.Errorf("expected 3 created files (config, macros readme, gitignore), got %d", len(result.Created))
	}

	output := buf.String()
	if !strings.Contains(output, "Created:") {
		t.Error("expected 'Created:' in output")
	}
	if !strings.Contains(output, "initialized successfully") {
		t.Error("expected success message")
	}

	gitignore, err := os.ReadFile(".gitignore")
	if err != nil {
		t.Fatalf("read .gitignore: %v", err)
	}
	if !strings.Contains(string(gitignore), ".grblctl/state.json") {
		t.Error("expected .gitignore to list the daemon's runtime files")
	}
}

func TestRun_ConflictsWithoutForce(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(origDir) }()

	if err := os.MkdirAll(".grblctl", 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(".grblctl/config.yaml", []byte("serial:\n  port: /dev/custom\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var buf bytes.Buffer
	_, err := Run(Options{Writer: &buf})
	if err == nil {
		t.Fatal("expected error for conflicts without force")
	}

	output := buf.String()
	if !strings.Contains(output, "have changes") {
		t.Error("expected changed-files listing")
	}
	if !strings.Contains(output, "--force") {
		t.Error("expected --force hint")
	}
}

func TestRun_ForceOverwrites(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(origDir) }()

	if err := os.MkdirAll(".grblctl", 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	existingContent := "serial:\n  port: /dev/custom\n"
	if err := os.WriteFile(".grblctl/config.yaml", []byte(existingContent), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var buf bytes.Buffer
	result, err := Run(Options{Force: true, Writer: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	newContent, _ := os.ReadFile(".grblctl/config.yaml")
	if string(newContent) == existingContent {
		t.Error("config.yaml should have been overwritten")
	}
	if len(result.Appended) == 0 {
		t.Error("expected overwritten file tracked in Appended")
	}

	output := buf.String()
	if !strings.Contains(output, "Overwritten:") {
		t.Error("expected 'Overwritten:' in output")
	}
}

func TestRun_AppendToGitignore(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(origDir) }()

	existing := "node_modules/\n"
	if err := os.WriteFile(".gitignore", []byte(existing), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var buf bytes.Buffer
	_, err := Run(Options{Writer: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content, err := os.ReadFile(".gitignore")
	if err != nil {
		t.Fatalf("read .gitignore: %v", err)
	}
	if !strings.HasPrefix(string(content), existing) {
		t.Error("existing .gitignore content should be preserved")
	}
	if !strings.Contains(string(content), ".grblctl/state.json") {
		t.Error("new content should be appended")
	}
}

func TestRun_Idempotent(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(origDir) }()

	var buf1 bytes.Buffer
	if _, err := Run(Options{Writer: &buf1}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	var buf2 bytes.Buffer
	result, err := Run(Options{Writer: &buf2})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(result.Unchanged) != 3 {
		t.Errorf("expected 3 unchanged files on second run, got %d", len(result.Unchanged))
	}
	if !strings.Contains(buf2.String(), "Already up to date") {
		t.Error("expected 'Already up to date' on idempotent re-run")
	}
}
