package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		cfgFile = "cmscore.yaml"
		validateCheckDatabase = false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "cmscore dev") {
		t.Errorf("output = %q", out)
	}
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		dsn := filepath.Join(t.TempDir(), "content.db")
		path := writeFile(t, "cmscore.yaml", "database:\n  driver: sqlite\n  dsn: "+dsn+"\n")
		out, err := execute(t, "validate", "--config", path, "--check-database")
		if err != nil {
			t.Fatalf("validate: %v\n%s", err, out)
		}
		if !strings.Contains(out, "Configuration is valid.") || !strings.Contains(out, "Database usable") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		path := writeFile(t, "cmscore.yaml", "logging:\n  level: loud\n")
		if _, err := execute(t, "validate", "--config", path); err == nil {
			t.Error("expected error for invalid config")
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing config")
		}
	})
}

func TestSchemaLintCommand(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		path := writeFile(t, "blog.yaml", `
models:
  - key: author
    name: Author
    fields:
      - {key: name, title: Name, type: text, isTitle: true}
  - key: post
    name: Post
    fields:
      - {key: title, title: Title, type: text}
      - {key: author, title: Author, type: reference, model: author}
`)
		out, err := execute(t, "schema", "lint", path)
		if err != nil {
			t.Fatalf("lint: %v\n%s", err, out)
		}
		if !strings.Contains(out, "models created: 2") || !strings.Contains(out, "fields added:   3") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("problems", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", `
models:
  - key: post
    name: Post
    fields:
      - {key: author, title: Author, type: reference, model: author}
`)
		out, err := execute(t, "schema", "lint", path)
		if err == nil {
			t.Fatal("expected lint to fail")
		}
		if !strings.Contains(out, "models.post.fields.author") {
			t.Errorf("output = %q", out)
		}
	})
}

func TestSchemaApplyCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "content.db")
	cfg := writeFile(t, "cmscore.yaml", "database:\n  driver: sqlite\n  dsn: "+dsn+"\nlogging:\n  level: error\n")
	schemaFile := writeFile(t, "blog.yaml", `
models:
  - key: page
    name: Page
    fields:
      - {key: title, title: Title, type: text}
`)

	out, err := execute(t, "schema", "apply", "--config", cfg, schemaFile)
	if err != nil {
		t.Fatalf("apply: %v\n%s", err, out)
	}
	if !strings.Contains(out, "models created: 1") {
		t.Errorf("first apply output = %q", out)
	}

	out, err = execute(t, "schema", "apply", "--config", cfg, schemaFile)
	if err != nil {
		t.Fatalf("second apply: %v\n%s", err, out)
	}
	if !strings.Contains(out, "models created: 0") || !strings.Contains(out, "already present: 2") {
		t.Errorf("second apply output = %q", out)
	}
}
