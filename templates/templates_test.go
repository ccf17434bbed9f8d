package templates

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

const testCatalog = `
welcome: Welcome to the guessing game!
correct: 'Correct! That makes {{ .QuestionsAnswered }} right answers.'
goodbye: 'Goodbye, {{ .Name }}.'
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templates.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}
	return path
}

func TestLoadAndRender(t *testing.T) {
	c, err := Load(writeCatalog(t, testCatalog))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	got, err := c.Render("welcome", nil)
	if err != nil {
		t.Fatalf("Render(welcome) failed: %v", err)
	}
	if got != "Welcome to the guessing game!" {
		t.Errorf("Render(welcome) = %q", got)
	}

	got, err = c.Render("correct", map[string]any{"QuestionsAnswered": 3})
	if err != nil {
		t.Fatalf("Render(correct) failed: %v", err)
	}
	if got != "Correct! That makes 3 right answers." {
		t.Errorf("Render(correct) = %q", got)
	}

	if names := c.Names(); !reflect.DeepEqual(names, []string{"correct", "goodbye", "welcome"}) {
		t.Errorf("Names() = %v", names)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	c, err := Load(writeCatalog(t, testCatalog))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if _, err := c.Render("nope", nil); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("Render(nope) error = %v, want ErrTemplateNotFound", err)
	}
}

func TestLoadRejectsNonStringTemplates(t *testing.T) {
	path := writeCatalog(t, "variants:\n  - first\n  - second\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() accepted a list-valued template")
	}
}

func TestLoadRejectsBadTemplateSyntax(t *testing.T) {
	path := writeCatalog(t, "broken: '{{ .Unclosed'\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() accepted invalid template syntax")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() accepted a missing file")
	}
}

func TestReloadKeepsOldCatalogOnError(t *testing.T) {
	path := writeCatalog(t, testCatalog)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("broken: '{{'"), 0o644); err != nil {
		t.Fatalf("rewriting catalog: %v", err)
	}
	if err := c.Reload(); err == nil {
		t.Fatal("Reload() accepted a broken catalog")
	}

	// The previous templates must still render.
	if _, err := c.Render("welcome", nil); err != nil {
		t.Errorf("Render() after failed reload errored: %v", err)
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := writeCatalog(t, "greeting: hello\n")
	c, err := Load(path, WithReloadDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx) }()

	// Give the watcher a moment to register before mutating the file.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("greeting: bonjour\n"), 0o644); err != nil {
		t.Fatalf("rewriting catalog: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got, err := c.Render("greeting", nil); err == nil && got == "bonjour" {
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Watch() returned error: %v", err)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("catalog did not reload after file change")
}
