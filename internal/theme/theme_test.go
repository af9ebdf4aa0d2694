package theme

import (
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/nexusapp/nexus/internal/engine"
	"github.com/nexusapp/nexus/internal/local"
	"github.com/nexusapp/nexus/internal/remote"
)

func setupThemeEngine(t *testing.T) *engine.Engine {
	t.Helper()

	localStore, err := local.Open(filepath.Join(t.TempDir(), "nexus.db"))
	if err != nil {
		t.Fatalf("failed to open local store: %v", err)
	}
	t.Cleanup(func() { _ = localStore.Close() })

	return engine.New(localStore, remote.NewMemory(), log.New(io.Discard, "", 0))
}

func quiet() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"dark":   Dark,
		"white":  White,
		"hybrid": Hybrid,
		"light":  Light,
		"silver": Light, // retired value remaps
		"neon":   Dark,
		"":       Dark,
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDefaultIsDark(t *testing.T) {
	eng := setupThemeEngine(t)
	store := New(eng, quiet())
	if got := store.Theme(); got != Dark {
		t.Fatalf("expected dark default, got %s", got)
	}
}

func TestToggleCycles(t *testing.T) {
	eng := setupThemeEngine(t)
	store := New(eng, quiet())

	if got := store.Toggle(); got != White {
		t.Fatalf("expected white after first toggle, got %s", got)
	}
	if got := store.Toggle(); got != Hybrid {
		t.Fatalf("expected hybrid after second toggle, got %s", got)
	}
	if got := store.Toggle(); got != Dark {
		t.Fatalf("expected dark after third toggle, got %s", got)
	}
	// Light is reachable only via Set; toggling from it returns to dark.
	store.Set(Light)
	if got := store.Toggle(); got != Dark {
		t.Fatalf("expected dark after toggling from light, got %s", got)
	}
}

func TestThemePersists(t *testing.T) {
	eng := setupThemeEngine(t)

	store := New(eng, quiet())
	store.Set(Hybrid)
	eng.Flush()

	reloaded := New(eng, quiet())
	if got := reloaded.Theme(); got != Hybrid {
		t.Fatalf("expected persisted hybrid theme, got %s", got)
	}
}

func TestLegacySilverValueRemapsOnLoad(t *testing.T) {
	eng := setupThemeEngine(t)

	store := New(eng, quiet())
	store.Set("silver")
	if got := store.Theme(); got != Light {
		t.Fatalf("expected silver remapped to light, got %s", got)
	}
}
