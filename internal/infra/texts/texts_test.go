//go:build !integration

package texts

import (
	"strings"
	"sync"
	"testing"

	"telegram-storefront-bot/internal/config"
)

func TestCatalog(t *testing.T) {
	c, err := Load(config.StorefrontConfig{ShowcaseURL: "https://example.org/vetrina.html"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	t.Run("should serve the embedded storefront copy", func(t *testing.T) {
		if got := c.T(Welcome); !strings.HasPrefix(got, "🔥 PACKZ ITA") {
			t.Errorf("unexpected welcome text %q", got)
		}
		if got := c.T("button_back"); got != "⬅️ Indietro" {
			t.Errorf("wanted '⬅️ Indietro', got '%s'", got)
		}
		if got := c.ShowcaseURL(); got != "https://example.org/vetrina.html" {
			t.Errorf("unexpected showcase url %q", got)
		}
	})

	t.Run("should return key if not found", func(t *testing.T) {
		if got := c.T("nonexistent_key"); got != "nonexistent_key" {
			t.Errorf("wanted 'nonexistent_key', got '%s'", got)
		}
	})

	t.Run("should format arguments correctly", func(t *testing.T) {
		got := c.T("import_done", 4, 1, 2, 1)
		want := "📥 Import finished\n\nRead: 4\nInserted: 1\nUpdated: 2\nSkipped: 1"
		if got != want {
			t.Errorf("wanted %q, got %q", want, got)
		}
	})

	t.Run("should apply and revert overrides", func(t *testing.T) {
		c.Apply(config.StorefrontConfig{MenuText: "custom menu", PhotoURL: "https://x/logo.jpg"})
		if got := c.T(Menu); got != "custom menu" {
			t.Errorf("override not applied: %q", got)
		}
		if c.PhotoURL() != "https://x/logo.jpg" || c.ShowcaseURL() != "" {
			t.Errorf("urls not replaced: %q %q", c.PhotoURL(), c.ShowcaseURL())
		}
		c.Apply(config.StorefrontConfig{})
		if got := c.T(Menu); !strings.HasPrefix(got, "📖 MENÙ PACKZ ITA") {
			t.Errorf("default not restored: %q", got)
		}
	})

	t.Run("should tolerate concurrent swaps", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func() { defer wg.Done(); c.Apply(config.StorefrontConfig{WelcomeText: "hi"}) }()
			go func() { defer wg.Done(); _ = c.T(Welcome) }()
		}
		wg.Wait()
	})
}

func TestNewCatalogFromBytesRejectsGarbage(t *testing.T) {
	if _, err := newCatalogFromBytes([]byte("welcome: [unterminated")); err == nil {
		t.Fatal("expected a parse error")
	}
}
