// Package texts holds the user-facing copy of the bot.
package texts

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"telegram-storefront-bot/internal/config"
)

//go:embed default.yaml
var defaultYAML []byte

// Keys overridable from configuration.
const (
	Welcome  = "welcome"
	Menu     = "menu"
	Contacts = "contacts"
)

// Catalog is safe for concurrent use; Apply swaps the storefront copy while
// the bot is running.
type Catalog struct {
	mu       sync.RWMutex
	defaults map[string]string
	entries  map[string]string
	showcase string
	photo    string
}

// Load returns the embedded catalog with cfg applied on top.
func Load(cfg config.StorefrontConfig) (*Catalog, error) {
	c, err := newCatalogFromBytes(defaultYAML)
	if err != nil {
		return nil, err
	}
	c.Apply(cfg)
	return c, nil
}

func newCatalogFromBytes(b []byte) (*Catalog, error) {
	var m map[string]string
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse texts: %w", err)
	}
	entries := make(map[string]string, len(m))
	for k, v := range m {
		entries[k] = v
	}
	return &Catalog{defaults: m, entries: entries}, nil
}

// Apply replaces the overridable entries. Empty values restore the defaults.
func (c *Catalog) Apply(cfg config.StorefrontConfig) {
	entries := make(map[string]string, len(c.defaults))
	for k, v := range c.defaults {
		entries[k] = v
	}
	for k, v := range map[string]string{Welcome: cfg.WelcomeText, Menu: cfg.MenuText, Contacts: cfg.ContactsText} {
		if v != "" {
			entries[k] = v
		}
	}
	c.mu.Lock()
	c.entries = entries
	c.showcase = cfg.ShowcaseURL
	c.photo = cfg.PhotoURL
	c.mu.Unlock()
}

// T returns the entry for key, formatted with args. Unknown keys are returned as is.
func (c *Catalog) T(key string, args ...interface{}) string {
	c.mu.RLock()
	format, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

func (c *Catalog) ShowcaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.showcase
}

func (c *Catalog) PhotoURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.photo
}
