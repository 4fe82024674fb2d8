// Package fallback supplies substitute sources for resources the page's own
// server failed to deliver: a catalogue of CDN copies of popular libraries,
// and generated placeholder payloads when nothing real can be obtained.
package fallback

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/use-agent/mirror/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var defaultCatalogue []byte

// Entry is one catalogued library.
type Entry struct {
	Name  string      `yaml:"name"`
	Match string      `yaml:"match"`
	Kind  models.Kind `yaml:"kind"`
	URL   string      `yaml:"url"`
}

// Catalogue maps failing URLs to known-good CDN copies. It is read-only
// after construction and safe for concurrent use.
type Catalogue struct {
	entries []Entry
}

type catalogueFile struct {
	Entries []Entry `yaml:"entries"`
}

// Default returns the embedded catalogue.
func Default() *Catalogue {
	c, err := Parse(defaultCatalogue)
	if err != nil {
		panic(fmt.Sprintf("fallback: embedded catalogue: %v", err))
	}
	return c
}

// Load reads a catalogue from path, or returns the embedded one when path is empty.
func Load(path string) (*Catalogue, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fallback: read catalogue: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalogue.
func Parse(data []byte) (*Catalogue, error) {
	var f catalogueFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("fallback: parse catalogue: %w", err)
	}
	c := &Catalogue{entries: make([]Entry, 0, len(f.Entries))}
	for i, e := range f.Entries {
		if e.Match == "" || e.URL == "" {
			return nil, fmt.Errorf("fallback: catalogue entry %d (%q): match and url are required", i, e.Name)
		}
		e.Match = strings.ToLower(e.Match)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// Lookup returns the substitute URL for a failed resource of the given kind.
// At most one candidate is returned: the first entry, in catalogue order,
// whose match string occurs in the lowercased URL and whose kind agrees.
// Entries without a kind match any kind. A substitute equal to the failing
// URL is never returned.
func (c *Catalogue) Lookup(failedURL string, kind models.Kind) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	lower := strings.ToLower(failedURL)
	for _, e := range c.entries {
		if e.Kind != "" && e.Kind != kind {
			continue
		}
		if !strings.Contains(lower, e.Match) {
			continue
		}
		if strings.EqualFold(e.URL, failedURL) {
			return Entry{}, false
		}
		return e, true
	}
	return Entry{}, false
}

// Len reports the number of catalogue entries.
func (c *Catalogue) Len() int { return len(c.entries) }
