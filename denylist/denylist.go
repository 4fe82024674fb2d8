// Package denylist holds the tracker and ad pattern tables shared by the
// renderer, the harvester pre-pass and the quality scorer.
package denylist

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed denylist.yaml
var defaultList []byte

// List is a compiled deny-list. It is read-only and safe for concurrent use.
type List struct {
	trackers   []*regexp.Regexp
	skip       []string
	signatures []string
	domains    map[string]struct{}
}

type listFile struct {
	Trackers           []string `yaml:"trackers"`
	SkipScripts        []string `yaml:"skip_scripts"`
	ResidualSignatures []string `yaml:"residual_signatures"`
	BlockDomains       []string `yaml:"block_domains"`
}

// Default returns the embedded list.
func Default() *List {
	l, err := Parse(defaultList)
	if err != nil {
		panic(fmt.Sprintf("denylist: embedded list: %v", err))
	}
	return l
}

// Load reads a list from path, or returns the embedded one when path is empty.
func Load(path string) (*List, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("denylist: read: %w", err)
	}
	return Parse(data)
}

// Parse decodes and compiles a YAML list.
func Parse(data []byte) (*List, error) {
	var f listFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("denylist: parse: %w", err)
	}
	l := &List{domains: make(map[string]struct{}, len(f.BlockDomains))}
	for _, p := range f.Trackers {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("denylist: tracker pattern %q: %w", p, err)
		}
		l.trackers = append(l.trackers, re)
	}
	for _, s := range f.SkipScripts {
		l.skip = append(l.skip, strings.ToLower(s))
	}
	l.signatures = append(l.signatures, f.ResidualSignatures...)
	for _, d := range f.BlockDomains {
		l.domains[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	return l, nil
}

// IsTracker reports whether s (a src value or inline script body) matches
// any tracker pattern.
func (l *List) IsTracker(s string) bool {
	for _, re := range l.trackers {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// SkipScript reports whether a script src must not be downloaded.
func (l *List) SkipScript(src string) bool {
	lower := strings.ToLower(src)
	for _, s := range l.skip {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Signatures returns the residual tracker signatures used for scoring.
func (l *List) Signatures() []string {
	return append([]string(nil), l.signatures...)
}

// BlockedHost checks if a hostname (or any parent domain) is on the block list.
func (l *List) BlockedHost(host string) bool {
	host = strings.ToLower(host)
	if _, ok := l.domains[host]; ok {
		return true
	}
	// Walk parent domains (e.g. "pagead2.googlesyndication.com" → "googlesyndication.com").
	for {
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
		if _, ok := l.domains[host]; ok {
			return true
		}
	}
}
