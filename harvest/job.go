package harvest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/use-agent/mirror/models"
)

// Job identifies one harvesting run and owns its output directory tree.
type Job struct {
	ID        string
	SourceURL string
	Root      string

	// Placeholders substitutes generated payloads for unresolved images,
	// icons and stylesheets.
	Placeholders bool

	dirs map[models.Kind]string
}

// NewJob creates <outputRoot>/<id> and one subdirectory per resource kind.
// Failure to create the tree is structural and aborts the job.
func NewJob(outputRoot, id, sourceURL string) (*Job, error) {
	root := filepath.Join(outputRoot, id)
	j := &Job{
		ID:        id,
		SourceURL: sourceURL,
		Root:      root,
		dirs:      make(map[models.Kind]string, len(models.Kinds)),
	}
	for _, k := range models.Kinds {
		dir := filepath.Join(root, filepath.FromSlash(k.Dir()))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, models.NewHarvestError(models.ErrCodeOutputUnavailable,
				fmt.Sprintf("cannot create output directory %s", dir), err)
		}
		j.dirs[k] = dir
	}
	return j, nil
}

// Dir returns the absolute directory for a kind.
func (j *Job) Dir(kind models.Kind) string {
	if d, ok := j.dirs[kind]; ok {
		return d
	}
	return filepath.Join(j.Root, filepath.FromSlash(kind.Dir()))
}

// DocumentPath is where the rewritten document is written.
func (j *Job) DocumentPath() string {
	return filepath.Join(j.Root, "index.html")
}

// Source names the strategy that produced a resolved payload.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// Outcome is the resolution result for one canonical URL. Path is relative
// to the job root with forward slashes, e.g. "assets/fonts/icon.woff".
type Outcome struct {
	URL    string
	Kind   models.Kind
	Path   string
	Source Source
	Err    error
}

// OK reports whether the resource was materialized.
func (o Outcome) OK() bool { return o.Err == nil && o.Path != "" }

type entry struct {
	done chan struct{}
	out  Outcome
}

// table is the job-scoped dedup set: canonical URL to outcome, plus the
// filenames already claimed in each kind directory. Failures are cached
// too, so a dead URL is tried once per job.
type table struct {
	mu      sync.Mutex
	entries map[string]*entry
	names   map[string]string // kind dir + "/" + filename -> canonical URL
}

func newTable() *table {
	return &table{
		entries: make(map[string]*entry),
		names:   make(map[string]string),
	}
}

// claim atomically looks up url. The first caller becomes the owner and
// must call finish; later callers get the same entry and wait on done.
func (t *table) claim(url string) (*entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[url]; ok {
		return e, false
	}
	e := &entry{done: make(chan struct{})}
	t.entries[url] = e
	return e, true
}

func (t *table) finish(e *entry, out Outcome) {
	e.out = out
	close(e.done)
}

// name reserves a filename in the kind directory for url. A name already
// held by a different URL gets a hash suffix.
func (t *table) name(url string, kind models.Kind) string {
	return t.reserve(kind, Sanitize(url, kind), url)
}

func (t *table) reserve(kind models.Kind, name, owner string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := kind.Dir() + "/" + name
	if held, taken := t.names[key]; taken && held != owner {
		name = withSuffix(name, owner)
		key = kind.Dir() + "/" + name
	}
	t.names[key] = owner
	return name
}

// outcome returns the settled outcome for url, if any.
func (t *table) outcome(url string) (Outcome, bool) {
	t.mu.Lock()
	e, ok := t.entries[url]
	t.mu.Unlock()
	if !ok {
		return Outcome{}, false
	}
	select {
	case <-e.done:
		return e.out, true
	default:
		return Outcome{}, false
	}
}

// snapshot returns every settled outcome.
func (t *table) snapshot() []Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Outcome, 0, len(t.entries))
	for _, e := range t.entries {
		select {
		case <-e.done:
			out = append(out, e.out)
		default:
		}
	}
	return out
}
