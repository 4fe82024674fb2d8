// Package quality audits a finished job directory and produces the
// certificate. It reads the tree only; nothing is modified.
package quality

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/use-agent/mirror/denylist"
	"github.com/use-agent/mirror/models"
)

const (
	// OversizedBytes flags images heavier than 1.5 MB.
	OversizedBytes = 1_500_000
	// BrokenBytes flags images lighter than this as corrupt or empty.
	BrokenBytes = 100

	brokenImagePenalty    = 20
	oversizedImagePenalty = 5
	emptyRefPenalty       = 2
	emptyRefPenaltyCap    = 20
	trackerPenalty        = 5
)

// Category weights of the overall score, in tenths.
const (
	weightHTML   = 4
	weightCSS    = 3
	weightImages = 3
)

// Scorer computes certificates. The zero value is not usable; use New.
type Scorer struct {
	signatures []string
}

// New creates a Scorer that counts the residual tracker signatures of list
// (or the embedded list when nil).
func New(list *denylist.List) *Scorer {
	if list == nil {
		list = denylist.Default()
	}
	return &Scorer{signatures: list.Signatures()}
}

// Score audits the job directory at root with the default signatures.
func Score(root string) (*models.QualityReport, error) {
	return New(nil).Score(root)
}

// Score audits the job directory at root. A missing root is an error; a
// missing index.html or asset directory is scored, not reported.
func (s *Scorer) Score(root string) (*models.QualityReport, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("quality: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("quality: %s is not a directory", root)
	}

	r := &models.QualityReport{
		HTML:   models.CategoryScore{Issues: []string{}},
		CSS:    models.CategoryScore{Issues: []string{}},
		Images: models.CategoryScore{Issues: []string{}},
	}
	if err := s.images(filepath.Join(root, "assets", "images"), r); err != nil {
		return nil, err
	}
	if err := s.css(filepath.Join(root, "css"), r); err != nil {
		return nil, err
	}
	if err := s.html(filepath.Join(root, "index.html"), r); err != nil {
		return nil, err
	}
	r.Overall = (r.HTML.Score*weightHTML + r.CSS.Score*weightCSS + r.Images.Score*weightImages) / 10
	return r, nil
}

func (s *Scorer) images(dir string, r *models.QualityReport) error {
	files, err := listFiles(dir)
	if err != nil {
		return err
	}
	stats := &r.Stats.Images
	var bytes int64
	for _, f := range files {
		stats.Total++
		bytes += f.size
		if f.size > OversizedBytes {
			stats.Oversized++
			r.Images.Issues = append(r.Images.Issues, fmt.Sprintf("Heavy image: %s (%.1fMB)", f.name, mb(f.size)))
		}
		if f.size < BrokenBytes {
			stats.Broken++
			r.Images.Issues = append(r.Images.Issues, "Corrupt/Empty image: "+f.name)
		}
	}
	stats.TotalMB = round2(mb(bytes))

	r.Images.Score = 100
	if stats.Total > 0 {
		penalty := float64(brokenImagePenalty*stats.Broken+oversizedImagePenalty*stats.Oversized) / float64(stats.Total) * 10
		r.Images.Score = int(math.Max(0, 100-penalty))
	}
	return nil
}

func (s *Scorer) css(dir string, r *models.QualityReport) error {
	files, err := listFiles(dir)
	if err != nil {
		return err
	}
	stats := &r.Stats.CSS
	var bytes int64
	for _, f := range files {
		if !strings.EqualFold(filepath.Ext(f.name), ".css") {
			continue
		}
		stats.Total++
		bytes += f.size
		data, err := os.ReadFile(filepath.Join(dir, f.name))
		if err != nil {
			return fmt.Errorf("quality: read %s: %w", f.name, err)
		}
		if strings.Contains(strings.ToLower(string(data)), "<html") {
			stats.Broken++
			r.CSS.Issues = append(r.CSS.Issues, "Invalid CSS (contains HTML): "+f.name)
		}
	}
	stats.TotalMB = round2(mb(bytes))

	r.CSS.Score = 100
	if stats.Total > 0 {
		r.CSS.Score = int(math.Max(0, 100-float64(stats.Broken)/float64(stats.Total)*100))
	}
	return nil
}

func (s *Scorer) html(path string, r *models.QualityReport) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		r.HTML.Score = 0
		r.HTML.Issues = append(r.HTML.Issues, "Missing index.html")
		return nil
	}
	if err != nil {
		return fmt.Errorf("quality: read document: %w", err)
	}
	doc := string(data)

	score := 100
	if empty := strings.Count(doc, `src=""`) + strings.Count(doc, `href=""`); empty > 0 {
		r.HTML.Issues = append(r.HTML.Issues, fmt.Sprintf("%d empty resource references", empty))
		score -= min(emptyRefPenaltyCap, empty*emptyRefPenalty)
	}

	// Each distinct signature counts once, however often it appears.
	found := 0
	for _, sig := range s.signatures {
		if strings.Contains(doc, sig) {
			found++
		}
	}
	if found > 0 {
		r.HTML.Issues = append(r.HTML.Issues, fmt.Sprintf("%d tracking scripts detected", found))
		score -= found * trackerPenalty
	}
	r.HTML.Score = max(0, score)
	return nil
}

type fileInfo struct {
	name string
	size int64
}

// listFiles returns the regular files of dir sorted by name, skipping
// hidden ones. A missing directory is empty.
func listFiles(dir string) ([]fileInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("quality: list %s: %w", dir, err)
	}
	var files []fileInfo
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{name: e.Name(), size: info.Size()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}

func mb(n int64) float64 { return float64(n) / 1024 / 1024 }

func round2(f float64) float64 { return math.Round(f*100) / 100 }
