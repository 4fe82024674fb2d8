// Package store persists harvest job records.
package store

import (
	"context"
	"errors"

	"github.com/use-agent/mirror/models"
)

// ErrNotFound is returned by Get for unknown job IDs.
var ErrNotFound = errors.New("store: job not found")

// Store keeps HarvestJob records by ID. Implementations are safe for
// concurrent use and never hand out records the caller can mutate in place.
type Store interface {
	Save(ctx context.Context, job *models.HarvestJob) error
	Get(ctx context.Context, id string) (*models.HarvestJob, error)
	Close(ctx context.Context) error
}

func clone(j *models.HarvestJob) *models.HarvestJob {
	c := *j
	if j.Summary != nil {
		s := *j.Summary
		s.Failures = append([]models.ResourceFailure(nil), j.Summary.Failures...)
		c.Summary = &s
	}
	if j.Report != nil {
		r := *j.Report
		r.HTML.Issues = append([]string(nil), j.Report.HTML.Issues...)
		r.CSS.Issues = append([]string(nil), j.Report.CSS.Issues...)
		r.Images.Issues = append([]string(nil), j.Report.Images.Issues...)
		c.Report = &r
	}
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	return &c
}
