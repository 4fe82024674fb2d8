// Package engine turns a URL into fully rendered markup. Several engines
// compete under a staged-escalation dispatcher: a real browser first, a
// stealth browser next, static HTTP last.
package engine

import (
	"context"
	"time"
)

// Engine is the interface every render engine implements.
type Engine interface {
	// Name returns the engine identifier ("rod", "rod-stealth", "http").
	Name() string

	// Render loads the page and returns its markup after scripts ran.
	Render(ctx context.Context, req *Request) (*Page, error)
}

// Request describes one page to render.
type Request struct {
	URL     string
	Timeout time.Duration
	Stealth bool
}

// Page is the output of a successful render.
type Page struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
	EngineName string
}
