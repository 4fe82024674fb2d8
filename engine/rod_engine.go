package engine

import (
	"context"
	"fmt"
)

// RenderFunc is the callback that drives the browser. It is injected by the
// binaries so this package does not depend on the browser package.
type RenderFunc func(ctx context.Context, req *Request) (*Page, error)

// RodEngine renders through the shared browser. The forceStealth flag
// distinguishes the "rod" tier from the "rod-stealth" tier.
type RodEngine struct {
	render       RenderFunc
	forceStealth bool
	name         string
}

// NewRodEngine creates a RodEngine.
func NewRodEngine(render RenderFunc, forceStealth bool) *RodEngine {
	name := "rod"
	if forceStealth {
		name = "rod-stealth"
	}
	return &RodEngine{
		render:       render,
		forceStealth: forceStealth,
		name:         name,
	}
}

func (e *RodEngine) Name() string { return e.name }

func (e *RodEngine) Render(ctx context.Context, req *Request) (*Page, error) {
	if e.render == nil {
		return nil, fmt.Errorf("%s: render func not configured", e.name)
	}

	r := *req
	if e.forceStealth {
		r.Stealth = true
	}

	page, err := e.render(ctx, &r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}
	page.EngineName = e.name
	return page, nil
}
