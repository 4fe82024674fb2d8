package models

// HarvestRequest is the payload for POST /api/v1/harvest.
type HarvestRequest struct {
	// URL is the page to mirror. Required.
	URL string `json:"url" binding:"required,url"`

	// Timeout is the maximum duration in seconds for rendering the page.
	// Asset downloads have their own per-fetch bound.
	// Default: 60. Max: 300.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=300"`

	// Stealth forces the stealth browser engine from the start.
	Stealth bool `json:"stealth,omitempty"`

	// Placeholders substitutes generated payloads for images and stylesheets
	// that could not be obtained. Default: server configuration.
	Placeholders *bool `json:"placeholders,omitempty"`

	// RespectRobots refuses the job when robots.txt disallows the page.
	// Default: server configuration.
	RespectRobots *bool `json:"respect_robots,omitempty"`

	// MaxAge reuses a completed harvest of the same URL younger than this
	// many milliseconds. 0 disables reuse.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`

	// WebhookURL receives harvest.completed / harvest.failed events.
	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *HarvestRequest) Defaults(placeholders, respectRobots bool) {
	if r.Timeout == 0 {
		r.Timeout = 60
	}
	if r.Placeholders == nil {
		r.Placeholders = &placeholders
	}
	if r.RespectRobots == nil {
		r.RespectRobots = &respectRobots
	}
}
