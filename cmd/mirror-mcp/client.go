package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// errorBody mirrors the API error envelope.
type errorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type submitResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	CacheStatus string `json:"cache_status"`
}

type jobStatus struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	Status       string `json:"status"`
	Stage        string `json:"stage"`
	Progress     int    `json:"progress"`
	OutputDir    string `json:"output_dir"`
	DocumentPath string `json:"document_path"`
	EngineUsed   string `json:"engine_used"`
	Summary      *struct {
		Discovered  int `json:"discovered"`
		Resolved    int `json:"resolved"`
		Unresolved  int `json:"unresolved"`
		ViaFallback int `json:"via_fallback"`
	} `json:"summary"`
	Report *struct {
		Overall int `json:"overall_score"`
	} `json:"report"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *jobStatus) finished() bool {
	return s.Status == "completed" || s.Status == "failed"
}

// client talks to the mirror HTTP API.
type client struct {
	baseURL      string
	apiKey       string
	http         *http.Client
	pollInterval time.Duration
}

func newClient(baseURL, apiKey string) *client {
	return &client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		http:         &http.Client{Timeout: 30 * time.Second},
		pollInterval: 2 * time.Second,
	}
}

func (c *client) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error != nil {
			return nil, resp.StatusCode, fmt.Errorf("[%s] %s", eb.Error.Code, eb.Error.Message)
		}
		return nil, resp.StatusCode, fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	return data, resp.StatusCode, nil
}

func (c *client) submit(ctx context.Context, req map[string]any) (*submitResponse, error) {
	data, _, err := c.do(ctx, http.MethodPost, "/api/v1/harvest", req)
	if err != nil {
		return nil, err
	}
	var out submitResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &out, nil
}

func (c *client) status(ctx context.Context, id string) (*jobStatus, error) {
	data, _, err := c.do(ctx, http.MethodGet, "/api/v1/harvest/"+id, nil)
	if err != nil {
		return nil, err
	}
	var st jobStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse status: %w", err)
	}
	return &st, nil
}

// wait polls the job until it finishes or ctx is done.
func (c *client) wait(ctx context.Context, id string) (*jobStatus, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		st, err := c.status(ctx, id)
		if err != nil {
			return nil, err
		}
		if st.finished() {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *client) reportMarkdown(ctx context.Context, id string) (string, error) {
	data, _, err := c.do(ctx, http.MethodGet, "/api/v1/harvest/"+id+"/report?format=markdown", nil)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
