package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// harvestWait bounds how long harvest_site blocks on a job.
const harvestWait = 10 * time.Minute

func handleHarvestSite(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		body := map[string]any{"url": url}
		if request.GetBool("stealth", false) {
			body["stealth"] = true
		}
		if request.GetBool("placeholders", false) {
			body["placeholders"] = true
		}
		if t := request.GetInt("timeout", 0); t > 0 {
			body["timeout"] = t
		}
		if a := request.GetInt("max_age", 0); a > 0 {
			body["max_age"] = a
		}

		sub, err := c.submit(ctx, body)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		waitCtx, cancel := context.WithTimeout(ctx, harvestWait)
		defer cancel()
		st, err := c.wait(waitCtx, sub.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("job %s: %v", sub.ID, err)), nil
		}
		if st.Status == "failed" {
			msg := "harvest failed"
			if st.Error != nil {
				msg = fmt.Sprintf("[%s] %s", st.Error.Code, st.Error.Message)
			}
			return mcp.NewToolResultError(fmt.Sprintf("job %s: %s", st.ID, msg)), nil
		}

		cert, err := c.reportMarkdown(ctx, st.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("job %s: report: %v", st.ID, err)), nil
		}
		return mcp.NewToolResultText(summarize(st, sub.CacheStatus == "hit") + "\n" + cert), nil
	}
}

func handleGetReport(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("job_id")
		if err != nil {
			return mcp.NewToolResultError("job_id is required"), nil
		}

		st, err := c.status(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !st.finished() {
			return mcp.NewToolResultText(fmt.Sprintf("Job %s is %s (%s, %d%%).", st.ID, st.Status, st.Stage, st.Progress)), nil
		}
		if st.Status == "failed" {
			msg := "unknown error"
			if st.Error != nil {
				msg = fmt.Sprintf("[%s] %s", st.Error.Code, st.Error.Message)
			}
			return mcp.NewToolResultError(fmt.Sprintf("job %s failed: %s", st.ID, msg)), nil
		}

		cert, err := c.reportMarkdown(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(cert), nil
	}
}

func summarize(st *jobStatus, cached bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job: %s\n", st.ID)
	fmt.Fprintf(&b, "Source: %s\n", st.URL)
	fmt.Fprintf(&b, "Document: %s\n", st.DocumentPath)
	if st.EngineUsed != "" {
		fmt.Fprintf(&b, "Engine: %s\n", st.EngineUsed)
	}
	if st.Summary != nil {
		fmt.Fprintf(&b, "Resources: %d resolved, %d unresolved, %d via fallback\n",
			st.Summary.Resolved, st.Summary.Unresolved, st.Summary.ViaFallback)
	}
	if cached {
		b.WriteString("Served from a recent harvest.\n")
	}
	return b.String()
}
