// Command mirror-mcp exposes the harvest API as MCP tools over stdio.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	_ = godotenv.Load()

	apiURL := os.Getenv("MIRROR_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("MIRROR_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "MIRROR_API_KEY is required")
		os.Exit(1)
	}

	s := newServer(newClient(apiURL, apiKey))
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(c *client) *server.MCPServer {
	s := server.NewMCPServer(
		"mirror",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	harvestTool := mcp.NewTool("harvest_site",
		mcp.WithDescription("Mirror a web page for offline use: render it in a headless browser, download its images, stylesheets, scripts, fonts and icons, rewrite the page to the local copies, and return the output location with a quality certificate. Blocks until the job finishes."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The page to mirror"),
		),
		mcp.WithBoolean("stealth",
			mcp.Description("Start with the stealth browser for sites with bot protection"),
		),
		mcp.WithBoolean("placeholders",
			mcp.Description("Substitute placeholder images and stylesheets for assets that could not be downloaded"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Render timeout in seconds (default 60, max 300)"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Reuse a completed harvest of the same page younger than this many milliseconds"),
		),
	)
	s.AddTool(harvestTool, handleHarvestSite(c))

	reportTool := mcp.NewTool("get_quality_report",
		mcp.WithDescription("Get the quality certificate of a harvest job as Markdown, or its current progress if it is still running."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID returned by harvest_site"),
		),
	)
	s.AddTool(reportTool, handleGetReport(c))

	return s
}
