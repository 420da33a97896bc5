package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fyxxlabs/sitescan/models"
)

func main() {
	apiURL := os.Getenv("SITESCAN_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SITESCAN_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "SITESCAN_API_KEY is required")
		os.Exit(1)
	}

	if err := server.ServeStdio(newServer(newAPIClient(apiURL, apiKey))); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(c *apiClient) *server.MCPServer {
	s := server.NewMCPServer("sitescan", "1.0.0", server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("start_scan",
		mcp.WithDescription("Start a conversion audit of an online store. Returns the scan ID; with wait=true, blocks until the scan finishes and returns the full result."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Home page URL of the store"),
		),
		mcp.WithString("fetch_mode",
			mcp.Description("Preferred fetch strategy: 'rendered' (default, headless browser) or 'plain' (single HTTP GET)"),
			mcp.Enum(models.FetchModeRendered, models.FetchModePlain),
		),
		mcp.WithBoolean("skip_ai",
			mcp.Description("Run the deterministic baseline audit only"),
		),
		mcp.WithString("platform", mcp.Description("Store platform, e.g. shopify")),
		mcp.WithString("country", mcp.Description("Store country")),
		mcp.WithString("goal", mcp.Description("Merchant goal forwarded to the AI review")),
		mcp.WithBoolean("wait",
			mcp.Description("Block until the scan finishes (up to 2 minutes)"),
		),
	), handleStartScan(c))

	s.AddTool(mcp.NewTool("get_scan",
		mcp.WithDescription("Get the status of a scan, and its full result once finished."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Scan ID returned by start_scan")),
	), handleGetScan(c))

	s.AddTool(mcp.NewTool("get_scan_preview",
		mcp.WithDescription("Get the short preview of a finished scan: score, priority action, top three issues and checklist."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Scan ID returned by start_scan")),
	), handleGetPreview(c))

	return s
}

func handleStartScan(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		req := models.ScanRequest{
			URL:       url,
			FetchMode: request.GetString("fetch_mode", ""),
			SkipAI:    request.GetBool("skip_ai", false),
			Platform:  request.GetString("platform", ""),
			Country:   request.GetString("country", ""),
			Goal:      request.GetString("goal", ""),
		}

		accepted, err := c.StartScan(ctx, req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !request.GetBool("wait", false) {
			return jsonResult(accepted)
		}

		waitCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if _, err := c.waitFinished(waitCtx, accepted.ID, 2*time.Second); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scan %s did not finish: %v", accepted.ID, err)), nil
		}
		return resultOrError(ctx, c, accepted.ID)
	}
}

func handleGetScan(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		st, err := c.Status(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if st.Status != models.JobSucceeded {
			return jsonResult(st)
		}
		return resultOrError(ctx, c, id)
	}
}

func handleGetPreview(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		p, err := c.Preview(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(p)
	}
}

func resultOrError(ctx context.Context, c *apiClient, id string) (*mcp.CallToolResult, error) {
	res, err := c.Result(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
