package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/saladjay/ChatCoachService-sub002/internal/race"
	"github.com/saladjay/ChatCoachService-sub002/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Parser Parser
	Cache  CacheStore
}

// NewMCPServer creates an MCP server exposing the screenshot parser and
// its result cache as tools, plus a resource listing recent parses.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"chatparse",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("chatparse — parses chat screenshots into structured bubbles via racing vision models."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("parse_screenshot",
			mcp.WithDescription("Parse a chat screenshot into structured bubbles with sender attribution and layout."),
			mcp.WithString("image_base64", mcp.Description("Base64-encoded image bytes"), mcp.Required()),
			mcp.WithString("mime_type", mcp.Description("Image MIME type (default image/png)")),
			mcp.WithNumber("width", mcp.Description("Image width in pixels"), mcp.Required()),
			mcp.WithNumber("height", mcp.Description("Image height in pixels"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Session the screenshot belongs to")),
			mcp.WithString("scene", mcp.Description("Scene label for the cache key (default \"default\")")),
			mcp.WithBoolean("need_nickname", mcp.Description("Ask the models to extract nicknames")),
			mcp.WithBoolean("need_sender", mcp.Description("Ask the models to attribute senders explicitly")),
			mcp.WithBoolean("force_two_columns", mcp.Description("Treat the layout as two-column regardless of detection")),
		),
		mcpParseScreenshot(deps),
	)

	s.AddTool(
		mcp.NewTool("recall_parse",
			mcp.WithDescription("Fetch the most recent cached parse result for a session/resource key."),
			mcp.WithString("session_id", mcp.Description("Session the screenshot belongs to"), mcp.Required()),
			mcp.WithString("resource", mcp.Description("Resource key: hex SHA-256 of the image bytes"), mcp.Required()),
			mcp.WithString("scene", mcp.Description("Scene label (default \"default\")")),
		),
		mcpRecallParse(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"cache://recent",
			"Recent Parse Results",
			mcp.WithResourceDescription("Last 10 cached parse results (metadata and truncated payloads)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpParseScreenshot(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		imageB64, err := req.RequireString("image_base64")
		if err != nil {
			return mcpError("image_base64 is required"), nil
		}
		width, err := req.RequireInt("width")
		if err != nil {
			return mcpError("width is required"), nil
		}
		height, err := req.RequireInt("height")
		if err != nil {
			return mcpError("height is required"), nil
		}

		in := race.Input{
			ImageB64:  imageB64,
			MimeType:  req.GetString("mime_type", "image/png"),
			Width:     width,
			Height:    height,
			SessionID: req.GetString("session_id", ""),
			Scene:     req.GetString("scene", ""),
		}
		in.Options.NeedNickname = req.GetBool("need_nickname", false)
		in.Options.NeedSender = req.GetBool("need_sender", false)
		in.Options.ForceTwoColumns = req.GetBool("force_two_columns", false)

		out, err := deps.Parser.Parse(ctx, in)
		if err != nil {
			return mcpError(fmt.Sprintf("parse failed: %v", err)), nil
		}

		b, err := json.Marshal(ParseResponse{
			Code:      0,
			Strategy:  out.Strategy,
			Model:     out.Model,
			ElapsedMs: out.ElapsedMs,
			Cost:      out.Cost,
			Result:    out.Result,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpRecallParse(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		resource, err := req.RequireString("resource")
		if err != nil {
			return mcpError("resource is required"), nil
		}
		scene := req.GetString("scene", race.DefaultScene)

		entry, err := deps.Cache.GetLatestResult(sessionID, race.CacheCategory, resource, scene)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError("no cached result for this key"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("cache lookup failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]any{
			"strategy":   entry.Strategy,
			"model":      entry.Model,
			"created_at": entry.CreatedAt.Format(time.RFC3339),
			"result":     json.RawMessage(entry.PayloadJSON),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		entries, err := deps.Cache.ListRecentResults(10)
		if err != nil {
			return nil, fmt.Errorf("failed to list recent results: %w", err)
		}

		type entrySummary struct {
			SessionID string `json:"session_id"`
			Resource  string `json:"resource"`
			Scene     string `json:"scene"`
			Strategy  string `json:"strategy"`
			Model     string `json:"model"`
			CreatedAt string `json:"created_at"`
			Payload   string `json:"payload"`
		}

		summaries := make([]entrySummary, len(entries))
		for i, e := range entries {
			payload := e.PayloadJSON
			if utf8.RuneCountInString(payload) > 500 {
				runes := []rune(payload)
				payload = string(runes[:500]) + "..."
			}
			summaries[i] = entrySummary{
				SessionID: e.SessionID,
				Resource:  e.Resource,
				Scene:     e.Scene,
				Strategy:  e.Strategy,
				Model:     e.Model,
				CreatedAt: e.CreatedAt.Format(time.RFC3339),
				Payload:   payload,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal summaries: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
