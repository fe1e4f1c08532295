package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pario-ai/tokenboard/pkg/models"
)

type handlerFunc func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

type tool struct {
	def    ToolDefinition
	handle handlerFunc
}

var tools = []tool{
	{
		def: ToolDefinition{
			Name:        "tokenboard_summary",
			Description: "Show lifetime totals, the current and previous billing cycle, and the last 30 days.",
			InputSchema: objectSchema(nil),
		},
		handle: handleSummary,
	},
	{
		def: ToolDefinition{
			Name:        "tokenboard_daily",
			Description: "Show per-day usage summed across devices, newest first.",
			InputSchema: objectSchema(map[string]any{
				"days": map[string]any{
					"type":        "integer",
					"description": "Number of days to show (optional, default 14, max 30)",
				},
			}),
		},
		handle: handleDaily,
	},
	{
		def: ToolDefinition{
			Name:        "tokenboard_devices",
			Description: "List devices with lifetime cost, tokens and last active date.",
			InputSchema: objectSchema(nil),
		},
		handle: handleDevices,
	},
	{
		def: ToolDefinition{
			Name:        "tokenboard_sync_log",
			Description: "Search recent sync requests in the audit trail.",
			InputSchema: objectSchema(map[string]any{
				"device_id": map[string]any{
					"type":        "string",
					"description": "Filter by device id (optional)",
				},
				"since": map[string]any{
					"type":        "string",
					"description": "Start date in YYYY-MM-DD format (optional)",
				},
			}),
		},
		handle: handleSyncLog,
	},
}

func objectSchema(props map[string]any) map[string]any {
	if props == nil {
		props = map[string]any{}
	}
	return map[string]any{"type": "object", "properties": props}
}

func toolDefinitions() []ToolDefinition {
	defs := make([]ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = t.def
	}
	return defs
}

func toolByName(name string) (tool, bool) {
	for _, t := range tools {
		if t.def.Name == name {
			return t, true
		}
	}
	return tool{}, false
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: true}
}

func handleSummary(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	resp, err := s.stats.Compose(ctx)
	if err != nil {
		return errorResult("Error fetching usage stats: " + err.Error())
	}
	return textResult(formatSummary(resp))
}

type dailyArgs struct {
	Days int `json:"days"`
}

func handleDaily(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args dailyArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return errorResult("Invalid arguments: " + err.Error())
		}
	}
	if args.Days <= 0 {
		args.Days = 14
	}

	resp, err := s.stats.Compose(ctx)
	if err != nil {
		return errorResult("Error fetching usage stats: " + err.Error())
	}
	return textResult(formatDaily(resp.Daily, args.Days))
}

func handleDevices(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	resp, err := s.stats.Compose(ctx)
	if err != nil {
		return errorResult("Error fetching usage stats: " + err.Error())
	}
	return textResult(formatDevices(resp.Devices))
}

type syncLogArgs struct {
	DeviceID string `json:"device_id"`
	Since    string `json:"since"`
}

func handleSyncLog(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.audit == nil {
		return textResult("Sync audit logging is not configured.")
	}
	var args syncLogArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return errorResult("Invalid arguments: " + err.Error())
		}
	}

	opts := models.AuditQueryOpts{DeviceID: args.DeviceID, Limit: 50}
	if args.Since != "" {
		t, err := time.Parse(time.DateOnly, args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		opts.Since = t
	}

	events, err := s.audit.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching sync log: " + err.Error())
	}
	return textResult(formatSyncEvents(events))
}
