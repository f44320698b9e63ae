package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/collegeai/internal/chat"
	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/profile"
	"github.com/kalambet/collegeai/internal/slots"
	"github.com/kalambet/collegeai/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    storage.DocumentStore
	Profiles *profile.Manager
	Mode     slots.Mode   // completion mode reported by intake_status; deep when empty
	Locks    *ClientLocks // optional; share with the HTTP handler when both run
}

// NewMCPServer creates an MCP server exposing the student file tools.
func NewMCPServer(deps MCPDeps) *mcpserver.MCPServer {
	if deps.Locks == nil {
		deps.Locks = NewClientLocks()
	}

	s := mcpserver.NewMCPServer(
		"collegeai",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithInstructions("collegeai: student intake profiles, college and scholarship results for one client at a time."),
		mcpserver.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_student_file",
			mcp.WithDescription("Return everything stored for a client: intake profile, advisor results, CV review, scholarships and prep suggestions."),
			mcp.WithString("client_id", mcp.Description("Client id"), mcp.Required()),
		),
		mcpGetStudentFile(deps),
	)

	s.AddTool(
		mcp.NewTool("patch_profile",
			mcp.WithDescription("Apply dot-path patch operations to a client's intake profile."),
			mcp.WithString("client_id", mcp.Description("Client id"), mcp.Required()),
			mcp.WithString("ops", mcp.Description(`JSON array of {"path": "...", "value": ...} objects`), mcp.Required()),
		),
		mcpPatchProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("intake_status",
			mcp.WithDescription("Report which intake fields are still unfilled and whether the interview may finish."),
			mcp.WithString("client_id", mcp.Description("Client id"), mcp.Required()),
		),
		mcpIntakeStatus(deps),
	)

	return s
}

func mcpGetStudentFile(deps MCPDeps) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("client_id")
		if err != nil {
			return mcpError("client_id is required"), nil
		}
		b, err := json.Marshal(chat.Aggregate(id, chat.StoreSources(deps.Store, storage.ContextStores...)))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal student file: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpPatchProfile(deps MCPDeps) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("client_id")
		if err != nil {
			return mcpError("client_id is required"), nil
		}
		raw, err := req.RequireString("ops")
		if err != nil {
			return mcpError("ops is required"), nil
		}

		var ops []document.PatchOp
		if err := json.Unmarshal([]byte(raw), &ops); err != nil {
			return mcpError(fmt.Sprintf("invalid ops JSON: %v", err)), nil
		}
		for _, op := range ops {
			if op.Path == "" {
				return mcpError("every op needs a path"), nil
			}
		}

		unlock := deps.Locks.Lock(id)
		doc, err := deps.Profiles.Patch(id, ops)
		unlock()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to patch profile: %v", err)), nil
		}

		b, err := json.Marshal(doc)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

type intakeStatus struct {
	Mode           slots.Mode `json:"completion_mode"`
	FilledPriority []string   `json:"filled_priority_slots"`
	Unfilled       []string   `json:"unfilled_deep_paths"`
	NextPath       string     `json:"next_path,omitempty"`
	AllowFinish    bool       `json:"allow_finish"`
}

func mcpIntakeStatus(deps MCPDeps) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("client_id")
		if err != nil {
			return mcpError("client_id is required"), nil
		}

		doc, err := deps.Profiles.Get(id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("no intake profile for %s", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load profile: %v", err)), nil
		}

		mode := deps.Mode
		if mode == "" {
			mode = slots.ModeDeep
		}
		priority := slots.Compute(doc, profile.PrioritySlots, nil, slots.ModeCore)
		deep := slots.Compute(doc, profile.DeepPaths, document.AskedSet(doc), mode)
		st := intakeStatus{
			Mode:           mode,
			FilledPriority: priority.Filled,
			Unfilled:       deep.Unfilled,
			AllowFinish:    deep.AllowFinish,
		}
		if next, ok := deep.Next(); ok {
			st.NextPath = next
		}

		b, err := json.Marshal(st)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal status: %v", err)), nil
		}
		return mcpText(string(b)), nil
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
