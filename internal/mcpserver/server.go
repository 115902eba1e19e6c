// Package mcpserver exposes the review scheduler as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/incremental/internal/apperr"
	"github.com/starford/incremental/internal/interval"
	"github.com/starford/incremental/internal/models"
)

// Scheduler is what the tools drive.
type Scheduler interface {
	SetPriority(ctx context.Context, id string, priority float64) (models.Item, error)
	ChooseInterval(ctx context.Context, id string, days int) (*models.Item, error)
	MarkDone(ctx context.Context, id string) error
	Items(ctx context.Context) ([]models.Item, error)
	Due(ctx context.Context, now time.Time) ([]models.Item, error)
	Preview(priority float64) (interval.Preview, error)
}

// Server wraps the MCP server with scheduling tools.
type Server struct {
	mcp   *server.MCPServer
	sched Scheduler
	now   func() time.Time
}

// New registers every tool and resource.
func New(sched Scheduler, version string) *Server {
	s := &Server{sched: sched, now: time.Now}

	s.mcp = server.NewMCPServer(
		"Incremental",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("set_priority",
		mcp.WithDescription("Schedule a note for incremental review from a priority between 0 (soonest) and 100 (latest). "+
			"Read "+PriorityGuideURI+" for the priority scale."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Vault-relative note path, e.g. topics/go.md")),
		mcp.WithNumber("priority", mcp.Required(), mcp.Description("Priority 0-100"), mcp.Min(0), mcp.Max(100)),
	), s.setPriority)

	s.mcp.AddTool(mcp.NewTool("choose_interval",
		mcp.WithDescription("Reschedule a scheduled note a whole number of days from now and log the review."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Vault-relative note path")),
		mcp.WithNumber("days", mcp.Required(), mcp.Description("Days until the next review"), mcp.Min(1)),
	), s.chooseInterval)

	s.mcp.AddTool(mcp.NewTool("mark_done",
		mcp.WithDescription("Retire a note from incremental review. The note itself is kept."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Vault-relative note path")),
	), s.markDone)

	s.mcp.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List every scheduled item in review order."),
	), s.listItems)

	s.mcp.AddTool(mcp.NewTool("due_items",
		mcp.WithDescription("List the items whose next review is due now."),
	), s.dueItems)

	s.mcp.AddTool(mcp.NewTool("preview_interval",
		mcp.WithDescription("Show the interval and next review date a priority would produce, without changing anything."),
		mcp.WithNumber("priority", mcp.Required(), mcp.Description("Priority 0-100")),
	), s.previewInterval)

	s.mcp.AddResource(
		mcp.NewResource(PriorityGuideURI, "Priority Guide",
			mcp.WithResourceDescription("How priorities map to review intervals."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPriorityGuide,
	)

	return s
}

// ServeStdio serves on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(id string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrItemNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("note not found: %s", id))
	case errors.Is(err, apperr.ErrStoreUnavailable):
		return mcp.NewToolResultError("item store unavailable, try again")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) setPriority(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	priority, err := req.RequireFloat("priority")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.sched.SetPriority(ctx, id, priority)
	if err != nil {
		return toolError(id, err), nil
	}
	return jsonResult(item)
}

func (s *Server) chooseInterval(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	days, err := req.RequireFloat("days")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if days != float64(int(days)) {
		return mcp.NewToolResultError("days must be a whole number"), nil
	}
	item, err := s.sched.ChooseInterval(ctx, id, int(days))
	if err != nil {
		return toolError(id, err), nil
	}
	if item == nil {
		return mcp.NewToolResultText(fmt.Sprintf("not scheduled: %s", id)), nil
	}
	return jsonResult(item)
}

func (s *Server) markDone(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sched.MarkDone(ctx, id); err != nil {
		return toolError(id, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("done: %s", id)), nil
}

func (s *Server) listItems(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.sched.Items(ctx)
	if err != nil {
		return toolError("", err), nil
	}
	return jsonResult(items)
}

func (s *Server) dueItems(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.sched.Due(ctx, s.now())
	if err != nil {
		return toolError("", err), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("nothing due"), nil
	}
	return jsonResult(items)
}

func (s *Server) previewInterval(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	priority, err := req.RequireFloat("priority")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.sched.Preview(priority)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(p)
}

func (s *Server) readPriorityGuide(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      PriorityGuideURI,
			MIMEType: "text/markdown",
			Text:     PriorityGuide(),
		},
	}, nil
}
