package mcpserver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/notebridge/internal/models"
)

func (s *Server) renderNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	id := int64(req.GetInt("id", 0))

	var (
		out *models.RenderedNote
		err error
	)
	subject := path
	switch {
	case path != "":
		out, err = s.svc.RenderNote(ctx, path)
	case id > 0:
		subject = "note " + strconv.FormatInt(id, 10)
		out, err = s.svc.RenderNoteByID(ctx, id)
	default:
		return mcp.NewToolResultError("path or id is required"), nil
	}
	if err != nil {
		return toolError(err, subject), nil
	}
	return jsonResult(out), nil
}

func (s *Server) processText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.svc.ProcessText(ctx, text)), nil
}

func (s *Server) toggleCheckbox(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	checked, err := req.RequireBool("checked")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.ToggleCheckbox(ctx, path, index, checked, "")
	if err != nil {
		return toolError(err, path), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (checksum %s)", note.Path, note.Checksum)), nil
}

func (s *Server) moveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.MoveNote(ctx, from, to)
	if err != nil {
		subject := from
		if !isNotFound(err) {
			subject = to
		}
		return toolError(err, subject), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved: %s -> %s (id %d)", from, note.Path, note.ID)), nil
}
