// Package mcpserver exposes notes to MCP clients over stdio: search, read,
// create, move, render and checkbox tools plus the note format resource.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notebridge/internal/apperr"
	"github.com/starford/notebridge/internal/noteservice"
	"github.com/starford/notebridge/internal/storage"
)

// NoteFormatURI is the resource URI of the note format contract.
const NoteFormatURI = "notebridge://note-format"

const defaultSearchLimit = 20

// Server holds the MCP server and the services its tools call.
type Server struct {
	mcp   *server.MCPServer
	svc   *noteservice.Service
	store storage.Provider
}

// New builds the server with every tool and resource registered.
func New(svc *noteservice.Service, store storage.Provider) *Server {
	s := &Server{svc: svc, store: store}
	s.mcp = server.NewMCPServer("notebridge", "1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)
	s.mcp.AddTools(s.tools()...)
	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Note Format Contract",
			mcp.WithResourceDescription("How notes are written: frontmatter, note links, wikilinks, task lists."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)
	return s
}

func (s *Server) tools() []server.ServerTool {
	pathArg := func(desc string) mcp.ToolOption {
		return mcp.WithString("path", mcp.Required(), mcp.Description(desc))
	}
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("search_notes",
				mcp.WithDescription("Full-text search over note titles, bodies and tags. Hits carry the numeric note id."),
				mcp.WithString("query", mcp.Required(), mcp.Description("Words to search for")),
				mcp.WithNumber("limit", mcp.Description("Maximum hits (default 20)")),
			),
			Handler: s.searchNotes,
		},
		{
			Tool: mcp.NewTool("read_note",
				mcp.WithDescription("Return the raw Markdown of a note."),
				pathArg("Vault-relative path, e.g. folder/note.md"),
			),
			Handler: s.readNote,
		},
		{
			Tool: mcp.NewTool("create_note",
				mcp.WithDescription("Create a note. Read the format first with get_note_contract or the "+
					NoteFormatURI+" resource."),
				pathArg("Vault-relative path ending in .md"),
				mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content")),
			),
			Handler: s.createNote,
		},
		{
			Tool:    mcp.NewTool("get_note_contract", mcp.WithDescription("Return the note format contract.")),
			Handler: s.getNoteContract,
		},
		{
			Tool: mcp.NewTool("list_notes",
				mcp.WithDescription("List note paths, optionally below one folder."),
				mcp.WithString("folder", mcp.Description("Folder to list; empty lists the whole vault")),
			),
			Handler: s.listNotes,
		},
		{
			Tool: mcp.NewTool("get_backlinks",
				mcp.WithDescription("List notes linking to a note by wikilink or numeric note link."),
				pathArg("Path of the linked note"),
			),
			Handler: s.getBacklinks,
		},
		{
			Tool: mcp.NewTool("move_note",
				mcp.WithDescription("Rename or move a note. It keeps its numeric id, so note links to it stay valid."),
				mcp.WithString("from", mcp.Required(), mcp.Description("Current path")),
				mcp.WithString("to", mcp.Required(), mcp.Description("New path ending in .md")),
			),
			Handler: s.moveNote,
		},
		{
			Tool: mcp.NewTool("render_note",
				mcp.WithDescription("Render a note by path or id. Note links to existing notes are resolved, "+
					"www. links get a protocol, and both Markdown and HTML are returned."),
				mcp.WithString("path", mcp.Description("Vault-relative path")),
				mcp.WithNumber("id", mcp.Description("Numeric note id, used when path is empty")),
			),
			Handler: s.renderNote,
		},
		{
			Tool: mcp.NewTool("process_text",
				mcp.WithDescription("Run Markdown through the link rewriting chain without saving it."),
				mcp.WithString("text", mcp.Required(), mcp.Description("Markdown text")),
			),
			Handler: s.processText,
		},
		{
			Tool: mcp.NewTool("toggle_checkbox",
				mcp.WithDescription("Check or uncheck a task list item. Items are counted from zero, "+
					"skipping fenced code blocks."),
				pathArg("Vault-relative path"),
				mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based checkbox index")),
				mcp.WithBoolean("checked", mcp.Required(), mcp.Description("New state")),
			),
			Handler: s.toggleCheckbox,
		},
	}
}

// ServeStdio serves MCP on stdin and stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// toolError turns a service error into a tool error result. Tool failures are
// results, not protocol errors.
func toolError(err error, subject string) *mcp.CallToolResult {
	switch {
	case isNotFound(err):
		return mcp.NewToolResultError("not found: " + subject)
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError("already exists: " + subject)
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("changed concurrently, read it again: " + subject)
	}
	return mcp.NewToolResultError(err.Error())
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, query, req.GetInt("limit", defaultSearchLimit))
	if err != nil {
		return toolError(err, query), nil
	}
	return jsonResult(hits), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, path)
	if err != nil {
		return toolError(err, path), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.CreateNote(ctx, path, []byte(content))
	if err != nil {
		return toolError(err, path), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (id %d)", path, note.ID)), nil
}

func (s *Server) listNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := req.GetString("folder", "")
	metas, err := s.store.List(folder)
	if err != nil {
		return toolError(err, folder), nil
	}
	paths := make([]string, 0, len(metas))
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getNoteContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: NoteFormatURI, MIMEType: "text/markdown", Text: NoteFormatContract},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, path)
	if err != nil {
		return toolError(err, path), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}
