package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/starford/notebridge/internal/index"
	"github.com/starford/notebridge/internal/render"
	"github.com/starford/notebridge/internal/textproc"
)

// ProcessRequest describes one offline pipeline run.
type ProcessRequest struct {
	In  io.Reader
	Out io.Writer
	// IDs are note ids treated as existing.
	IDs []int64
	// FromIndex adds the ids of every note in the configured SQLite index.
	FromIndex bool
	// HTML renders the processed Markdown instead of printing it.
	HTML bool
}

// Process runs the default chain over req.In without starting any server.
func Process(_ context.Context, req ProcessRequest, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, closeLog := newLogger(cfg.App, app.logOut)
	defer closeLog()

	known := textproc.IDSetFromInts(req.IDs...)
	if req.FromIndex {
		db, err := index.Open(cfg.SQLite.Path)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer db.Close()
		ids, err := db.KnownNoteIDs()
		if err != nil {
			return fmt.Errorf("load note ids: %w", err)
		}
		for id := range ids {
			known[id] = struct{}{}
		}
	}
	logger.Debug("processing input", slog.Int("known_ids", len(known)))

	data, err := io.ReadAll(req.In)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	out := textproc.NewDefaultChain(cfg.Render.TextOptions(), known).Apply(string(data))
	if req.HTML {
		out, err = render.New(cfg.Render.RenderOptions()).Render(out)
		if err != nil {
			return err
		}
	}
	_, err = io.WriteString(req.Out, out)
	return err
}
