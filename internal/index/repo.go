package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starford/notebridge/internal/apperr"
	"github.com/starford/notebridge/internal/textproc"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	ID        int64
	Path      string
	Title     string
	Checksum  string
	Tags      []string
	Excerpt   string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      int64  `json:"id"`
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// GraphNode is a note in the link graph.
type GraphNode struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// GraphLink is a resolved edge between two notes.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

const noteColumns = `id, path, title, checksum, tags, excerpt, updated_at`

const defaultSearchLimit = 20

// UpsertNote inserts or replaces a note, its FTS entry, and its outgoing links
// within a transaction. It returns the note id, which is kept on update.
func (db *DB) UpsertNote(n NoteRow, body string, links, noteRefs []string) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)

	_, err = tx.Exec(`
		INSERT INTO notes (path, title, checksum, tags, excerpt, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			excerpt    = excluded.excerpt,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, n.Path, n.Title, n.Checksum, string(tagsJSON), n.Excerpt, body, n.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("index: upsert note: %w", err)
	}

	var id int64
	if err := tx.QueryRow(`SELECT id FROM notes WHERE path = ?`, n.Path).Scan(&id); err != nil {
		return 0, fmt.Errorf("index: read note id: %w", err)
	}

	if err := ftsUpsert(tx, id, n.Title, body, tags); err != nil {
		return 0, err
	}

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, n.Path); err != nil {
		return 0, fmt.Errorf("index: clear links: %w", err)
	}
	if len(links)+len(noteRefs) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, type) VALUES (?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(n.Path, target, LinkTypeWiki); err != nil {
				return 0, fmt.Errorf("index: insert link: %w", err)
			}
		}
		for _, ref := range noteRefs {
			if _, err := stmt.Exec(n.Path, ref, LinkTypeNote); err != nil {
				return 0, fmt.Errorf("index: insert note ref: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("index: commit: %w", err)
	}
	return id, nil
}

// DeleteNote removes a note, its FTS entry, and outgoing links. Deleting a
// path that is not indexed is a no-op.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id int64
	err = tx.QueryRow(`SELECT id FROM notes WHERE path = ?`, path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("index: lookup note: %w", err)
	}
	if err := ftsDelete(tx, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, path); err != nil {
		return fmt.Errorf("index: delete links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// RenameNote moves the index entry of oldPath to newPath and keeps its id,
// so numeric links to the note keep resolving. Outgoing links follow the
// note. Wikilinks that named the old path are left as written.
func (db *DB) RenameNote(oldPath, newPath string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var taken int
	if err := tx.QueryRow(`SELECT count(*) FROM notes WHERE path = ?`, newPath).Scan(&taken); err != nil {
		return fmt.Errorf("index: check target: %w", err)
	}
	if taken > 0 {
		return apperr.ErrAlreadyExists
	}

	res, err := tx.Exec(`UPDATE notes SET path = ? WHERE path = ?`, newPath, oldPath)
	if err != nil {
		return fmt.Errorf("index: rename note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	if _, err := tx.Exec(`UPDATE links SET source = ? WHERE source = ?`, newPath, oldPath); err != nil {
		return fmt.Errorf("index: rename links: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetNote returns the indexed row for path or apperr.ErrNotFound.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	row := db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE path = ?`, path)
	return scanNote(row)
}

// GetNoteByID returns the indexed row for id or apperr.ErrNotFound.
func (db *DB) GetNoteByID(id int64) (*NoteRow, error) {
	row := db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	return scanNote(row)
}

// ListNotes returns a page of notes and the total number of matches.
// tag filters on an exact tag. sort is one of "updated_at" (newest first,
// the default), "title" or "path".
func (db *DB) ListNotes(limit, offset int, tag, sort string) ([]NoteRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var order string
	switch sort {
	case "title":
		order = "title COLLATE NOCASE ASC, path ASC"
	case "path":
		order = "path ASC"
	default:
		order = "updated_at DESC, path ASC"
	}

	where := ""
	var args []any
	if tag != "" {
		tagJSON, _ := json.Marshal(tag)
		where = ` WHERE tags LIKE ?`
		args = append(args, "%"+string(tagJSON)+"%")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+noteColumns+` FROM notes`+where+
		` ORDER BY `+order+` LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// KnownNoteIDs returns a fresh snapshot of the ids of all indexed notes.
func (db *DB) KnownNoteIDs() (textproc.IDSet, error) {
	rows, err := db.conn.Query(`SELECT id FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: known ids: %w", err)
	}
	defer rows.Close()
	out := make(textproc.IDSet)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[strconv.FormatInt(id, 10)] = struct{}{}
	}
	return out, rows.Err()
}

// AllPaths returns every indexed note path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// AllChecksums returns path → checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Backlinks returns all note paths that link to target, either by wikilink
// (with or without the .md extension) or by a numeric link to target's id.
func (db *DB) Backlinks(target string) ([]string, error) {
	stem := strings.TrimSuffix(target, ".md")
	rows, err := db.conn.Query(`
		SELECT DISTINCT source FROM links
		WHERE (type = ? AND target IN (?, ?))
		   OR (type = ? AND target = (SELECT CAST(id AS TEXT) FROM notes WHERE path = ?))
		ORDER BY source
	`, LinkTypeWiki, target, stem, LinkTypeNote, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Graph returns every note and every link that resolves to an indexed note.
func (db *DB) Graph() ([]GraphNode, []GraphLink, error) {
	nodeRows, err := db.conn.Query(`SELECT path, title FROM notes ORDER BY path`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	defer nodeRows.Close()

	nodes := []GraphNode{}
	for nodeRows.Next() {
		var n GraphNode
		if err := nodeRows.Scan(&n.ID, &n.Title); err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, nil, err
	}

	linkRows, err := db.conn.Query(`
		SELECT DISTINCT l.source, n.path
		FROM links l
		JOIN notes n ON
			(l.type = ? AND (n.path = l.target OR n.path = l.target || '.md'))
			OR (l.type = ? AND CAST(n.id AS TEXT) = l.target)
		ORDER BY l.source, n.path
	`, LinkTypeWiki, LinkTypeNote)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer linkRows.Close()

	links := []GraphLink{}
	for linkRows.Next() {
		var l GraphLink
		if err := linkRows.Scan(&l.Source, &l.Target); err != nil {
			return nil, nil, err
		}
		links = append(links, l)
	}
	return nodes, links, linkRows.Err()
}

func scanSearch(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Path, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(s rowScanner) (*NoteRow, error) {
	var (
		n        NoteRow
		tagsJSON string
	)
	err := s.Scan(&n.ID, &n.Path, &n.Title, &n.Checksum, &tagsJSON, &n.Excerpt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: scan note: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil {
		n.Tags = []string{}
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	return &n, nil
}
