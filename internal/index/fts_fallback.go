//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// Without FTS5 the notes table itself is searched with LIKE.
func initFTS(_ *sql.DB) error { return nil }

func ftsUpsert(_ *sql.Tx, _ int64, _, _ string, _ []string) error { return nil }

func ftsDelete(_ *sql.Tx, _ int64) error { return nil }

// snippetRadius is the number of bytes kept on each side of the first hit.
const snippetRadius = 80

// Search matches query as a substring of title, body or tags, newest first.
// The snippet is cut around the first body hit, or is the excerpt when only
// the title or tags matched.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	like := "%" + escapeLike(query) + "%"
	rows, err := db.conn.Query(`
		SELECT id, path, title,
		       CASE WHEN instr(lower(body), lower(?)) > 0
		            THEN substr(body, max(1, instr(lower(body), lower(?)) - ?), ? * 2 + length(?))
		            ELSE excerpt END
		FROM notes
		WHERE title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\'
		ORDER BY updated_at DESC
		LIMIT ?
	`, query, query, snippetRadius, snippetRadius, query, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanSearch(rows)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
