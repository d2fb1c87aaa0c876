package mcpserver

import _ "embed"

// NoteFormatContract is served by get_note_contract and as the
// NoteFormatURI resource.
//
//go:embed contract.md
var NoteFormatContract string
