package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/notebridge/internal/checksum"
)

func noteID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// GetNoteByID handles GET /api/notes-by-id/{id}.
//
//	@Summary		Get a single note by numeric id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		int	true	"Note id"
//	@Success		200	{object}	NoteDetail
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes-by-id/{id} [get]
func (h *Handler) GetNoteByID(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	note, err := h.svc.GetNoteByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get note by id", slog.Int64("id", id))
		return
	}
	writeNote(w, http.StatusOK, note)
}

// RenderNote handles GET /api/render/*.
//
//	@Summary		Render a note with note links resolved
//	@Tags			render
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	RenderedNote
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/render/{path} [get]
func (h *Handler) RenderNote(w http.ResponseWriter, r *http.Request) {
	path, ok := requirePath(w, r)
	if !ok {
		return
	}
	out, err := h.svc.RenderNote(r.Context(), path)
	if err != nil {
		writeServiceError(w, err, "render note", slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// RenderNoteByID handles GET /api/render-by-id/{id}.
//
//	@Summary		Render a note addressed by id
//	@Tags			render
//	@Produce		json
//	@Param			id	path		int	true	"Note id"
//	@Success		200	{object}	RenderedNote
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/render-by-id/{id} [get]
func (h *Handler) RenderNoteByID(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	out, err := h.svc.RenderNoteByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "render note by id", slog.Int64("id", id))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ProcessText handles POST /api/process.
//
//	@Summary		Run Markdown through the link rewriting chain
//	@Tags			render
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ProcessRequest	true	"Text to process"
//	@Success		200		{object}	ProcessResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/process [post]
func (h *Handler) ProcessText(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, ProcessResponse{Text: h.svc.ProcessText(r.Context(), req.Text)})
}

// ToggleCheckbox handles POST /api/checkbox/*.
//
//	@Summary		Check or uncheck a task list item
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string			true	"Note path"
//	@Param			If-Match	header		string			false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		CheckboxRequest	true	"Checkbox index and state"
//	@Success		200			{object}	NoteDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/checkbox/{path} [post]
func (h *Handler) ToggleCheckbox(w http.ResponseWriter, r *http.Request) {
	path, ok := requirePath(w, r)
	if !ok {
		return
	}
	var req CheckboxRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ifMatch := checksum.ParseIfMatch(r.Header.Get("If-Match"))

	note, err := h.svc.ToggleCheckbox(r.Context(), path, req.Index, req.Checked, ifMatch)
	if err != nil {
		writeServiceError(w, err, "toggle checkbox", slog.String("path", path), slog.Int("index", req.Index))
		return
	}
	writeNote(w, http.StatusOK, note)
}

// ResolveLink handles GET /api/resolve.
//
//	@Summary		Resolve a clicked link to a note
//	@Tags			render
//	@Produce		json
//	@Param			link	query		string	true	"Link target"
//	@Success		200		{object}	ResolvedLink
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve [get]
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	link := r.URL.Query().Get("link")
	if link == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'link' is required"))
		return
	}
	out, err := h.svc.ResolveLink(r.Context(), link)
	if err != nil {
		writeServiceError(w, err, "resolve link", slog.String("link", link))
		return
	}
	writeJSON(w, http.StatusOK, out)
}
