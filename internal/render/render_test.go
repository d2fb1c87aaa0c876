package render_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notebridge/internal/render"
	"github.com/starford/notebridge/internal/textproc"
)

func TestRender_NoteLink(t *testing.T) {
	r := render.New(render.Options{})

	out, err := r.Render("see [Alpha](https://notebridge/notes/5)")
	require.NoError(t, err)
	assert.Contains(t, out, `href="/api/notes-by-id/5"`)
	assert.Contains(t, out, `class="note-link"`)
	assert.Contains(t, out, `data-note-id="5"`)
	assert.Contains(t, out, `>Alpha</a>`)
}

func TestRender_WebLinkUntouched(t *testing.T) {
	r := render.New(render.Options{})

	out, err := r.Render("[site](https://example.com/notes/5)")
	require.NoError(t, err)
	assert.Contains(t, out, `href="https://example.com/notes/5"`)
	assert.NotContains(t, out, "note-link")
}

func TestRender_NonNumericPrefixLinkUntouched(t *testing.T) {
	r := render.New(render.Options{})

	out, err := r.Render("[x](https://notebridge/notes/abc)")
	require.NoError(t, err)
	assert.Contains(t, out, `href="https://notebridge/notes/abc"`)
	assert.NotContains(t, out, "data-note-id")
}

func TestRender_NonCanonicalIDUntouched(t *testing.T) {
	r := render.New(render.Options{})

	for _, id := range []string{"0", "007"} {
		out, err := r.Render("[x](https://notebridge/notes/" + id + ")")
		require.NoError(t, err)
		assert.NotContains(t, out, "data-note-id", id)
		assert.NotContains(t, out, "/api/notes-by-id/", id)
	}
}

func TestRender_CustomPrefixAndRoute(t *testing.T) {
	r := render.New(render.Options{InternalLinkPrefix: "note://", NoteRoute: "/n/"})

	out, err := r.Render("[a](note://12)")
	require.NoError(t, err)
	assert.Contains(t, out, `href="/n/12"`)
	assert.Contains(t, out, `data-note-id="12"`)
}

func TestRender_SanitizeKeepsNoteLinkAttributes(t *testing.T) {
	r := render.New(render.Options{Sanitize: true})

	out, err := r.Render("[a](https://notebridge/notes/3)\n\n- [x] done\n- [ ] todo")
	require.NoError(t, err)
	assert.Contains(t, out, `href="/api/notes-by-id/3"`)
	assert.Contains(t, out, `class="note-link"`)
	assert.Contains(t, out, `data-note-id="3"`)
	assert.Contains(t, out, `type="checkbox"`)
}

func TestRender_UnsanitizedOmitsRawHTML(t *testing.T) {
	r := render.New(render.Options{})

	out, err := r.Render("<script>alert(1)</script>\n\ntext")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "<p>text</p>")
}

func TestRender_AfterDefaultChain(t *testing.T) {
	chain := textproc.NewDefaultChain(textproc.DefaultOptions(), textproc.NewIDSet("7"))
	r := render.New(render.Options{Sanitize: true})

	md := chain.Apply("[note](7) [missing](8) [site](www.example.org)")
	out, err := r.Render(md)
	require.NoError(t, err)

	assert.Contains(t, out, `href="/api/notes-by-id/7"`)
	assert.Contains(t, out, `href="8"`)
	assert.Contains(t, out, `href="https://www.example.org"`)
}
