package tui

import (
	"encoding/json"
	"strings"

	"github.com/charmbracelet/glamour"
)

// minOutputWidth keeps the highlighted block readable in narrow terminals.
const minOutputWidth = 24

// defaultOutputStyle names the glamour style used when none is configured.
const defaultOutputStyle = "dark"

// outputStyles lists the glamour standard styles the form accepts.
var outputStyles = map[string]struct{}{
	"dark":  {},
	"light": {},
	"ascii": {},
	"notty": {},
}

// jsonHighlighter colors successful JSON responses. It keeps one glamour
// renderer per style and width pair so resizing back and forth reuses work.
type jsonHighlighter struct {
	style     string
	renderers map[highlightKey]*glamour.TermRenderer
}

// highlightKey identifies one cached renderer.
type highlightKey struct {
	style string
	width int
}

// newJSONHighlighter returns a highlighter for one glamour standard style.
func newJSONHighlighter(style string) *jsonHighlighter {
	h := &jsonHighlighter{renderers: map[highlightKey]*glamour.TermRenderer{}}
	h.setStyle(style)
	return h
}

// setStyle switches the glamour style; unknown names fall back to dark.
func (h *jsonHighlighter) setStyle(style string) {
	style = strings.ToLower(strings.TrimSpace(style))
	if _, ok := outputStyles[style]; !ok {
		style = defaultOutputStyle
	}
	h.style = style
}

// highlight returns text as a colored JSON block, or "" when text is not a
// JSON document or glamour fails. Callers show the plain text in that case.
func (h *jsonHighlighter) highlight(text string, width int) string {
	text = strings.TrimSpace(text)
	if text == "" || !json.Valid([]byte(text)) {
		return ""
	}
	renderer, err := h.renderer(max(minOutputWidth, width))
	if err != nil {
		return ""
	}
	rendered, err := renderer.Render("```json\n" + text + "\n```")
	if err != nil {
		return ""
	}
	return strings.Trim(rendered, "\n")
}

// renderer returns the cached renderer for the active style at width.
func (h *jsonHighlighter) renderer(width int) (*glamour.TermRenderer, error) {
	key := highlightKey{style: h.style, width: width}
	if r, ok := h.renderers[key]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(h.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	h.renderers[key] = r
	return r, nil
}
