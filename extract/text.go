package extract

import (
	"context"
	"strings"

	"github.com/poiesic/studyforge/core"
)

// Text passes pasted text through unchanged.
type Text struct{}

// Extract implements Extractor. The title defaults to the first line.
func (Text) Extract(ctx context.Context, payload core.Payload) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(payload.Text)
	title := strings.TrimSpace(payload.Title)
	if title == "" {
		title = firstLine(text, 80)
	}
	return &Result{Title: title, Text: text}, nil
}
