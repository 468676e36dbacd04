package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/studyforge/core"
)

// Converter turns a file in a non-text format into text.
type Converter interface {
	// Supports reports whether the converter reads files with extension ext,
	// given lowercase and with the leading dot.
	Supports(ext string) bool

	// Convert returns the text content of the file at path.
	Convert(ctx context.Context, path string) (string, error)
}

// nativeFormats are read from disk without conversion.
var nativeFormats = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".json":     true,
	".html":     true,
	".htm":      true,
}

// Document reads uploaded files.
type Document struct {
	Converter Converter // Optional; handles formats that are not plain text
}

// Extract implements Extractor.
func (d *Document) Extract(ctx context.Context, payload core.Payload) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := payload.FilePath
	ext := strings.ToLower(filepath.Ext(path))

	text, err := d.read(ctx, path, ext)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(payload.Title)
	if title == "" {
		title = filepath.Base(path)
	}
	return &Result{
		Title:    title,
		Text:     strings.TrimSpace(text),
		FilePath: path,
		Metadata: map[string]any{"extension": ext},
	}, nil
}

func (d *Document) read(ctx context.Context, path, ext string) (string, error) {
	if !nativeFormats[ext] {
		if d.Converter == nil || !d.Converter.Supports(ext) {
			return "", core.NewValidationError("file_path", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext))
		}
		text, err := d.Converter.Convert(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", core.NewExternalServiceError("document conversion", core.ReasonUpstream, false, err)
		}
		return text, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", core.NewValidationError("file_path", err)
		}
		return "", core.NewStorageError("reading document", err)
	}
	if !utf8.Valid(data) {
		return "", core.NewValidationError("file_path", ErrBinaryContent)
	}
	if ext == ".html" || ext == ".htm" {
		_, text, err := htmlToText(string(data))
		if err != nil {
			return "", core.NewValidationError("file_path", err)
		}
		return text, nil
	}
	return string(data), nil
}
