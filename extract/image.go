package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/studyforge/ai"
	"github.com/poiesic/studyforge/core"
)

// DefaultImagePrompt is used when an image payload carries no prompt.
const DefaultImagePrompt = "Describe this image and extract key information"

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// Image interprets an image file with a vision model.
type Image struct {
	Describer ai.ImageDescriber
}

// Extract implements Extractor.
func (e *Image) Extract(ctx context.Context, payload core.Payload) (*Result, error) {
	if e.Describer == nil {
		return nil, ErrDescriberRequired
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := payload.FilePath
	ext := strings.ToLower(filepath.Ext(path))
	mimeType, ok := imageTypes[ext]
	if !ok {
		return nil, core.NewValidationError("file_path", fmt.Errorf("%w: %q, only .png, .jpg and .jpeg are accepted", ErrUnsupportedFormat, ext))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.NewValidationError("file_path", err)
		}
		return nil, core.NewStorageError("reading image", err)
	}

	prompt := strings.TrimSpace(payload.Prompt)
	if prompt == "" {
		prompt = DefaultImagePrompt
	}
	description, err := e.Describer.DescribeImage(ctx, mimeType, data, prompt)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(payload.Title)
	if title == "" {
		title = filepath.Base(path)
	}
	return &Result{
		Title:    title,
		Text:     strings.TrimSpace(description),
		FilePath: path,
		Metadata: map[string]any{"prompt": prompt, "mime_type": mimeType},
	}, nil
}
