package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/studyforge/ai"
	"github.com/poiesic/studyforge/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const defaultImagePrompt = `Describe this image for a student's study notes. Transcribe any visible text,
explain diagrams, charts and formulas, and name the subject matter it illustrates.`

// ImageDescriber implements ai.ImageDescriber with a vision-capable chat model.
type ImageDescriber struct {
	client llms.Model
	logger *slog.Logger
}

func newImageDescriber(config *ai.Config) (*ImageDescriber, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.CompletionHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.VisionModel),
	)
	if err != nil {
		return nil, err
	}
	return &ImageDescriber{
		client: client,
		logger: slog.Default().With("component", "openai-vision"),
	}, nil
}

// NewImageDescriber creates an image describer using the provided configuration.
func NewImageDescriber(config *ai.Config) (ai.ImageDescriber, error) {
	return newImageDescriber(config)
}

// DescribeImage asks the model to interpret image. An empty prompt uses a
// general study-notes instruction.
func (d *ImageDescriber) DescribeImage(ctx context.Context, mimeType string, image []byte, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		prompt = defaultImagePrompt
	}
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(mimeType, image),
				llms.TextPart(prompt),
			},
		},
	}

	d.logger.Debug("describing image", "mime", mimeType, "bytes", len(image))
	response, err := d.client.GenerateContent(ctx, content, llms.WithTemperature(0.2))
	if err != nil {
		d.logger.Error("image description failed", "err", err)
		return "", classifyError("vision", err)
	}
	if len(response.Choices) == 0 {
		return "", core.NewExternalServiceError("vision", core.ReasonUpstream, true, errEmptyResponse)
	}
	return strings.TrimSpace(response.Choices[0].Content), nil
}
