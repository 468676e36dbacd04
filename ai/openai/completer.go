// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/studyforge/ai"
	"github.com/poiesic/studyforge/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// Completer implements ai.Completer with an OpenAI-compatible chat model.
type Completer struct {
	client    llms.Model
	limiter   *rate.Limiter
	maxTokens int
	logger    *slog.Logger
}

func newCompleter(config *ai.Config) (*Completer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.CompletionHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.CompletionModel),
	)
	if err != nil {
		return nil, err
	}
	return newCompleterWithModel(client, config.RequestsPerSecond, config.MaxCompletionTokens), nil
}

// newCompleterWithModel wires an existing model. rps <= 0 disables throttling.
func newCompleterWithModel(model llms.Model, rps float64, maxTokens int) *Completer {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Completer{
		client:    model,
		limiter:   rate.NewLimiter(limit, 1),
		maxTokens: maxTokens,
		logger:    slog.Default().With("component", "openai-completer"),
	}
}

// NewCompleter creates a completer using the provided configuration.
func NewCompleter(config *ai.Config) (ai.Completer, error) {
	return newCompleter(config)
}

// Complete sends system and prompt to the model and returns its answer.
func (c *Completer) Complete(ctx context.Context, system, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", classifyError("completion", err)
	}

	content := make([]llms.MessageContent, 0, 2)
	if system != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	opts := []llms.CallOption{llms.WithTemperature(0.1)}
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}

	c.logger.Debug("requesting completion", "prompt_length", len(prompt))
	response, err := c.client.GenerateContent(ctx, content, opts...)
	if err != nil {
		c.logger.Error("completion failed", "err", err)
		return "", classifyError("completion", err)
	}
	if len(response.Choices) == 0 {
		return "", core.NewExternalServiceError("completion", core.ReasonUpstream, true, errEmptyResponse)
	}
	return strings.TrimSpace(response.Choices[0].Content), nil
}
