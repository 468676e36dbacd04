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
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/studyforge/ai"
	"github.com/poiesic/studyforge/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	// parseAttempts bounds how often a malformed model response is retried.
	parseAttempts = 3

	// maxConceptsPerChunk caps the entities kept for one chunk of material.
	maxConceptsPerChunk = 24
)

// ConceptExtractor implements ai.ConceptExtractor using OpenAI-compatible chat APIs.
// It names the entities a chunk of study material is about.
type ConceptExtractor struct {
	client        llms.Model
	minImportance int
	logger        *slog.Logger
}

// concept is one entry of the model's JSON answer.
type concept struct {
	Concept    string `json:"concept"`
	Type       string `json:"type"`
	Importance int    `json:"importance"`
}

type analysis struct {
	CoreConcepts []concept `json:"core_concepts"`
}

func newConceptExtractor(config *ai.Config) (*ConceptExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ClassifierHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ClassifierModel),
	)
	if err != nil {
		return nil, err
	}
	return newConceptExtractorWithModel(client, config.MinImportance), nil
}

// newConceptExtractorWithModel wires an existing model, used by tests.
func newConceptExtractorWithModel(model llms.Model, minImportance int) *ConceptExtractor {
	return &ConceptExtractor{
		client:        model,
		minImportance: minImportance,
		logger:        slog.Default().With("component", "openai-extractor"),
	}
}

// ExtractConcepts asks the classifier model for the entities in text and
// returns those at or above the minimum importance, most important first.
// Names are lowercased and duplicates collapse onto their highest rating.
func (e *ConceptExtractor) ExtractConcepts(ctx context.Context, text string) ([]ai.ExtractedConcept, error) {
	text = scrubString(text)
	if text == "" {
		return []ai.ExtractedConcept{}, nil
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, buildSystemPrompt()),
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	}

	var (
		result  *analysis
		lastErr error
	)
	for attempt := 1; attempt <= parseAttempts; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt, "err", err)
			return nil, classifyError("concept extraction", err)
		}
		if len(response.Choices) == 0 {
			e.logger.Debug("no choices returned from model")
			return []ai.ExtractedConcept{}, nil
		}

		result, lastErr = parseAnalysis(response.Choices[0].Content)
		if lastErr == nil {
			break
		}
		e.logger.Warn("error parsing extraction response", "attempt", attempt, "err", lastErr)
	}
	if lastErr != nil {
		return nil, core.NewExternalServiceError("concept extraction", core.ReasonUpstream, false, lastErr)
	}

	extracted := e.filter(result.CoreConcepts)
	e.logger.Debug("extracted concepts", "total", len(result.CoreConcepts), "kept", len(extracted))
	return extracted, nil
}

func parseAnalysis(raw string) (*analysis, error) {
	cleaned := repairJSON(stripCodeFence(raw))
	if cleaned == "" {
		return nil, errors.New("empty response")
	}
	var result analysis
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e *ConceptExtractor) filter(concepts []concept) []ai.ExtractedConcept {
	byName := make(map[string]int, len(concepts))
	extracted := make([]ai.ExtractedConcept, 0, len(concepts))
	for _, c := range concepts {
		name := strings.ToLower(strings.TrimSpace(c.Concept))
		if name == "" || c.Importance < e.minImportance {
			continue
		}
		if i, ok := byName[name]; ok {
			if c.Importance > extracted[i].Importance {
				extracted[i].Importance = c.Importance
			}
			continue
		}
		byName[name] = len(extracted)
		extracted = append(extracted, ai.ExtractedConcept{
			Name:       name,
			Type:       strings.ReplaceAll(strings.TrimSpace(c.Type), " ", "_"),
			Importance: c.Importance,
		})
	}

	slices.SortStableFunc(extracted, func(a, b ai.ExtractedConcept) int {
		return b.Importance - a.Importance
	})
	if len(extracted) > maxConceptsPerChunk {
		extracted = extracted[:maxConceptsPerChunk]
	}
	return extracted
}
