package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/studyforge/ai"
)

const conceptResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "core_concepts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "concept": {"type": "string"},
          "type": {"type": "string"},
          "importance": {"type": "integer", "minimum": 1, "maximum": 10}
        },
        "required": ["concept", "type", "importance"],
        "additionalProperties": false
      }
    }
  },
  "required": ["core_concepts"],
  "additionalProperties": false
}`

const conceptPromptTemplate = `You index study material. Extract the entities and concepts a student would
need to look up in order to understand the passage, and return them as JSON.

Output ONLY valid JSON which complies with the schema below. No preamble, no explanation, no code fences.
Start with { and end with }.

%s

Rules:
- Concept names are lowercase, 1-4 words, singular form. Keep proper names whole ("french revolution").
- Type must be exactly one of: %s.
- Importance is an integer from 1 (passing mention) to 10 (the passage is about it).
- Include only concepts stated in or clearly implied by the passage.
- Formulas and laws keep their conventional name ("ideal gas law"), not their symbols.
- If nothing qualifies, return {"core_concepts": []}.

Example:
Input: "Photosynthesis converts light energy into chemical energy in the chloroplasts of plant cells."
Output:
{
  "core_concepts": [
    {"concept":"photosynthesis","type":"process","importance":10},
    {"concept":"chloroplast","type":"organism","importance":7},
    {"concept":"chemical energy","type":"term","importance":6}
  ]
}

Example:
Input: "Paris is the capital of France."
Output:
{
  "core_concepts": [
    {"concept":"paris","type":"location","importance":9},
    {"concept":"france","type":"location","importance":8}
  ]
}`

// buildSystemPrompt creates the concept extraction prompt with types embedded.
func buildSystemPrompt() string {
	return fmt.Sprintf(conceptPromptTemplate,
		conceptResponseSchema,
		strings.Join(ai.ConceptTypes, ", "))
}
