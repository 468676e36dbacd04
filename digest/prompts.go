package digest

import (
	"fmt"
	"strings"
)

const summarySystemPrompt = "You are an expert academic content summarizer who creates comprehensive, well-structured summaries for study purposes."

const summaryInstructions = `Create a comprehensive summary of the following study materials for the topic %q.

INSTRUCTIONS:
1. Provide a structured, well-organized summary that captures the key concepts, themes and important details
2. Organize the summary with clear headings and subheadings
3. Include the main arguments, findings and conclusions from the materials
4. Highlight important relationships, patterns or connections between different sources
5. Make the summary suitable for study and review
6. Use bullet points, numbered lists and formatting to aid readability
7. If sources disagree, note the conflicting viewpoints clearly
8. Aim for a thorough but concise summary, roughly 1000 to 2000 words depending on content volume`

const mindmapSystemPrompt = `You are an expert Mermaid mindmap generator. Follow these rules strictly:
1. Return ONLY pure Mermaid mindmap source code
2. Start with 'mindmap' on the first line
3. ALL text labels MUST use double quotes (")
4. Use 2-space indentation
5. NO markdown code blocks, NO explanations, NO additional text`

const mindmapInstructions = `Generate Mermaid mindmap source code for the study materials about %q.

SYNTAX:
- Root node: root("Topic Name")
- Child nodes: branch("Label Text"), indented 2 spaces per level
- Wrap every label in double quotes
- Keep labels under 60 characters

CONTENT:
1. Main concepts as primary branches
2. Subtopics, theories, processes and relationships below them
3. Important facts, figures and dates as leaves
4. Group related concepts logically

EXAMPLE:
mindmap
  root("Study Topic")
    c1("Main Concept 1")
      d1("Key Point A")
    c2("Main Concept 2")`

func buildPrompt(instructions, topicName, description, materials, closing string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, instructions, topicName)
	sb.WriteString("\n\nSTUDY TOPIC: ")
	sb.WriteString(topicName)
	if description != "" {
		sb.WriteString("\nTOPIC DESCRIPTION: ")
		sb.WriteString(description)
	}
	sb.WriteString("\n\nMATERIALS:\n\n")
	sb.WriteString(materials)
	sb.WriteString("\n\n")
	sb.WriteString(closing)
	return sb.String()
}
