package query

import "strings"

const contextSystemPrompt = `You are a study assistant. Answer the question using only the study materials provided.
If the materials do not contain enough information to answer, say that the materials do not cover it instead of guessing.
Do not use outside knowledge.`

func buildContextPrompt(topicName, materials, question string) string {
	var sb strings.Builder
	sb.WriteString("Study topic: ")
	sb.WriteString(topicName)
	sb.WriteString("\n\nStudy materials:\n\n")
	sb.WriteString(materials)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}
