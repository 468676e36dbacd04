package graph

import "strings"

const answerSystemPrompt = `You are a study assistant. Answer the student's question using only the
knowledge-graph excerpts provided. Combine facts across excerpts when needed.
If the excerpts do not contain the answer, say that the material does not cover it.
Do not invent facts.`

func buildAnswerPrompt(context, question string) string {
	var b strings.Builder
	b.WriteString("Excerpts:\n\n")
	b.WriteString(context)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
