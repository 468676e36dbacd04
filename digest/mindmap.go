package digest

import (
	"regexp"
	"strings"
)

var singleQuotedLabel = regexp.MustCompile(`(\w+)\('([^']+)'\)`)

// cleanMindmap normalizes model output into Mermaid mindmap source: code
// fences are removed, the "mindmap" header is guaranteed and single-quoted
// labels are double-quoted.
func cleanMindmap(raw, topicName string) string {
	code := strings.TrimSpace(raw)
	if start := strings.Index(code, "```"); start >= 0 {
		body := code[start+3:]
		body = strings.TrimPrefix(body, "mermaid")
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		code = strings.TrimSpace(body)
	}
	if !strings.HasPrefix(code, "mindmap") {
		label := strings.ReplaceAll(topicName, `"`, "'")
		code = "mindmap\n  root(\"" + label + "\")\n" + code
	}
	return singleQuotedLabel.ReplaceAllString(code, `$1("$2")`)
}
