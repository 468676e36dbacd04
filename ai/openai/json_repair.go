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

import "strings"

// repairJSON fixes the formatting slips small models make in JSON output:
// keys missing their opening quote (`, type":`) and trailing commas before
// a closing brace or bracket. Text inside string values is left alone.
func repairJSON(s string) string {
	src := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString := false
	for i := 0; i < len(src); i++ {
		ch := src[i]
		if inString {
			b.WriteRune(ch)
			switch ch {
			case '\\':
				if i+1 < len(src) {
					i++
					b.WriteRune(src[i])
				}
			case '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
			b.WriteRune(ch)
		case ',':
			if next := skipSpace(src, i+1); next < len(src) && (src[next] == '}' || src[next] == ']') {
				continue
			}
			b.WriteRune(ch)
			i = repairKey(src, i+1, &b) - 1
		case '{':
			b.WriteRune(ch)
			i = repairKey(src, i+1, &b) - 1
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// repairKey copies whitespace starting at pos and, when an unquoted key
// followed by `":` comes next, writes it with its opening quote restored.
// It returns the index of the first rune not yet consumed.
func repairKey(src []rune, pos int, b *strings.Builder) int {
	next := skipSpace(src, pos)
	b.WriteString(string(src[pos:next]))
	if next >= len(src) || !isLetter(src[next]) {
		return next
	}
	end := next
	for end < len(src) && (isLetter(src[end]) || src[end] == '_') {
		end++
	}
	if end+1 < len(src) && src[end] == '"' && src[end+1] == ':' {
		b.WriteRune('"')
		b.WriteString(string(src[next:end]))
		b.WriteRune('"')
		return end + 1
	}
	return next
}

func skipSpace(src []rune, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\n' || src[i] == '\t' || src[i] == '\r') {
		i++
	}
	return i
}
