package budget

import (
	"errors"
	"strings"
)

// ErrTokenizerRequired is returned when a Budgeter is built without a tokenizer.
var ErrTokenizerRequired = errors.New("tokenizer required")

// Weighted is an item with a token cost.
type Weighted interface {
	Tokens() int
}

// Budgeter counts tokens and selects content within a budget. It is stateless
// apart from its tokenizer.
type Budgeter struct {
	tokenizer Tokenizer
}

// New creates a Budgeter over tokenizer.
func New(tokenizer Tokenizer) (*Budgeter, error) {
	if tokenizer == nil {
		return nil, ErrTokenizerRequired
	}
	return &Budgeter{tokenizer: tokenizer}, nil
}

// Count returns the token count of text.
func (b *Budgeter) Count(text string) int {
	return b.tokenizer.CountTokens(text)
}

// Tokenizer returns the underlying tokenizer.
func (b *Budgeter) Tokenizer() Tokenizer {
	return b.tokenizer
}

// SelectWithinBudget returns the longest prefix of items whose total token
// cost is at most budget, together with that total.
func SelectWithinBudget[T Weighted](items []T, budget int) ([]T, int) {
	total := 0
	for i, item := range items {
		cost := item.Tokens()
		if total+cost > budget {
			return items[:i], total
		}
		total += cost
	}
	return items, total
}

// Section is a piece of text with a precomputed token count.
type Section struct {
	Title string
	Text  string
	Count int
}

// Tokens implements Weighted.
func (s Section) Tokens() int {
	return s.Count
}

// Sections renders titled texts as "--- title ---" blocks and counts each one.
func (b *Budgeter) Sections(titles, texts []string) []Section {
	sections := make([]Section, len(texts))
	for i, text := range texts {
		title := ""
		if i < len(titles) {
			title = titles[i]
		}
		sections[i] = Section{Title: title, Text: text}
		sections[i].Count = b.Count(sections[i].Render())
	}
	return sections
}

// Render formats the section the way it is placed into prompts.
func (s Section) Render() string {
	return "--- " + s.Title + " ---\n" + s.Text
}

// Join renders sections separated by blank lines.
func Join(sections []Section) string {
	var sb strings.Builder
	for i, s := range sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(s.Render())
	}
	return sb.String()
}
