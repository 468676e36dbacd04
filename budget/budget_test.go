package budget

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cost int

func (c cost) Tokens() int { return int(c) }

// wordTokenizer counts whitespace-separated words.
var wordTokenizer = TokenizerFunc(func(text string) int {
	return len(strings.Fields(text))
})

func TestNew_RequiresTokenizer(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrTokenizerRequired)
}

func TestBudgeter_Count(t *testing.T) {
	b, err := New(wordTokenizer)
	require.NoError(t, err)
	assert.Equal(t, 6, b.Count("Paris is the capital of France."))
	assert.Equal(t, 0, b.Count(""))
}

func TestSelectWithinBudget(t *testing.T) {
	tests := []struct {
		name      string
		items     []cost
		budget    int
		wantLen   int
		wantTotal int
	}{
		{name: "empty input", items: nil, budget: 10, wantLen: 0, wantTotal: 0},
		{name: "all fit", items: []cost{2, 3, 4}, budget: 9, wantLen: 3, wantTotal: 9},
		{name: "stops at first overflow", items: []cost{2, 3, 10, 1}, budget: 9, wantLen: 2, wantTotal: 5},
		{name: "does not skip ahead", items: []cost{5, 6, 1, 1}, budget: 8, wantLen: 1, wantTotal: 5},
		{name: "first item too large", items: []cost{20, 1}, budget: 10, wantLen: 0, wantTotal: 0},
		{name: "zero budget keeps zero-cost prefix", items: []cost{0, 0, 1}, budget: 0, wantLen: 2, wantTotal: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total := SelectWithinBudget(tt.items, tt.budget)
			assert.Len(t, got, tt.wantLen)
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}

func TestSelectWithinBudget_PrefixProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 500; run++ {
		items := make([]cost, rng.Intn(20))
		for i := range items {
			items[i] = cost(rng.Intn(50))
		}
		budget := rng.Intn(300)

		selected, total := SelectWithinBudget(items, budget)

		sum := 0
		for i, item := range selected {
			require.Equal(t, items[i], item, "selection must be a prefix of the input")
			sum += int(item)
		}
		require.Equal(t, sum, total)
		require.LessOrEqual(t, total, budget)
		if len(selected) < len(items) {
			require.Greater(t, total+int(items[len(selected)]), budget,
				"selection must stop only when the next item would exceed the budget")
		}
	}
}

func TestSections(t *testing.T) {
	b, err := New(wordTokenizer)
	require.NoError(t, err)

	sections := b.Sections(
		[]string{"france", "japan"},
		[]string{"Paris is the capital of France.", "Tokyo is the capital of Japan."},
	)
	require.Len(t, sections, 2)
	assert.Equal(t, "--- france ---\nParis is the capital of France.", sections[0].Render())
	assert.Equal(t, b.Count(sections[0].Render()), sections[0].Tokens())

	joined := Join(sections)
	assert.Equal(t, "--- france ---\nParis is the capital of France.\n\n--- japan ---\nTokyo is the capital of Japan.", joined)
}

func TestApproxTokenizer(t *testing.T) {
	var tk ApproxTokenizer
	assert.Equal(t, 0, tk.CountTokens(""))
	assert.Equal(t, 1, tk.CountTokens("abc"))
	assert.Equal(t, 2, tk.CountTokens("abcde"))
}
