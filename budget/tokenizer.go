package budget

import (
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used when a model name has no known encoding.
const DefaultEncoding = "cl100k_base"

// Tokenizer counts model tokens in text.
// Implementations must be thread-safe for concurrent use.
type Tokenizer interface {
	CountTokens(text string) int
}

// TokenizerFunc adapts a function to the Tokenizer interface.
type TokenizerFunc func(text string) int

// CountTokens calls f(text).
func (f TokenizerFunc) CountTokens(text string) int {
	return f(text)
}

// TiktokenTokenizer counts tokens with a BPE encoding.
type TiktokenTokenizer struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads the encoding for model, falling back to
// DefaultEncoding for unknown models.
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(DefaultEncoding)
		if err != nil {
			return nil, fmt.Errorf("loading %s encoding: %w", DefaultEncoding, err)
		}
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

// CountTokens returns the number of BPE tokens in text.
func (t *TiktokenTokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.EncodeOrdinary(text))
}

// ApproxTokenizer estimates four characters per token. It needs no
// encoding files and is used when none can be loaded.
type ApproxTokenizer struct{}

// CountTokens returns ceil(runes/4).
func (ApproxTokenizer) CountTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// NewTokenizer returns a tiktoken tokenizer for model, or an ApproxTokenizer
// when the encoding cannot be loaded (for example without network access on
// first use).
func NewTokenizer(model string, logger *slog.Logger) Tokenizer {
	if logger == nil {
		logger = slog.Default()
	}
	tk, err := NewTiktokenTokenizer(model)
	if err != nil {
		logger.Warn("falling back to approximate token counts", "model", model, "err", err)
		return ApproxTokenizer{}
	}
	return tk
}
