// Package tokens counts prompt tokens with tiktoken encodings.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens for one model family.
type Counter struct {
	codec tokenizer.Codec
}

var (
	defaultOnce    sync.Once
	defaultCounter *Counter
)

// NewCounter picks an encoding for model. The 4.1/4o/o-series use o200k;
// everything else, including non-OpenAI models, is approximated with cl100k.
func NewCounter(model string) (*Counter, error) {
	encoding := tokenizer.Cl100kBase
	lower := strings.ToLower(model)
	if strings.HasPrefix(lower, "gpt-4.1") || strings.HasPrefix(lower, "gpt-4o") ||
		strings.HasPrefix(lower, "gpt-5") || strings.HasPrefix(lower, "o3") || strings.HasPrefix(lower, "o4") {
		encoding = tokenizer.O200kBase
	}
	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}
	return &Counter{codec: codec}, nil
}

// Count returns the token count of text, falling back to len/4.
func (c *Counter) Count(text string) int {
	if c == nil || c.codec == nil {
		return len(text) / 4
	}
	n, err := c.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return n
}

// Fits reports whether text stays within limit tokens.
func (c *Counter) Fits(text string, limit int) bool {
	return limit <= 0 || c.Count(text) <= limit
}

// Count uses a shared cl100k counter.
func Count(text string) int {
	defaultOnce.Do(func() {
		defaultCounter, _ = NewCounter("gpt-4")
	})
	return defaultCounter.Count(text)
}
