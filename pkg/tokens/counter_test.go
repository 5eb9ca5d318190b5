package tokens

import (
	"strings"
	"testing"
)

func TestCount(t *testing.T) {
	c, err := NewCounter("gpt-4.1-mini")
	if err != nil {
		t.Fatalf("Failed to create counter: %v", err)
	}

	if got := c.Count(""); got != 0 {
		t.Errorf("Expected 0 tokens for empty text, got %d", got)
	}
	short := c.Count("hello world")
	if short <= 0 || short > 5 {
		t.Errorf("Unexpected token count for 'hello world': %d", short)
	}
	long := c.Count(strings.Repeat("hello world ", 100))
	if long <= short {
		t.Errorf("Expected longer text to have more tokens: %d <= %d", long, short)
	}
}

func TestFits(t *testing.T) {
	c, err := NewCounter("claude-sonnet-4-5")
	if err != nil {
		t.Fatalf("Failed to create counter: %v", err)
	}
	if !c.Fits("short", 100) {
		t.Error("Expected short text to fit")
	}
	if c.Fits(strings.Repeat("word ", 500), 10) {
		t.Error("Expected long text not to fit in 10 tokens")
	}
	if !c.Fits(strings.Repeat("word ", 500), 0) {
		t.Error("Expected zero limit to mean unlimited")
	}
}

func TestNilCounterFallsBack(t *testing.T) {
	var c *Counter
	if got := c.Count("12345678"); got != 2 {
		t.Errorf("Expected len/4 fallback, got %d", got)
	}
	if Count("hello") <= 0 {
		t.Error("Expected package Count to return tokens")
	}
}
