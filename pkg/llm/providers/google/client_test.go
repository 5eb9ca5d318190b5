package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docassist/pkg/llm"
)

func TestConvertMessages(t *testing.T) {
	contents, system, err := convertMessages([]llm.CompletionMessage{
		llm.NewSystemMessage("one"),
		llm.NewSystemMessage("two"),
		llm.NewUserMessage("hi"),
		llm.NewAssistantMessage("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "one\n\ntwo", system)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", string(contents[0].Role))
	assert.Equal(t, "model", string(contents[1].Role))

	_, _, err = convertMessages([]llm.CompletionMessage{llm.NewSystemMessage("only")})
	assert.Error(t, err)
}

func TestModelName(t *testing.T) {
	c := NewGeminiClient(llm.LLMConfig{APIKey: "k", ModelName: "gemini-2.5-flash"})
	assert.Equal(t, "gemini-2.5-flash", c.GetModelName())
}
