package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimator_CountTokens(t *testing.T) {
	e := NewEstimatorTokenizer()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"short ascii rounds up to one", "hi", 1},
		{"ascii", "how many markers do we have", 6},
		{"cjk", "库存查询", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.CountTokens(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEstimator_CountMessages(t *testing.T) {
	e := NewEstimatorTokenizer()
	got, err := e.CountMessages([]Message{
		{Role: "user", Content: "abcdefgh"},
		{Role: "assistant", Content: "abcd"},
	})
	require.NoError(t, err)
	// (2+4) + (1+4) + 3
	assert.Equal(t, 14, got)
}

func TestNewTiktokenTokenizer_Encoding(t *testing.T) {
	assert.Equal(t, "o200k_base", NewTiktokenTokenizer("gpt-4o-mini").encoding)
	assert.Equal(t, "cl100k_base", NewTiktokenTokenizer("gpt-4-turbo").encoding)
	assert.Equal(t, "cl100k_base", NewTiktokenTokenizer("tinyllama").encoding)
}

func TestForModel_AlwaysCounts(t *testing.T) {
	// Works online (tiktoken) and offline (estimator fallback) alike.
	tok := ForModel("gpt-4o-mini")
	n, err := tok.CountTokens("We're running low on markers")
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.NotEmpty(t, tok.Name())
}
