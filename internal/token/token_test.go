package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrunner/dagrunner-go/internal/token"
)

func TestSingletonIdentity(t *testing.T) {
	assert.NotEqual(t, token.SKIP, token.IGNORE)
	assert.True(t, token.SKIP == token.SKIP)
}

func TestRoundTrip(t *testing.T) {
	for _, want := range []*token.Token{token.SKIP, token.IGNORE} {
		text, err := want.MarshalText()
		require.NoError(t, err)

		got, ok := token.Parse(string(text))
		require.True(t, ok)
		assert.Same(t, want, got)
	}
}

func TestParseUnknown(t *testing.T) {
	_, ok := token.Parse("NOT_A_TOKEN")
	assert.False(t, ok)
}

func TestContainsSkipAndFilterIgnore(t *testing.T) {
	args := []any{1, token.IGNORE, "x", token.SKIP}
	assert.True(t, token.ContainsSkip(args))

	filtered := token.FilterIgnore(args)
	assert.Equal(t, []any{1, "x", token.SKIP}, filtered)
}
