package ids

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormat(t *testing.T) {
	id := New(PrefixBlock)
	require.True(t, strings.HasPrefix(id, "blk_"))
	body := strings.TrimPrefix(id, "blk_")
	assert.Len(t, body, Length)
	for _, r := range body {
		assert.Contains(t, alphabet, string(r))
	}
}

func TestNewUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New(PrefixCollection)
		require.False(t, seen[id], "duplicate ID %s", id)
		seen[id] = true
	}
}

func TestDerivedDeterministic(t *testing.T) {
	a := Derived("contains", "A:B")
	b := Derived("contains", "A:B")
	assert.Equal(t, a, b)

	other := Derived("parent", "A:B")
	assert.NotEqual(t, a, other)

	assert.True(t, strings.HasPrefix(a, "contains_"))
	assert.Len(t, strings.TrimPrefix(a, "contains_"), Length)
}

func TestDerivedDistinctInputs(t *testing.T) {
	assert.NotEqual(t, Derived("contains", "A:B"), Derived("contains", "A:C"))
	assert.NotEqual(t, Derived("contains", "A:B"), Derived("contains", "B:A"))
}
