package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	all := []string{
		"abcdef1234567890",
		"abcdef1234567890ffff",
		"11112222333344445555",
	}

	t.Run("exact match wins even if it is also a prefix of another id", func(t *testing.T) {
		id, ok, _ := Resolve("abcdef1234567890", all)
		assert.True(t, ok)
		assert.Equal(t, "abcdef1234567890", id)
	})

	t.Run("unique prefix resolves", func(t *testing.T) {
		id, ok, _ := Resolve("11112222", all)
		assert.True(t, ok)
		assert.Equal(t, "11112222333344445555", id)
	})

	t.Run("ambiguous prefix fails", func(t *testing.T) {
		_, ok, why := Resolve("abcdef12", all)
		assert.False(t, ok)
		assert.Equal(t, ResolveAmbiguous, why)
	})

	t.Run("too-short prefix is rejected even if unique", func(t *testing.T) {
		_, ok, why := Resolve("1111", all)
		assert.False(t, ok)
		assert.Equal(t, ResolveTooShort, why)
	})

	t.Run("not found", func(t *testing.T) {
		_, ok, why := Resolve("ffffffff", all)
		assert.False(t, ok)
		assert.Equal(t, ResolveNotFound, why)
	})
}

func TestNewProducesHexWithoutDashes(t *testing.T) {
	id := New()
	assert.NotContains(t, id, "-")
	assert.Len(t, id, 32)
}
