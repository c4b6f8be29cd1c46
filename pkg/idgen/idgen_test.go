package idgen

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomSlug(t *testing.T) {
	g := NewRoomSlugGenerator()

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id, err := g.Generate()
		require.NoError(t, err)
		assert.Regexp(t, `^[a-z0-9]{10}$`, id)
		ok, reason := g.Validate(id)
		assert.True(t, ok, reason)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 200)

	ok, _ := g.Validate("ABCDEFGHIJ")
	assert.False(t, ok)
}

func TestNanoIDRejectsBadConfig(t *testing.T) {
	_, err := NewNanoIDGenerator(0, SlugAlphabet)
	assert.Error(t, err)
	_, err = NewNanoIDGenerator(10, "a")
	assert.Error(t, err)
}

func TestULIDMonotonic(t *testing.T) {
	g := NewULIDGenerator()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ids := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		id, err := g.GenerateAt(at)
		require.NoError(t, err)
		ok, reason := g.Validate(id)
		require.True(t, ok, reason)
		ids = append(ids, id)
	}
	assert.True(t, sort.StringsAreSorted(ids))

	ok, _ := g.Validate("not-a-ulid")
	assert.False(t, ok)
}
