package jelrec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Revision_Version(t *testing.T) {
	testCases := []struct {
		name   string
		rev    Revision
		expect int
	}{
		{
			name:   "first revision",
			rev:    Revision("1-abc123"),
			expect: 1,
		},
		{
			name:   "large version",
			rev:    Revision("412-d41d8cd98f00b204e9800998ecf8427e"),
			expect: 412,
		},
		{
			name:   "no separator",
			rev:    Revision("garbage"),
			expect: 0,
		},
		{
			name:   "non-numeric prefix",
			rev:    Revision("one-abc"),
			expect: 0,
		},
		{
			name:   "empty",
			rev:    Revision(""),
			expect: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			assert.Equal(tc.expect, tc.rev.Version())
		})
	}
}

func Test_firstRevision(t *testing.T) {
	assert := assert.New(t)

	rec := map[string]any{"id": int64(1), "name": "deka"}

	rev := firstRevision(rec, "_rev", "id")

	assert.Equal(1, rev.Version())
	assert.Len(rev.Hash(), 32)

	// identical content hashes identically
	again := firstRevision(map[string]any{"name": "deka", "id": int64(1)}, "_rev", "id")
	assert.Equal(rev, again)

	// different content does not
	other := firstRevision(map[string]any{"id": int64(1), "name": "nepeta"}, "_rev", "id")
	assert.NotEqual(rev.Hash(), other.Hash())
}

func Test_firstRevision_ExcludesManagedFields(t *testing.T) {
	assert := assert.New(t)

	bare := map[string]any{"name": "deka"}
	carrying := map[string]any{"id": int64(77), "name": "deka", "_rev": "1-whatever"}

	// neither the revision field nor the primary key contributes to the
	// hash; key generation may happen after the first revision is computed
	assert.Equal(firstRevision(bare, "_rev", "id"), firstRevision(carrying, "_rev", "id"))
}

func Test_nextRevision(t *testing.T) {
	assert := assert.New(t)

	rec := map[string]any{"id": int64(1), "name": "deka"}
	cur := firstRevision(rec, "_rev", "id")

	// unchanged content gives back the current revision
	next, changed := nextRevision(cur, rec, "_rev", "id")
	assert.False(changed)
	assert.Equal(cur, next)

	// changed content bumps the version by exactly one
	rec["name"] = "nepeta"
	next, changed = nextRevision(cur, rec, "_rev", "id")
	assert.True(changed)
	assert.Equal(2, next.Version())
	assert.NotEqual(cur.Hash(), next.Hash())

	// and again
	rec["name"] = "terezi"
	third, changed := nextRevision(next, rec, "_rev", "id")
	assert.True(changed)
	assert.Equal(3, third.Version())
}
