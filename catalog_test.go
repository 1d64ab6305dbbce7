package migrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog_SortsByVersion(t *testing.T) {
	c, err := NewCatalog(
		MustMigration(3, "c"),
		MustMigration(1, "a"),
		MustMigration(2, "b"),
	)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, c.Versions())
	assert.Equal(t, 3, c.Len())

	all := c.All()
	assert.Equal(t, "a", all[0].Name())
	all[0] = MustMigration(9, "mutated")
	assert.Equal(t, "a", c.All()[0].Name())
}

func TestNewCatalog_Rejects(t *testing.T) {
	_, err := NewCatalog(MustMigration(1, "a"), MustMigration(1, "b"))
	assert.ErrorIs(t, err, ErrDuplicateVersion)

	_, err = NewCatalog(MustMigration(1, "a"), Migration{})
	assert.ErrorIs(t, err, ErrInvalidMigration)

	assert.Panics(t, func() { MustCatalog(MustMigration(2, "a"), MustMigration(2, "a")) })
}

func TestCatalog_PendingAfter(t *testing.T) {
	c := MustCatalog(
		MustMigration(1, "a"),
		MustMigration(2, "b"),
		MustMigration(5, "e"),
		MustMigration(9, "i"),
	)

	versions := func(migs []Migration) []int {
		out := []int{}
		for _, m := range migs {
			out = append(out, m.Version())
		}
		return out
	}

	assert.Equal(t, []int{1, 2, 5, 9}, versions(c.PendingAfter(0)))
	assert.Equal(t, []int{5, 9}, versions(c.PendingAfter(2)))
	assert.Equal(t, []int{5, 9}, versions(c.PendingAfter(3)))
	assert.Equal(t, []int{9}, versions(c.PendingAfter(5)))
	assert.Empty(t, c.PendingAfter(9))
	assert.Empty(t, c.PendingAfter(100))

	empty := MustCatalog()
	assert.Empty(t, empty.PendingAfter(0))
}

func TestCatalog_Get(t *testing.T) {
	c := MustCatalog(MustMigration(4, "d"))

	mig, ok := c.Get(4)
	assert.True(t, ok)
	assert.Equal(t, "d", mig.Name())

	_, ok = c.Get(3)
	assert.False(t, ok)
}
