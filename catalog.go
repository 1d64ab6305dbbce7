package migrator

import (
	"fmt"
	"slices"
)

// Catalog is the complete, immutable set of known migrations, sorted by
// version ascending.
type Catalog struct {
	migrations []Migration
	byVersion  map[int]int
}

// NewCatalog builds a catalog from the given migrations. Order of the input
// does not matter.
//
// Parameters:
//   - migrations: The migrations to include.
//
// Returns:
//   - *Catalog: The catalog.
//   - error: ErrInvalidMigration for a zero-value migration, or
//     ErrDuplicateVersion if two migrations share a version.
func NewCatalog(migrations ...Migration) (*Catalog, error) {
	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(a, b Migration) int {
		return a.version - b.version
	})

	byVersion := make(map[int]int, len(sorted))
	for i, mig := range sorted {
		if mig.version <= 0 || mig.name == "" {
			return nil, fmt.Errorf(
				"%w: catalog entry %d was not built with NewMigration",
				ErrInvalidMigration, i,
			)
		}
		if _, ok := byVersion[mig.version]; ok {
			return nil, fmt.Errorf("%w: %03d", ErrDuplicateVersion, mig.version)
		}
		byVersion[mig.version] = i
	}

	return &Catalog{migrations: sorted, byVersion: byVersion}, nil
}

// MustCatalog is like NewCatalog but panics on error.
func MustCatalog(migrations ...Migration) *Catalog {
	c, err := NewCatalog(migrations...)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns every migration, ascending by version. The returned slice is a
// copy.
func (c *Catalog) All() []Migration {
	return slices.Clone(c.migrations)
}

// PendingAfter returns the migrations with a version greater than
// currentVersion, ascending.
func (c *Catalog) PendingAfter(currentVersion int) []Migration {
	idx, _ := slices.BinarySearchFunc(
		c.migrations, currentVersion+1, func(m Migration, v int) int {
			return m.version - v
		},
	)
	return slices.Clone(c.migrations[idx:])
}

// Get returns the migration with the given version.
func (c *Catalog) Get(version int) (Migration, bool) {
	i, ok := c.byVersion[version]
	if !ok {
		return Migration{}, false
	}
	return c.migrations[i], true
}

// Versions returns all known versions, ascending.
func (c *Catalog) Versions() []int {
	versions := make([]int, len(c.migrations))
	for i, mig := range c.migrations {
		versions[i] = mig.version
	}
	return versions
}

// Len returns the number of migrations in the catalog.
func (c *Catalog) Len() int {
	return len(c.migrations)
}
