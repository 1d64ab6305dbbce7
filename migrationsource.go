package migrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ResourceLoader supplies the SQL text of a migration that does not carry
// inline SQL.
type ResourceLoader interface {
	// LoadSQL returns the SQL for mig in the given direction. It returns an
	// error matching ErrResourceNotFound when no such resource exists.
	LoadSQL(ctx context.Context, mig Migration, direction Direction) (string, error)
}

// ResourceName returns the conventional resource name of a migration, e.g.
// "001_create_ledger.up.sql".
func ResourceName(mig Migration, direction Direction) string {
	return fmt.Sprintf("%s.%s.sql", mig, direction)
}

// SourceLoader loads migration SQL from a golang-migrate source driver. Files
// follow the "<version>_<name>.<up|down>.sql" convention and the name part
// must match the migration name.
type SourceLoader struct {
	driver source.Driver
}

// NewSourceLoader returns a loader reading from the given source driver.
//
// Parameters:
//   - driver: An opened golang-migrate source driver.
//
// Returns:
//   - *SourceLoader: A new SourceLoader.
func NewSourceLoader(driver source.Driver) *SourceLoader {
	return &SourceLoader{driver: driver}
}

// NewFSLoader returns a loader reading the migrations found in dir of fsys.
// Use it with an embed.FS or os.DirFS.
//
// Parameters:
//   - fsys: The file system holding the migration files.
//   - dir: The directory within fsys.
//
// Returns:
//   - *SourceLoader: A new SourceLoader.
//   - error: An error if the directory cannot be read or holds conflicting
//     files.
func NewFSLoader(fsys fs.FS, dir string) (*SourceLoader, error) {
	driver, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("open migration source %q: %w", dir, err)
	}
	return NewSourceLoader(driver), nil
}

// NewDirLoader returns a loader reading migrations from a directory on disk.
func NewDirLoader(dir string) (*SourceLoader, error) {
	return NewFSLoader(os.DirFS(dir), ".")
}

// LoadSQL implements ResourceLoader.
func (l *SourceLoader) LoadSQL(
	ctx context.Context, mig Migration, direction Direction,
) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r, identifier, err := l.read(uint(mig.Version()), direction)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf(
				"%w: %s", ErrResourceNotFound, ResourceName(mig, direction),
			)
		}
		return "", fmt.Errorf("read %s: %w", ResourceName(mig, direction), err)
	}
	defer r.Close()

	if identifier != mig.Name() {
		return "", fmt.Errorf(
			"%w: %s (version %03d is named %q in the source)",
			ErrResourceNotFound, ResourceName(mig, direction),
			mig.Version(), identifier,
		)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", ResourceName(mig, direction), err)
	}
	return string(body), nil
}

// Close closes the underlying source driver.
func (l *SourceLoader) Close() error {
	return l.driver.Close()
}

func (l *SourceLoader) read(
	version uint, direction Direction,
) (io.ReadCloser, string, error) {
	if !direction.Valid() {
		return nil, "", fmt.Errorf("%w: direction %q", ErrInvalidOptions, direction)
	}
	if direction == DirectionDown {
		return l.driver.ReadDown(version)
	}
	return l.driver.ReadUp(version)
}

// CatalogFromSource builds a catalog of resource backed migrations from every
// version found in the source driver.
//
// Parameters:
//   - driver: An opened golang-migrate source driver.
//
// Returns:
//   - *Catalog: A catalog of the discovered migrations.
//   - error: An error if the source cannot be walked or holds invalid names.
func CatalogFromSource(driver source.Driver) (*Catalog, error) {
	var migrations []Migration

	version, err := driver.First()
	for err == nil {
		identifier, idErr := sourceIdentifier(driver, version)
		if idErr != nil {
			return nil, idErr
		}
		mig, migErr := NewMigration(int(version), identifier)
		if migErr != nil {
			return nil, migErr
		}
		migrations = append(migrations, mig)

		version, err = driver.Next(version)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("walk migration source: %w", err)
	}

	return NewCatalog(migrations...)
}

// CatalogFromFS is CatalogFromSource over dir of fsys.
func CatalogFromFS(fsys fs.FS, dir string) (*Catalog, error) {
	driver, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("open migration source %q: %w", dir, err)
	}
	defer driver.Close()
	return CatalogFromSource(driver)
}

// sourceIdentifier returns the name of a version, taken from its up file or,
// failing that, its down file.
func sourceIdentifier(driver source.Driver, version uint) (string, error) {
	r, identifier, err := driver.ReadUp(version)
	if errors.Is(err, fs.ErrNotExist) {
		r, identifier, err = driver.ReadDown(version)
	}
	if err != nil {
		return "", fmt.Errorf("read migration %03d: %w", version, err)
	}
	_ = r.Close()
	return identifier, nil
}
