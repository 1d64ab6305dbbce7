package migrator

import (
	"context"
	"fmt"

	"code.cloudfoundry.org/lager/v3"
)

// ValidateResult compares the ledger with the catalog.
type ValidateResult struct {
	// OK is true when every applied version is known to the catalog under
	// the same name and no pending version sits below an applied one.
	OK bool
	// Messages describes each problem found, one per line.
	Messages []string
	// Pending are catalog versions not in the ledger, ascending.
	Pending []int
	// Unknown are ledger versions missing from the catalog.
	Unknown []int
	// Renamed are ledger versions whose recorded name differs from the
	// catalog.
	Renamed []int
}

// Validate compares the applied migrations with the catalog without changing
// anything. Pending versions newer than the current version are expected and
// do not make the result fail; a gap below the current version does.
//
// Parameters:
//   - ctx: Context to use for database operations.
//
// Returns:
//   - *ValidateResult: The comparison.
//   - error: An error if the ledger cannot be read.
func (m *Migrator) Validate(ctx context.Context) (*ValidateResult, error) {
	logger := m.Logger.Session("validate")

	var applied []LedgerRecord
	exists, err := m.Ledger.Exists(ctx, m.DB)
	if err != nil {
		return nil, err
	}
	if exists {
		applied, err = m.Ledger.AppliedDescending(ctx, m.DB)
		if err != nil {
			return nil, err
		}
	}

	res := checkLedger(m.Catalog, applied)
	logger.Info(validated, lager.Data{
		"ok":       res.OK,
		"pending":  res.Pending,
		"unknown":  res.Unknown,
		"renamed":  res.Renamed,
		"problems": len(res.Messages),
	})
	return res, nil
}

func checkLedger(catalog *Catalog, applied []LedgerRecord) *ValidateResult {
	res := &ValidateResult{
		Pending: []int{},
		Unknown: []int{},
		Renamed: []int{},
	}

	current := 0
	recorded := make(map[int]bool, len(applied))
	for i := len(applied) - 1; i >= 0; i-- {
		rec := applied[i]
		recorded[rec.Version] = true
		current = max(current, rec.Version)

		mig, ok := catalog.Get(rec.Version)
		if !ok {
			res.Unknown = append(res.Unknown, rec.Version)
			res.Messages = append(res.Messages, fmt.Sprintf(
				"applied version %03d_%s is not in the catalog", rec.Version, rec.Name,
			))
			continue
		}
		if mig.Name() != rec.Name {
			res.Renamed = append(res.Renamed, rec.Version)
			res.Messages = append(res.Messages, fmt.Sprintf(
				"applied version %03d is recorded as %q but named %q in the catalog",
				rec.Version, rec.Name, mig.Name(),
			))
		}
	}

	for _, mig := range catalog.All() {
		if recorded[mig.Version()] {
			continue
		}
		res.Pending = append(res.Pending, mig.Version())
		if mig.Version() < current {
			res.Messages = append(res.Messages, fmt.Sprintf(
				"version %s is not applied but %03d is", mig, current,
			))
		}
	}

	res.OK = len(res.Messages) == 0
	return res
}
