package migrator

import (
	"context"
	"database/sql"

	"code.cloudfoundry.org/lager/v3"
	"github.com/hashicorp/go-multierror"
)

// TxBeginner starts transactions. *sql.DB and *sql.Conn implement it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// withTxV runs fn inside a new transaction. The transaction commits when fn
// succeeds and rolls back otherwise; a failed rollback is reported together
// with the error of fn. A panic in fn rolls back and is re-raised.
func withTxV[T any](
	ctx context.Context,
	logger lager.Logger,
	db TxBeginner,
	fn func(ctx context.Context, tx *sql.Tx) (T, error),
) (result T, err error) {
	var zero T

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error(failedToStartTransaction, err)
		return zero, err
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error(failedToRollback, rbErr)
			}
			panic(p)
		}
		err = commit(logger, tx, err)
		if err != nil {
			result = zero
		}
	}()

	return fn(ctx, tx)
}

// commit ends tx according to err: it commits on nil and rolls back
// otherwise.
func commit(logger lager.Logger, tx *sql.Tx, err error) error {
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error(failedToRollback, rbErr)
			return multierror.Append(err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.Error(failedToCommit, err)
		return err
	}
	logger.Debug(committed)
	return nil
}
