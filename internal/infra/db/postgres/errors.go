package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"bookingengine/internal/domain/shared/fault"
)

// classify maps driver errors onto fault kinds. Lock timeouts are busy;
// serialization failures, deadlocks and lost connections are transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.LockNotAvailable:
			return fmt.Errorf("%w: %s: lock wait timed out", fault.ErrBusy, op)
		case pgErr.Code == pgerrcode.QueryCanceled:
			return fmt.Errorf("%w: %s: statement canceled", fault.ErrBusy, op)
		case pgErr.Code == pgerrcode.SerializationFailure, pgErr.Code == pgerrcode.DeadlockDetected:
			return fault.Transient(fmt.Errorf("%s: %w", op, err))
		case pgerrcode.IsConnectionException(pgErr.Code):
			return fault.Transient(fmt.Errorf("%s: %w", op, err))
		case pgErr.Code == pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s: %s", fault.ErrConflict, op, pgErr.ConstraintName)
		case pgErr.Code == pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %s: %s", fault.ErrNotFound, op, pgErr.ConstraintName)
		case pgErr.Code == pgerrcode.CheckViolation:
			return fmt.Errorf("%w: %s: %s", fault.ErrInvalidInput, op, pgErr.ConstraintName)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return fault.Transient(fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
