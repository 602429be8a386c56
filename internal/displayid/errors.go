package displayid

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// AllocationTransactionError means a backfill was rolled back. Nothing it
// assigned was kept.
type AllocationTransactionError struct {
	Stage     string
	Err       error
	Retryable bool
}

func (e *AllocationTransactionError) Error() string {
	return fmt.Sprintf("display id allocation failed during %s: %v", e.Stage, e.Err)
}

func (e *AllocationTransactionError) Unwrap() error { return e.Err }

func txError(stage string, err error) *AllocationTransactionError {
	return &AllocationTransactionError{Stage: stage, Err: err, Retryable: isSerializationFailure(err)}
}

// isSerializationFailure reports Postgres serialization_failure and
// deadlock_detected, both safe to retry from the start.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
