package database

import (
	stderrors "errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/medflow/medpredict-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error raised while reading inventory
// tables into an AppError. Returns nil if the error is not a pq.Error or
// has no dedicated mapping.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code.Class() {
	// Connection exception
	case "08":
		return unavailable(err, "inventory database connection lost")

	// Insufficient resources (too many connections, disk full)
	case "53":
		return unavailable(err, "inventory database is overloaded")

	// Operator intervention: query_canceled, admin_shutdown, ...
	case "57":
		return unavailable(err, "inventory database query was cancelled")
	}

	switch pqErr.Code {
	// Undefined table (42P01)
	case "42P01":
		return unavailable(err, "inventory schema is missing a table")

	// Undefined column (42703)
	case "42703":
		return unavailable(err, fmt.Sprintf("inventory schema is missing a column: %s", pqErr.Message))

	// Serialization failure (40001)
	case "40001":
		return unavailable(err, "inventory snapshot could not be serialized, retry")

	default:
		return nil
	}
}

func unavailable(err error, message string) *errors.AppError {
	appErr := errors.Unavailable(message)
	appErr.Err = stderrors.Join(errors.ErrUnavailable, err)
	return appErr
}
