package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/xlsmart/talenthub/internal/store"
)

// Sentinel errors for database operations. Both wrap the matching store
// error, so callers can check either.
var (
	// ErrAlreadyExists indicates a record with the same id already exists.
	ErrAlreadyExists = fmt.Errorf("%w: record already exists", store.ErrValidation)

	// ErrTransactionConflict indicates a SurrealDB transaction conflict from
	// concurrent writes to the same records.
	ErrTransactionConflict = fmt.Errorf("%w: transaction conflict", store.ErrConflict)
)

// wrapQueryError inspects a SurrealDB error and wraps it with the matching
// sentinel. Other errors are returned unchanged.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		if strings.Contains(msg, "already exists") {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, msg)
		}
		if strings.Contains(msg, "Transaction conflict") {
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
	}
	return err
}
