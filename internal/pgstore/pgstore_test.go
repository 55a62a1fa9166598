package pgstore

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/xlsmart/talenthub/internal/store"
)

func TestWrapPQError(t *testing.T) {
	plain := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique", &pq.Error{Code: codeUniqueViolation, Message: "duplicate key"}, store.ErrValidation},
		{"foreign key", &pq.Error{Code: codeForeignKeyViolation, Message: "standard_role_id"}, store.ErrValidation},
		{"check", &pq.Error{Code: codeCheckViolation, Message: "employees_assignment_check"}, store.ErrValidation},
		{"serialization", &pq.Error{Code: codeSerialization, Message: "could not serialize"}, store.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, wrapPQError(tt.err), tt.want)
		})
	}

	assert.Equal(t, plain, wrapPQError(plain))
	other := &pq.Error{Code: "42P01"}
	assert.Equal(t, error(other), wrapPQError(other))
}

func TestQueryBuilding(t *testing.T) {
	sql, args, err := psql.Select(sessionColumns...).From("upload_sessions").
		Where(map[string]any{"status": "uploading"}).
		Suffix("FOR UPDATE").
		ToSql()
	assert.NoError(t, err)
	assert.Contains(t, sql, "WHERE status = $1 FOR UPDATE")
	assert.Equal(t, []any{"uploading"}, args)
}
