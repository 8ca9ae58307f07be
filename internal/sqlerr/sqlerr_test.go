package sqlerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/deppfellow/users-service/internal/errs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapCode(t *testing.T) {
	assert.Equal(t, UniqueViolation, MapCode("23505"))
	assert.Equal(t, NotNullViolation, MapCode("23502"))
	assert.Equal(t, CheckViolation, MapCode("23514"))
	assert.Equal(t, SerializationFailure, MapCode("40001"))
	assert.Equal(t, Other, MapCode("XX000"))
}

func TestMapSeverity(t *testing.T) {
	assert.Equal(t, SeverityFatal, MapSeverity("FATAL"))
	assert.Equal(t, SeverityError, MapSeverity("ERROR"))
	assert.Equal(t, SeverityError, MapSeverity("whatever"))
}

func TestConvertPgError_Unwraps(t *testing.T) {
	src := &pgconn.PgError{Code: "23505", Severity: "ERROR", Message: "duplicate key", TableName: "users"}

	converted := ConvertPgError(src)
	assert.Equal(t, UniqueViolation, converted.Code)
	assert.Equal(t, "users", converted.TableName)

	var pgerr *pgconn.PgError
	require.True(t, errors.As(converted, &pgerr))
	assert.Same(t, src, pgerr)
	assert.Equal(t, UniqueViolation, ErrCode(fmt.Errorf("wrapped: %w", converted)))
	assert.Equal(t, Other, ErrCode(errors.New("plain")))
}

func asHTTPError(t *testing.T, err error) *errs.HTTPError {
	t.Helper()

	var httpErr *errs.HTTPError
	require.True(t, errors.As(err, &httpErr), "expected *errs.HTTPError, got %T", err)
	return httpErr
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "not null violation",
			err:        fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23502", TableName: "users", ColumnName: "country_of_residence"}),
			wantStatus: http.StatusBadRequest,
			wantCode:   "USER_REQUIRED",
			wantMsg:    "The Country Of Residence is required",
		},
		{
			name:       "unique violation",
			err:        &pgconn.PgError{Code: "23505", TableName: "users", ConstraintName: "users_name_key"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "USER_ALREADY_EXISTS",
			wantMsg:    "A User with this Name already exists",
		},
		{
			name:       "check violation",
			err:        &pgconn.PgError{Code: "23514", TableName: "users", ColumnName: "age"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "USER_INVALID",
			wantMsg:    "The Age value does not meet required conditions",
		},
		{
			name:       "serialization failure",
			err:        &pgconn.PgError{Code: "40001", TableName: "users"},
			wantStatus: http.StatusConflict,
			wantCode:   "USER_CONFLICT",
		},
		{
			name:       "unknown sqlstate",
			err:        &pgconn.PgError{Code: "XX000"},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_SERVER_ERROR",
		},
		{
			name:       "no rows",
			err:        fmt.Errorf("query: %w", pgx.ErrNoRows),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "plain error",
			err:        errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_SERVER_ERROR",
			wantMsg:    "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := asHTTPError(t, HandleError(tt.err))
			assert.Equal(t, tt.wantStatus, httpErr.Status)
			assert.Equal(t, tt.wantCode, httpErr.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, httpErr.Message)
			}
		})
	}
}

func TestHandleError_PassesHTTPErrorThrough(t *testing.T) {
	original := errs.NewNotFoundError("user not found", true, nil)
	assert.Same(t, original, HandleError(original))
}

func TestExtractColumnForUniqueViolation(t *testing.T) {
	assert.Equal(t, "name", extractColumnForUniqueViolation("unique_users_name"))
	assert.Equal(t, "name", extractColumnForUniqueViolation("users_name_key"))
	assert.Equal(t, "", extractColumnForUniqueViolation("users_pkey"))
	assert.Equal(t, "", extractColumnForUniqueViolation(""))
}
