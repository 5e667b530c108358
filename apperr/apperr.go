// Package apperr defines the error taxonomy shared by every command handler.
//
// Callers classify failures with errors.Is against the sentinels below; the
// HTTP layer maps them onto status codes.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates a referenced aggregate, adjustment or schema is missing.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates an illegal lifecycle transition or a mutation of a terminal aggregate.
	ErrInvalidState = errors.New("invalid state")
	// ErrValidation indicates malformed command input or malleable data violations.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a lost update or a uniqueness violation.
	ErrConflict = errors.New("conflict")
)

// NotFound tags a formatted message as ErrNotFound.
func NotFound(format string, args ...any) error {
	return errors.Join(ErrNotFound, fmt.Errorf(format, args...))
}

// InvalidState tags a formatted message as ErrInvalidState.
func InvalidState(format string, args ...any) error {
	return errors.Join(ErrInvalidState, fmt.Errorf(format, args...))
}

// Conflict tags a formatted message as ErrConflict.
func Conflict(format string, args ...any) error {
	return errors.Join(ErrConflict, fmt.Errorf(format, args...))
}

// ValidationError aggregates every violation found for a single write.
type ValidationError struct {
	Violations []string
}

// Invalid returns a *ValidationError for the given violations, or nil when
// there are none.
func Invalid(violations ...string) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Violations, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Violations extracts the violation list from err, if it carries one.
func Violations(err error) []string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Violations
	}
	return nil
}

// FromPg translates driver level failures into the taxonomy. Errors that do
// not match a known case are returned unchanged.
func FromPg(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Join(ErrNotFound, fmt.Errorf(format, args...))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return errors.Join(ErrConflict, fmt.Errorf(format+": %w", append(args, err)...))
		}
	}

	return fmt.Errorf(format+": %w", append(args, err)...)
}
