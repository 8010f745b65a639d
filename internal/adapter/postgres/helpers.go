package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/skywise-ai/irops/internal/domain"
)

// notFoundWrap translates pgx.ErrNoRows into the domain not-found sentinel
// so callers never need to know the storage engine. Other errors keep their
// cause and pick up the formatted context.
func notFoundWrap(err error, format string, args ...any) error {
	cause := err
	if errors.Is(err, pgx.ErrNoRows) {
		cause = domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), cause)
}
