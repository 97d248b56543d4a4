package store

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a query resolves to zero rows.
var ErrNotFound = errors.New("store: not found")

// mapNoRows converts pgx.ErrNoRows into the package sentinel so callers do not
// depend on the driver.
func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
