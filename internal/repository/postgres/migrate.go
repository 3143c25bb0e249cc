package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schema string

//go:embed seed.sql
var seed string

// Migrate creates the tables when missing. With withSeed it also loads the
// demo documents and medications.
func Migrate(ctx context.Context, db *sqlx.DB, withSeed bool) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if !withSeed {
		return nil
	}
	if _, err := db.ExecContext(ctx, seed); err != nil {
		return fmt.Errorf("failed to apply seed data: %w", err)
	}
	return nil
}
