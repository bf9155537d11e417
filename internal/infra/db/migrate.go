package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed schema/schema.sql
var schemaSQL string

// MigrateUp applies the target schema (spec §3) to db. Every statement is
// idempotent (CREATE ... IF NOT EXISTS), so MigrateUp is safe to call on
// every process start.
func MigrateUp(ctx context.Context, sqlxDB *sqlx.DB) error {
	for _, stmt := range splitStatements(schemaSQL) {
		if _, err := sqlxDB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var out []string
	for _, raw := range strings.Split(script, ";") {
		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}
