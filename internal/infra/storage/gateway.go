// Package storage provides the Storage Gateway (C1): the single
// abstraction over the relational store that every repository in
// internal/infra/adapter/persistence/sqlite builds on, so higher layers
// never embed DDL or reach for *sql.DB directly.
package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Gateway wraps a *sqlx.DB with the operations repositories need: prepared
// named-parameter statements, single-row/multi-row fetches, and atomic
// multi-statement batches.
type Gateway struct {
	db *sqlx.DB
}

// New wraps an already-opened, already-migrated *sqlx.DB.
func New(db *sqlx.DB) *Gateway {
	return &Gateway{db: db}
}

// DB exposes the underlying handle for repositories that need a raw
// *sqlx.DB (e.g. to build their own NamedExec calls).
func (g *Gateway) DB() *sqlx.DB {
	return g.db
}

// Get runs a query expected to return at most one row and scans it into
// dest via sqlx's struct/scalar binding.
func (g *Gateway) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if err := g.db.GetContext(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("storage: get: %w", err)
	}
	return nil
}

// Select runs a query and scans every row into dest (a pointer to a slice).
func (g *Gateway) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if err := g.db.SelectContext(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("storage: select: %w", err)
	}
	return nil
}

// Exec runs a statement with positional or named (struct/map) parameters.
func (g *Gateway) Exec(ctx context.Context, query string, args ...interface{}) error {
	if _, err := g.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: exec: %w", err)
	}
	return nil
}

// NamedExec runs a statement with named placeholders bound from a struct
// or map, matching spec §4.1's "named placeholders are required."
func (g *Gateway) NamedExec(ctx context.Context, query string, arg interface{}) error {
	if _, err := g.db.NamedExecContext(ctx, query, arg); err != nil {
		return fmt.Errorf("storage: named exec: %w", err)
	}
	return nil
}

// Batch runs fn inside a transaction, committing on success and rolling
// back on error or panic. Used by the Enrichment Worker to group all
// per-item column writes into one atomic step (spec §5).
func (g *Gateway) Batch(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("storage: batch failed: %w (rollback: %v)", err, rbErr)
		}
		return fmt.Errorf("storage: batch failed: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit tx: %w", err)
	}
	return nil
}
