// Package migrations holds the schema for each supported SQL dialect.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
)

//go:embed mysql.sql postgres.sql
var files embed.FS

// Schema returns the schema statements for dialect ("mysql" or "postgres").
func Schema(dialect string) ([]string, error) {
	raw, err := files.ReadFile(dialect + ".sql")
	if err != nil {
		return nil, fmt.Errorf("no schema for dialect %q", dialect)
	}

	var stmts []string
	for _, stmt := range strings.Split(string(raw), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

// Apply creates any missing tables. Every statement is idempotent.
func Apply(ctx context.Context, db *sql.DB, dialect string) error {
	stmts, err := Schema(dialect)
	if err != nil {
		return err
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
