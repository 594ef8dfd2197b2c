package variables

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLitePersister stores one row per variable in the custom_variables
// table. The table is created by the embedded migrations.
type SQLitePersister struct {
	db *sql.DB
}

// NewSQLitePersister creates a persister on an open, migrated database.
func NewSQLitePersister(db *sql.DB) *SQLitePersister {
	return &SQLitePersister{db: db}
}

// Load reads every row.
func (p *SQLitePersister) Load(ctx context.Context) (map[string]any, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT name, config FROM custom_variables")
	if err != nil {
		return nil, fmt.Errorf("querying custom variables: %w", err)
	}
	defer rows.Close()

	vars := make(map[string]any)
	for rows.Next() {
		var (
			name string
			raw  string
		)
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("scanning custom variable: %w", err)
		}
		var config any
		if err := json.Unmarshal([]byte(raw), &config); err != nil {
			return nil, fmt.Errorf("parsing custom variable %q: %w", name, err)
		}
		vars[name] = config
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating custom variables: %w", err)
	}
	return vars, nil
}

// Save replaces the table contents in one transaction.
func (p *SQLitePersister) Save(ctx context.Context, vars map[string]any) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM custom_variables"); err != nil {
		return fmt.Errorf("clearing custom variables: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO custom_variables (name, config, updated_at) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for name, config := range vars {
		raw, err := json.Marshal(config)
		if err != nil {
			return fmt.Errorf("encoding custom variable %q: %w", name, err)
		}
		if _, err := stmt.ExecContext(ctx, name, string(raw), now); err != nil {
			return fmt.Errorf("inserting custom variable %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing custom variables: %w", err)
	}
	return nil
}
