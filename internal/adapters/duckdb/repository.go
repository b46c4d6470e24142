package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/manthysbr/isamurai-go/internal/core/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key        VARCHAR PRIMARY KEY,
	value      VARCHAR NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS job_records (
	id           VARCHAR PRIMARY KEY,
	kind         VARCHAR NOT NULL,
	name         VARCHAR NOT NULL DEFAULT '',
	multi        BOOLEAN NOT NULL DEFAULT false,
	status       VARCHAR NOT NULL DEFAULT '',
	progress     DOUBLE,
	output_url   VARCHAR NOT NULL DEFAULT '',
	error        VARCHAR NOT NULL DEFAULT '',
	outcome      VARCHAR NOT NULL DEFAULT '',
	submitted_at TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);
`

// Repository stores job history and settings in a DuckDB file.
type Repository struct {
	db *sql.DB
}

// NewRepository opens (or creates) the database at path and applies the
// schema. An empty path opens an in-memory database.
func NewRepository(path string) (*Repository, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	r := &Repository{db: db}
	if err := r.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Ensure Repository implements Repository interface
var _ ports.Repository = (*Repository)(nil)

func (r *Repository) migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}
