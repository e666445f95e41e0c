package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore keeps the dataset in the address_schemas table, one row per
// country with the raw record in a jsonb column.
type PostgresStore struct {
	db       *sql.DB
	fallback string
}

// NewPostgresStore creates a store over db. The schema is created by
// internal.RunMigrations.
func NewPostgresStore(db *sql.DB, fallback string) *PostgresStore {
	if fallback == "" {
		fallback = DefaultFallback
	}
	return &PostgresStore{db: db, fallback: NormalizeCode(fallback)}
}

const (
	selectSchemaSQL = `SELECT data FROM address_schemas WHERE code = $1`

	selectMetaSQL = `SELECT code, name FROM address_schemas WHERE code <> $1 ORDER BY code`

	upsertSchemaSQL = `INSERT INTO address_schemas (code, data, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (code) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`

	updateNameSQL = `UPDATE address_schemas SET name = $2 WHERE code = $1`
)

func (s *PostgresStore) LoadSchema(ctx context.Context, code string) (RawSchema, error) {
	if !ValidCode(code) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, selectSchemaSQL, code).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return nil, fmt.Errorf("failed to query schema %s: %w", code, err)
	}

	schema, err := ParseSchema(data)
	if err != nil {
		return nil, errCorrupt(code, err)
	}
	return schema, nil
}

func (s *PostgresStore) LoadFallbackSchema(ctx context.Context) (RawSchema, error) {
	return s.LoadSchema(ctx, s.fallback)
}

func (s *PostgresStore) LoadCountryMeta(ctx context.Context) ([]Country, error) {
	rows, err := s.db.QueryContext(ctx, selectMetaSQL, s.fallback)
	if err != nil {
		return nil, fmt.Errorf("failed to query country list: %w", err)
	}
	defer rows.Close()

	countries := []Country{}
	for rows.Next() {
		var c Country
		if err := rows.Scan(&c.Code, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan country: %w", err)
		}
		countries = append(countries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read country list: %w", err)
	}
	return countries, nil
}

func (s *PostgresStore) LoadCountryCodeList(ctx context.Context) ([]string, error) {
	return CountryCodes(), nil
}

// PutSchema upserts one raw record. The payload must be a JSON object.
func (s *PostgresStore) PutSchema(ctx context.Context, code string, data []byte) (string, error) {
	if !ValidCode(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	if _, err := ParseSchema(data); err != nil {
		return "", errCorrupt(code, err)
	}

	if _, err := s.db.ExecContext(ctx, upsertSchemaSQL, code, string(data)); err != nil {
		return "", fmt.Errorf("failed to store schema %s: %w", code, err)
	}
	return "address_schemas/" + code, nil
}

// PutMeta writes display names onto the stored rows in one transaction.
func (s *PostgresStore) PutMeta(ctx context.Context, countries []Country) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range countries {
		if _, err := tx.ExecContext(ctx, updateNameSQL, c.Code, c.Name); err != nil {
			return fmt.Errorf("failed to store name for %s: %w", c.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit country list: %w", err)
	}
	return nil
}
