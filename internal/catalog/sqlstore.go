package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ddl-alterator/internal/dialect"
)

const DefaultStoreTable = "catalog_tables"

// SQLStore is a Catalog keeping every table descriptor version as a row in
// a relational database. Each update appends a new version.
type SQLStore struct {
	db    *sql.DB
	d     dialect.Dialect
	table string
}

var _ Catalog = (*SQLStore)(nil)

// NewSQLStore wraps db using the dialect registered for driver.
func NewSQLStore(db *sql.DB, driver, table string) *SQLStore {
	if table == "" {
		table = DefaultStoreTable
	}
	return &SQLStore{db: db, d: dialect.GetDialect(driver), table: table}
}

// EnsureSchema creates the store table when it does not exist yet.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, s.d.TableExistsQuery(), s.table).Scan(&n); err != nil {
		return fmt.Errorf("failed to check store table: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, s.d.CreateStoreQuery(s.table)); err != nil {
		return fmt.Errorf("failed to create store table: %w", err)
	}
	return nil
}

// PutTable stores t as the next version of its table.
func (s *SQLStore) PutTable(ctx context.Context, t *Table) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	current, err := s.latest(ctx, tx, t.DatabaseName, t.Name)
	if err != nil && !errors.Is(err, ErrTableNotFound) {
		return "", err
	}
	next := current + 1

	stored := *t
	stored.VersionID = strconv.Itoa(next)
	payload, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to encode descriptor: %w", err)
	}

	query := s.d.InsertQuery(s.table, []string{"db_name", "tbl_name", "version_id", "descriptor", "created_at"})
	if _, err := tx.ExecContext(ctx, query, t.DatabaseName, t.Name, next, string(payload), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return "", fmt.Errorf("failed to insert descriptor: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit descriptor: %w", err)
	}
	tx = nil
	return stored.VersionID, nil
}

func (s *SQLStore) GetTable(ctx context.Context, database, name string) (*Table, error) {
	row := s.db.QueryRowContext(ctx, s.latestQuery("descriptor"), database, name)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s.%s: %w", database, name, ErrTableNotFound)
		}
		return nil, fmt.Errorf("failed to read descriptor for %s.%s: %w", database, name, err)
	}
	var t Table
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor for %s.%s: %w", database, name, err)
	}
	return &t, nil
}

func (s *SQLStore) UpdateTableSchema(ctx context.Context, table *Table, req UpdateRequest) error {
	current, err := s.GetTable(ctx, table.DatabaseName, table.Name)
	if err != nil {
		return err
	}
	columns, err := ApplyUpdate(current.StorageDescriptor.Columns, req)
	if err != nil {
		return &UpdateError{Code: "InvalidRequest", Message: err.Error()}
	}
	current.StorageDescriptor.Columns = columns
	if _, err := s.PutTable(ctx, current); err != nil {
		return &UpdateError{Code: "StoreWriteFailed", Message: err.Error()}
	}
	return nil
}

func (s *SQLStore) LatestVersion(ctx context.Context, database, name string) (string, error) {
	v, err := s.latest(ctx, s.db, database, name)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(v), nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) latest(ctx context.Context, q queryer, database, name string) (int, error) {
	var v int
	if err := q.QueryRowContext(ctx, s.latestQuery("version_id"), database, name).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s.%s: %w", database, name, ErrTableNotFound)
		}
		return 0, fmt.Errorf("failed to read version for %s.%s: %w", database, name, err)
	}
	return v, nil
}

func (s *SQLStore) latestQuery(col string) string {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE db_name = %s AND tbl_name = %s ORDER BY version_id DESC",
		col, s.table, s.d.Placeholder(0), s.d.Placeholder(1))
	return s.d.GetLimitRowQuery(query, 1)
}
