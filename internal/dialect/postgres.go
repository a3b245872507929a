package dialect

import "fmt"

type PostgresDialect struct{}

func (d *PostgresDialect) TableExistsQuery() string {
	// use $1 placeholder
	return `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1`
}

func (d *PostgresDialect) CreateStoreQuery(table string) string {
	return storeColumns(table, "INTEGER", "TEXT", "VARCHAR(255)")
}

func (d *PostgresDialect) InsertQuery(table string, cols []string) string {
	return DefaultInsertQuery(table, cols, d.Placeholder)
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

func (d *PostgresDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
