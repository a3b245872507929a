package dialect

import "fmt"

type SqliteDialect struct{}

func (d *SqliteDialect) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
}

func (d *SqliteDialect) CreateStoreQuery(table string) string {
	return storeColumns(table, "INTEGER", "TEXT", "TEXT")
}

func (d *SqliteDialect) InsertQuery(table string, cols []string) string {
	return DefaultInsertQuery(table, cols, d.Placeholder)
}

func (d *SqliteDialect) Placeholder(index int) string {
	return "?"
}

func (d *SqliteDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
