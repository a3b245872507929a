package dialect

import "fmt"

type OracleDialect struct{}

func (d *OracleDialect) TableExistsQuery() string {
	// USER_TABLES lists tables owned by the current user; names are stored upper case.
	return `SELECT COUNT(*) FROM USER_TABLES WHERE TABLE_NAME = UPPER(:1)`
}

func (d *OracleDialect) CreateStoreQuery(table string) string {
	return storeColumns(table, "NUMBER(10)", "CLOB", "VARCHAR2(255)")
}

func (d *OracleDialect) InsertQuery(table string, cols []string) string {
	return DefaultInsertQuery(table, cols, d.Placeholder)
}

func (d *OracleDialect) Placeholder(index int) string {
	// Oracle uses :1, :2, etc. (1-based index)
	return fmt.Sprintf(":%d", index+1)
}

func (d *OracleDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("SELECT * FROM (%s) WHERE ROWNUM <= %d", query, limit)
}
