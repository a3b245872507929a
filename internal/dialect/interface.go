package dialect

// Dialect abstracts database-specific SQL for the catalog descriptor store.
type Dialect interface {
	// Store DDL
	TableExistsQuery() string
	CreateStoreQuery(table string) string

	// Query Generation
	InsertQuery(table string, cols []string) string
	Placeholder(index int) string // Returns ?, $1, @p1, etc.
	GetLimitRowQuery(query string, limit int) string
}
