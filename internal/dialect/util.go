package dialect

import (
	"fmt"
	"strings"
)

// GeneratePlaceholders is a helper function to create a slice of placeholder strings.
// It takes the number of placeholders needed and a function that returns the placeholder for a given index.
// It returns a comma-separated string of the generated placeholders.
func GeneratePlaceholders(count int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(i)
	}
	return strings.Join(placeholders, ", ")
}

// DefaultInsertQuery builds a plain INSERT statement with the dialect's placeholders.
func DefaultInsertQuery(table string, cols []string, placeholderFunc func(int) string) string {
	vals := GeneratePlaceholders(len(cols), placeholderFunc)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), vals)
}

// storeColumns lists the descriptor store columns with per-dialect type names.
func storeColumns(table, intType, textType, shortText string) string {
	return fmt.Sprintf(`CREATE TABLE %s (
    db_name %s NOT NULL,
    tbl_name %s NOT NULL,
    version_id %s NOT NULL,
    descriptor %s NOT NULL,
    created_at %s NOT NULL,
    PRIMARY KEY (db_name, tbl_name, version_id)
)`, table, shortText, shortText, intType, textType, shortText)
}
