package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Supported DDL grammar:
//
//	CREATE [EXTERNAL] TABLE [IF NOT EXISTS] `db`.`table` (
//	  `name` type[(p[,s])] [COMMENT '...'][,] [-- annotations]
//	  -- `name` type[,]                              (deleted column)
//	)
//	[PARTITIONED BY ( `name` [type][,] ... )]
//	[ROW FORMAT SERDE '...'] [STORED AS ...] [USING iceberg] [LOCATION '...']
//	[TBLPROPERTIES ( 'k'='v', ... )]
//
// Several columns may share a line; the trailing comment annotates the last
// one. Annotations may be combined: renamed_from:X, after:Y, first,
// backfilled_from:Z. first only counts when the comment holds no
// free text besides annotations.

var (
	ErrNoTableName = errors.New("table name not found in DDL")
	ErrNotCreate   = errors.New("DDL is not a CREATE TABLE statement")
)

var (
	tableNameRgx   = regexp.MustCompile("(?i)TABLE\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?`?([\\w-]+)`?\\.`?([\\w-]+)`?")
	createRgx      = regexp.MustCompile(`(?i)^\s*(?:--[^\n]*\n\s*)*CREATE\s+(?:EXTERNAL\s+)?TABLE\b`)
	columnDeclRgx  = regexp.MustCompile("(?i)^`([\\w-]+)`\\s+(\\w+(?:<.*>)?(?:\\(\\s*\\d+\\s*(?:,\\s*\\d+\\s*)?\\))?)(?:\\s+COMMENT\\s+'[^']*')?$")
	partitionByRgx = regexp.MustCompile(`(?i)PARTITIONED\s+BY\s*\(`)
	partLineRgx    = regexp.MustCompile("^\\s*(--\\s*)?`([^`]+)`(?:\\s+(\\w+(?:\\(\\s*\\d+\\s*(?:,\\s*\\d+\\s*)?\\))?))?")
	tblPropsRgx    = regexp.MustCompile(`(?is)TBLPROPERTIES\s*\((.*?)\)`)
	propPairRgx    = regexp.MustCompile(`'([\w.-]+)'\s*=\s*'([^']*)'`)
	annotationRgx  = regexp.MustCompile(`(?i)\b(renamed_from|after|backfilled_from)\s*:\s*` + "`?([\\w-]+)`?")
)

// PartitionFieldIDBase is the first field id assigned to partition columns.
const PartitionFieldIDBase = 1000

// DDL is a parsed CREATE TABLE statement.
type DDL struct {
	Database string
	Table    string
	Text     string
	Snapshot
}

// QualifiedName returns db.table.
func (d *DDL) QualifiedName() string {
	return d.Database + "." + d.Table
}

// TableName extracts the database and table identifiers.
func TableName(text string) (string, string, error) {
	m := tableNameRgx.FindStringSubmatch(text)
	if m == nil {
		return "", "", ErrNoTableName
	}
	return strings.ToLower(m[1]), strings.ToLower(m[2]), nil
}

// IsCreate reports whether text is a CREATE TABLE statement.
func IsCreate(text string) bool {
	return createRgx.MatchString(text)
}

// ParseDDL parses a CREATE TABLE statement into a Snapshot.
// A missing PARTITIONED BY or TBLPROPERTIES clause yields an empty list or map.
func ParseDDL(text string) (*DDL, error) {
	db, table, err := TableName(text)
	if err != nil {
		return nil, err
	}
	if !IsCreate(text) {
		return nil, ErrNotCreate
	}

	loc := tableNameRgx.FindStringIndex(text)
	body, _, err := enclosed(text, loc[1])
	if err != nil {
		return nil, fmt.Errorf("column list of %s.%s: %w", db, table, err)
	}

	d := &DDL{Database: db, Table: table, Text: text}
	if d.Columns, err = parseColumns(body); err != nil {
		return nil, fmt.Errorf("column list of %s.%s: %w", db, table, err)
	}
	if len(d.Columns) == 0 {
		return nil, fmt.Errorf("no columns found in DDL for %s.%s", db, table)
	}

	if ploc := partitionByRgx.FindStringIndex(text); ploc != nil {
		pbody, _, err := enclosed(text, ploc[1]-1)
		if err != nil {
			return nil, fmt.Errorf("partition list of %s.%s: %w", db, table, err)
		}
		d.Partitions = parsePartitions(pbody)
	}

	d.Properties = Properties{}
	if m := tblPropsRgx.FindStringSubmatch(text); m != nil {
		for _, pair := range propPairRgx.FindAllStringSubmatch(m[1], -1) {
			d.Properties[pair[1]] = pair[2]
		}
	}
	return d, nil
}

// parseColumns reads the column declarations of the body. A line may hold
// several declarations; its trailing comment annotates the last one and a
// leading comment marker deletes all of them. A declaration that does not
// parse fails the whole list rather than being dropped.
func parseColumns(body string) ([]Column, error) {
	var columns []Column
	for _, line := range strings.Split(body, "\n") {
		decls, comment, commented := splitColumnLine(line)
		for i, decl := range decls {
			m := columnDeclRgx.FindStringSubmatch(decl)
			if m == nil {
				if commented || !strings.Contains(decl, "`") {
					continue
				}
				return nil, fmt.Errorf("unparsable column declaration %q", decl)
			}
			col := Column{
				Name:      m[1],
				Type:      CleanType(m[2]),
				ID:        len(columns) + 1,
				Commented: commented,
			}
			if i == len(decls)-1 {
				applyAnnotations(&col, comment)
			}
			columns = append(columns, col)
		}
	}
	return columns, nil
}

// splitColumnLine splits a body line into its top level declarations and
// the trailing comment. Commas inside parentheses, angle brackets and
// quotes do not split.
func splitColumnLine(line string) ([]string, string, bool) {
	line = strings.TrimSpace(strings.TrimRight(line, "\r"))
	commented := false
	if rest, ok := strings.CutPrefix(line, "--"); ok {
		commented = true
		line = strings.TrimSpace(rest)
	}

	var (
		decls   []string
		comment string
		depth   int
		inQuote bool
		start   int
	)
	end := len(line)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote:
			if c == '\'' {
				inQuote = false
			}
		case c == '\'':
			inQuote = true
		case c == '-' && i+1 < len(line) && line[i+1] == '-':
			comment = strings.TrimSpace(line[i+2:])
			end = i
			i = len(line)
		case c == '(' || c == '<':
			depth++
		case c == ')' || c == '>':
			depth--
		case c == ',' && depth == 0:
			decls = append(decls, strings.TrimSpace(line[start:i]))
			start = i + 1
		}
	}
	decls = append(decls, strings.TrimSpace(line[start:end]))

	out := decls[:0]
	for _, d := range decls {
		if d != "" {
			out = append(out, d)
		}
	}
	return out, comment, commented
}

func parsePartitions(body string) []PartitionColumn {
	var parts []PartitionColumn
	for _, line := range strings.Split(body, "\n") {
		for _, decl := range splitDecl(line) {
			m := partLineRgx.FindStringSubmatch(decl)
			if m == nil {
				continue
			}
			parts = append(parts, PartitionColumn{
				FieldID:   PartitionFieldIDBase + len(parts),
				Name:      m[2],
				Type:      CleanType(m[3]),
				Commented: m[1] != "",
			})
		}
	}
	return parts
}

// splitDecl splits a partition line holding several comma separated
// identifiers, keeping a leading comment marker on the first one only.
func splitDecl(line string) []string {
	if strings.HasPrefix(strings.TrimSpace(line), "--") {
		return []string{line}
	}
	if idx := strings.Index(line, "--"); idx >= 0 {
		line = line[:idx]
	}
	var out []string
	depth := 0
	start := 0
	for i, r := range line {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, line[start:i])
				start = i + 1
			}
		}
	}
	return append(out, line[start:])
}

func applyAnnotations(col *Column, comment string) {
	if comment == "" {
		return
	}
	for _, m := range annotationRgx.FindAllStringSubmatch(comment, -1) {
		switch strings.ToLower(m[1]) {
		case "renamed_from":
			col.RenamedFrom = m[2]
		case "after":
			col.After = m[2]
		case "backfilled_from":
			col.BackfilledFrom = m[2]
		}
	}
	// first counts only as a bare token next to other annotations, never
	// inside free text
	tokens := strings.FieldsFunc(annotationRgx.ReplaceAllString(comment, ""), func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
	col.First = len(tokens) > 0
	for _, t := range tokens {
		if !strings.EqualFold(t, "first") {
			col.First = false
			break
		}
	}
}

// enclosed returns the text between the first '(' at or after from and its
// matching ')', skipping parentheses inside -- comments and quoted strings.
func enclosed(text string, from int) (string, int, error) {
	open := strings.IndexByte(text[from:], '(')
	if open < 0 {
		return "", 0, errors.New("opening parenthesis not found")
	}
	start := from + open + 1
	depth := 1
	inQuote := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case inQuote:
			if c == '\'' {
				inQuote = false
			}
		case c == '\'':
			inQuote = true
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			nl := strings.IndexByte(text[i:], '\n')
			if nl < 0 {
				return "", 0, errors.New("unterminated column list")
			}
			i += nl
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return text[start:i], i + 1, nil
			}
		}
	}
	return "", 0, errors.New("unbalanced parentheses")
}
