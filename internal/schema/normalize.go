package schema

import (
	"regexp"
	"strings"
)

// typeAliases maps DDL spellings onto the names Iceberg metadata uses.
var typeAliases = map[string]string{
	"bigint": "long", "integer": "int", "tinyint": "int", "smallint": "int",
	"varchar": "string", "char": "string", "real": "float",
	"bool": "boolean", "decimal": "decimal(10,0)", "numeric": "decimal(10,0)",
}

var (
	spaceRgx   = regexp.MustCompile(`\s+`)
	sizedRgx   = regexp.MustCompile(`^(\w+)\((\d+)\)$`)
	decimalRgx = regexp.MustCompile(`^(?:decimal|numeric)\((\d+)(?:,(\d+))?\)$`)
)

// NormalizeType folds equivalent spellings of a type so that DDL and
// Iceberg metadata types compare equal: bigint and long, varchar(n) and
// string, decimal(p, s) and decimal(p,s).
func NormalizeType(t string) string {
	n := spaceRgx.ReplaceAllString(strings.ToLower(strings.TrimSpace(t)), "")
	if m := decimalRgx.FindStringSubmatch(n); m != nil {
		scale := m[2]
		if scale == "" {
			scale = "0"
		}
		return "decimal(" + m[1] + "," + scale + ")"
	}
	if m := sizedRgx.FindStringSubmatch(n); m != nil {
		switch m[1] {
		case "varchar", "char":
			return "string"
		}
	}
	if alias, ok := typeAliases[n]; ok {
		return alias
	}
	return n
}

// hiveAliases maps alternative spellings onto Hive type names. Sized
// strings keep their length.
var hiveAliases = map[string]string{
	"long": "bigint", "integer": "int", "real": "float", "bool": "boolean",
	"decimal": "decimal(10,0)", "numeric": "decimal(10,0)",
}

// FoldType folds aliases of the same Hive type, such as integer and int,
// without switching to Iceberg names.
func FoldType(t string) string {
	n := CleanType(t)
	if m := decimalRgx.FindStringSubmatch(n); m != nil {
		scale := m[2]
		if scale == "" {
			scale = "0"
		}
		return "decimal(" + m[1] + "," + scale + ")"
	}
	if alias, ok := hiveAliases[n]; ok {
		return alias
	}
	return n
}

// CleanType lower-cases a type and strips the whitespace inside it without
// folding aliases.
func CleanType(t string) string {
	return spaceRgx.ReplaceAllString(strings.ToLower(strings.TrimSpace(t)), "")
}
