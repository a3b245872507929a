package compat

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Engine names the query engine whose type evolution rules apply.
type Engine string

const (
	Athena  Engine = "athena"
	Iceberg Engine = "iceberg"
)

// ParseEngine validates an engine name.
func ParseEngine(s string) (Engine, error) {
	switch e := Engine(strings.ToLower(strings.TrimSpace(s))); e {
	case Athena, Iceberg:
		return e, nil
	case "":
		return Athena, nil
	default:
		return "", fmt.Errorf("unsupported query engine: %q", s)
	}
}

// widening lists, per engine, the target types each source type may change to.
var widening = map[Engine]map[string][]string{
	Athena: {
		"STRING":   {"BYTE", "TINYINT", "SMALLINT", "INT", "BIGINT", "VARCHAR"},
		"BYTE":     {"TINYINT", "SMALLINT", "INT", "BIGINT"},
		"TINYINT":  {"SMALLINT", "INT", "BIGINT"},
		"SMALLINT": {"INT", "BIGINT"},
		"INT":      {"BIGINT"},
		"FLOAT":    {"DOUBLE"},
		"DECIMAL":  {"DECIMAL"},
		"VARCHAR":  {"VARCHAR"},
	},
	Iceberg: {
		"TINYINT":  {"SMALLINT", "INT", "BIGINT"},
		"SMALLINT": {"INT", "BIGINT"},
		"INT":      {"BIGINT"},
		"FLOAT":    {"DOUBLE"},
		"DECIMAL":  {"DECIMAL"},
		"VARCHAR":  {"VARCHAR"},
	},
}

var aliases = map[string]string{
	"LONG":    "BIGINT",
	"INTEGER": "INT",
	"REAL":    "FLOAT",
	"NUMERIC": "DECIMAL",
}

var typeRgx = regexp.MustCompile(`^(\w+)\s*(?:\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\))?$`)

type parsedType struct {
	base   string
	params []int
}

func parseType(t string) parsedType {
	t = strings.ToUpper(strings.TrimSpace(t))
	m := typeRgx.FindStringSubmatch(t)
	if m == nil {
		return parsedType{base: t}
	}
	p := parsedType{base: m[1]}
	if a, ok := aliases[p.base]; ok {
		p.base = a
	}
	for _, s := range m[2:] {
		if s == "" {
			continue
		}
		n, _ := strconv.Atoi(s)
		p.params = append(p.params, n)
	}
	return p
}

// precisionScale returns decimal precision and scale; bare DECIMAL is (10,0).
func (p parsedType) precisionScale() (int, int) {
	switch len(p.params) {
	case 0:
		return 10, 0
	case 1:
		return p.params[0], 0
	default:
		return p.params[0], p.params[1]
	}
}

// Compatible reports whether a column of type old can be changed to type
// new without losing data under the engine's rules.
func Compatible(old, new string, engine Engine) (bool, error) {
	table, ok := widening[engine]
	if !ok {
		return false, fmt.Errorf("unsupported query engine: %q", engine)
	}
	from, to := parseType(old), parseType(new)
	if from.base == to.base && equalParams(from.params, to.params) {
		return true, nil
	}

	allowed := false
	for _, target := range table[from.base] {
		if target == to.base {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}

	switch {
	case from.base == "DECIMAL" && to.base == "DECIMAL":
		p, s := from.precisionScale()
		p2, s2 := to.precisionScale()
		return s == s2 && p2 > p, nil
	case from.base == "VARCHAR" && to.base == "VARCHAR":
		if len(to.params) == 0 {
			return true, nil
		}
		if len(from.params) == 0 {
			return false, nil
		}
		return to.params[0] > from.params[0], nil
	}
	return true, nil
}

func equalParams(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TypeChange is a column whose type differs between the two sides.
type TypeChange struct {
	Name           string `json:"name"`
	OldType        string `json:"old_type"`
	NewType        string `json:"new_type"`
	BackfilledFrom string `json:"backfilled_from,omitempty"`
}

// Classify splits changes into compatible and incompatible ones.
func Classify(changes []TypeChange, engine Engine) (bool, []TypeChange, []TypeChange, error) {
	var compatible, incompatible []TypeChange
	for _, c := range changes {
		ok, err := Compatible(c.OldType, c.NewType, engine)
		if err != nil {
			return false, nil, nil, err
		}
		if ok {
			compatible = append(compatible, c)
		} else {
			incompatible = append(incompatible, c)
		}
	}
	return len(incompatible) == 0, compatible, incompatible, nil
}
