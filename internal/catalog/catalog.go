package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrTableNotFound = errors.New("table not found in catalog")

// UpdateError is a failed catalog write.
type UpdateError struct {
	Code    string
	Message string
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("catalog update failed: %s: %s", e.Code, e.Message)
}

// Catalog reads and writes table descriptors.
type Catalog interface {
	GetTable(ctx context.Context, database, name string) (*Table, error)
	UpdateTableSchema(ctx context.Context, table *Table, req UpdateRequest) error
	LatestVersion(ctx context.Context, database, name string) (string, error)
}

// ApplyUpdate computes the column list that results from applying req to
// columns: renames and type changes happen in place, deletes are removed,
// new columns are appended and moves are applied last, in order.
func ApplyUpdate(columns []Column, req UpdateRequest) ([]Column, error) {
	out := make([]Column, len(columns))
	copy(out, columns)

	for _, r := range req.Renames {
		i := indexOf(out, r.From)
		if i < 0 {
			return nil, fmt.Errorf("rename source %s not found", r.From)
		}
		out[i].Name = r.To
		if r.Type != "" {
			out[i].Type = r.Type
		}
	}

	deleted := make(map[string]bool, len(req.Delete))
	for _, c := range req.Delete {
		deleted[strings.ToLower(c.Name)] = true
	}
	kept := out[:0]
	for _, c := range out {
		if !deleted[strings.ToLower(c.Name)] {
			kept = append(kept, c)
		}
	}
	out = kept

	for _, c := range req.Add {
		if i := indexOf(out, c.Name); i >= 0 {
			out[i].Type = c.Type
			continue
		}
		out = append(out, c)
	}

	for _, m := range req.Moves {
		i := indexOf(out, m.Name)
		if i < 0 {
			return nil, fmt.Errorf("moved column %s not found", m.Name)
		}
		col := out[i]
		out = append(out[:i], out[i+1:]...)
		at := 0
		if !m.First {
			j := indexOf(out, m.After)
			if j < 0 {
				return nil, fmt.Errorf("anchor column %s not found", m.After)
			}
			at = j + 1
		}
		out = append(out, Column{})
		copy(out[at+1:], out[at:])
		out[at] = col
	}
	return out, nil
}

func indexOf(columns []Column, name string) int {
	for i, c := range columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}
