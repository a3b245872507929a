package schema

import "strings"

// Column is a single column declaration, either parsed from DDL or read from the catalog.
type Column struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	ID             int    `json:"id,omitempty"`
	Commented      bool   `json:"commented,omitempty"`
	RenamedFrom    string `json:"renamed_from,omitempty"`
	After          string `json:"after,omitempty"`
	First          bool   `json:"first,omitempty"`
	BackfilledFrom string `json:"backfilled_from,omitempty"`
}

// Key is the comparison identity of the column.
func (c Column) Key() string {
	return strings.ToLower(c.Name)
}

// HasPosition reports whether the column carries an after/first directive.
func (c Column) HasPosition() bool {
	return c.After != "" || c.First
}

// PartitionColumn is identified by FieldID, never by name.
type PartitionColumn struct {
	FieldID   int    `json:"field-id"`
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	Commented bool   `json:"commented,omitempty"`
}

type Properties map[string]string

// Snapshot is the common shape both sides of a comparison are reduced to.
type Snapshot struct {
	Columns         []Column          `json:"columns"`
	Partitions      []PartitionColumn `json:"partitions"`
	Properties      Properties        `json:"properties"`
	MigrationSource bool              `json:"is_migration_source,omitempty"`
}

// ActiveColumns returns the columns not commented out.
func (s Snapshot) ActiveColumns() []Column {
	var out []Column
	for _, c := range s.Columns {
		if !c.Commented {
			out = append(out, c)
		}
	}
	return out
}

// ActivePartitions returns the partition columns not commented out.
func (s Snapshot) ActivePartitions() []PartitionColumn {
	var out []PartitionColumn
	for _, p := range s.Partitions {
		if !p.Commented {
			out = append(out, p)
		}
	}
	return out
}

// HasBackfill reports whether any column carries a backfilled_from annotation.
func (s Snapshot) HasBackfill() bool {
	for _, c := range s.Columns {
		if c.BackfilledFrom != "" {
			return true
		}
	}
	return false
}

// Normalized returns a copy with every column and partition type normalized.
func (s Snapshot) Normalized() Snapshot {
	out := s
	out.Columns = make([]Column, len(s.Columns))
	for i, c := range s.Columns {
		c.Type = NormalizeType(c.Type)
		out.Columns[i] = c
	}
	out.Partitions = make([]PartitionColumn, len(s.Partitions))
	for i, p := range s.Partitions {
		if p.Type != "" {
			p.Type = NormalizeType(p.Type)
		}
		out.Partitions[i] = p
	}
	return out
}
