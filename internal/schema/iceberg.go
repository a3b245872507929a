package schema

import (
	"encoding/json"
	"fmt"
)

type icebergField struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Required bool            `json:"required"`
	Type     json.RawMessage `json:"type"`
}

type icebergSchema struct {
	SchemaID int            `json:"schema-id"`
	Fields   []icebergField `json:"fields"`
}

type icebergPartitionField struct {
	FieldID   int    `json:"field-id"`
	SourceID  int    `json:"source-id"`
	Name      string `json:"name"`
	Transform string `json:"transform"`
}

type icebergSpec struct {
	SpecID int                     `json:"spec-id"`
	Fields []icebergPartitionField `json:"fields"`
}

type icebergMetadata struct {
	FormatVersion   int                     `json:"format-version"`
	CurrentSchemaID int                     `json:"current-schema-id"`
	Schemas         []icebergSchema         `json:"schemas"`
	Schema          *icebergSchema          `json:"schema"`
	DefaultSpecID   int                     `json:"default-spec-id"`
	PartitionSpecs  []icebergSpec           `json:"partition-specs"`
	PartitionSpec   []icebergPartitionField `json:"partition-spec"`
	Properties      map[string]string       `json:"properties"`
}

// FromIcebergMetadata reads the current schema, default partition spec and
// table properties out of an Iceberg table metadata document.
// The owner property is dropped since it is not a real table property.
func FromIcebergMetadata(doc []byte) (Snapshot, error) {
	var meta icebergMetadata
	if err := json.Unmarshal(doc, &meta); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode iceberg metadata: %w", err)
	}

	current, err := meta.currentSchema()
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	for _, f := range current.Fields {
		snap.Columns = append(snap.Columns, Column{ID: f.ID, Name: f.Name, Type: fieldType(f.Type)})
	}

	sourceTypes := make(map[int]string, len(current.Fields))
	for _, c := range snap.Columns {
		sourceTypes[c.ID] = c.Type
	}
	for _, pf := range meta.defaultSpec() {
		snap.Partitions = append(snap.Partitions, PartitionColumn{
			FieldID: pf.FieldID,
			Name:    pf.Name,
			Type:    sourceTypes[pf.SourceID],
		})
	}

	snap.Properties = Properties{}
	for k, v := range meta.Properties {
		if k == "owner" {
			continue
		}
		snap.Properties[k] = v
	}
	return snap, nil
}

func (m *icebergMetadata) currentSchema() (*icebergSchema, error) {
	for i := range m.Schemas {
		if m.Schemas[i].SchemaID == m.CurrentSchemaID {
			return &m.Schemas[i], nil
		}
	}
	// format v1 documents may only carry the single schema field
	if m.Schema != nil {
		return m.Schema, nil
	}
	return nil, fmt.Errorf("current schema %d not found in iceberg metadata", m.CurrentSchemaID)
}

func (m *icebergMetadata) defaultSpec() []icebergPartitionField {
	for _, s := range m.PartitionSpecs {
		if s.SpecID == m.DefaultSpecID {
			return s.Fields
		}
	}
	return m.PartitionSpec
}

// fieldType renders primitive types as their name and nested types as compact JSON.
func fieldType(raw json.RawMessage) string {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return name
	}
	return string(raw)
}
