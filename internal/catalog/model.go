package catalog

import "strings"

const (
	ExternalTable = "EXTERNAL_TABLE"
	IcebergType   = "ICEBERG"

	ParquetSerde        = "org.apache.hadoop.hive.ql.io.parquet.serde.ParquetHiveSerDe"
	ParquetInputFormat  = "org.apache.hadoop.hive.ql.io.parquet.MapredParquetInputFormat"
	ParquetOutputFormat = "org.apache.hadoop.hive.ql.io.parquet.MapredParquetOutputFormat"
)

// Column is a catalog column entry.
type Column struct {
	Name    string `json:"Name"`
	Type    string `json:"Type"`
	Comment string `json:"Comment,omitempty"`
}

type SerDeInfo struct {
	SerializationLibrary string            `json:"SerializationLibrary,omitempty"`
	Parameters           map[string]string `json:"Parameters,omitempty"`
}

type StorageDescriptor struct {
	Columns      []Column  `json:"Columns"`
	Location     string    `json:"Location,omitempty"`
	InputFormat  string    `json:"InputFormat,omitempty"`
	OutputFormat string    `json:"OutputFormat,omitempty"`
	SerdeInfo    SerDeInfo `json:"SerdeInfo"`
}

// Table is the catalog's descriptor of a table.
type Table struct {
	DatabaseName      string            `json:"DatabaseName"`
	Name              string            `json:"Name"`
	TableType         string            `json:"TableType,omitempty"`
	StorageDescriptor StorageDescriptor `json:"StorageDescriptor"`
	PartitionKeys     []Column          `json:"PartitionKeys,omitempty"`
	Parameters        map[string]string `json:"Parameters,omitempty"`
	VersionID         string            `json:"VersionId,omitempty"`
}

// QualifiedName returns db.table.
func (t *Table) QualifiedName() string {
	return t.DatabaseName + "." + t.Name
}

// MetadataLocation returns the Iceberg metadata document location, if any.
func (t *Table) MetadataLocation() (string, bool) {
	loc, ok := t.Parameters["metadata_location"]
	return loc, ok && loc != ""
}

// IsIceberg reports whether the catalog registers the table as an Iceberg table.
func (t *Table) IsIceberg() bool {
	return strings.EqualFold(t.Parameters["table_type"], IcebergType)
}

// IsPartitionKey reports whether name is one of the table's partition keys.
func (t *Table) IsPartitionKey(name string) bool {
	for _, k := range t.PartitionKeys {
		if strings.EqualFold(k.Name, name) {
			return true
		}
	}
	return false
}

// Rename changes a column name in place.
type Rename struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// Move places a column after another, or first.
type Move struct {
	Name  string `json:"name"`
	After string `json:"after,omitempty"`
	First bool   `json:"first,omitempty"`
}

// UpdateRequest describes a column level schema change.
type UpdateRequest struct {
	Add     []Column `json:"add,omitempty"`
	Delete  []Column `json:"delete,omitempty"`
	Renames []Rename `json:"rename,omitempty"`
	Moves   []Move   `json:"positions,omitempty"`
}

// Empty reports whether the request changes nothing.
func (r UpdateRequest) Empty() bool {
	return len(r.Add) == 0 && len(r.Delete) == 0 && len(r.Renames) == 0 && len(r.Moves) == 0
}
