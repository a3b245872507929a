package schema

import (
	"errors"

	"ddl-alterator/internal/catalog"
)

var ErrNoCatalogColumns = errors.New("no columns found in catalog descriptor")

// FromDescriptor synthesizes the Iceberg shape for a table that is still
// registered in a non-Iceberg format and is about to be migrated: columns and
// partition keys form one column list with ids from 1, partition keys get
// field ids from 1000, and properties are empty.
func FromDescriptor(t *catalog.Table) (Snapshot, error) {
	all := append(append([]catalog.Column{}, t.StorageDescriptor.Columns...), t.PartitionKeys...)
	if len(all) == 0 {
		return Snapshot{}, ErrNoCatalogColumns
	}
	snap := Snapshot{Properties: Properties{}, MigrationSource: true}
	for i, c := range all {
		snap.Columns = append(snap.Columns, Column{ID: i + 1, Name: c.Name, Type: CleanType(c.Type)})
	}
	for i, k := range t.PartitionKeys {
		snap.Partitions = append(snap.Partitions, PartitionColumn{
			FieldID: PartitionFieldIDBase + i,
			Name:    k.Name,
			Type:    CleanType(k.Type),
		})
	}
	return snap, nil
}

// FromHiveDescriptor builds the shape of a plain Hive table: data columns,
// partition keys and table parameters, each kept separate.
func FromHiveDescriptor(t *catalog.Table) (Snapshot, error) {
	if len(t.StorageDescriptor.Columns) == 0 {
		return Snapshot{}, ErrNoCatalogColumns
	}
	snap := Snapshot{Properties: Properties{}}
	for i, c := range t.StorageDescriptor.Columns {
		snap.Columns = append(snap.Columns, Column{ID: i + 1, Name: c.Name, Type: CleanType(c.Type)})
	}
	for i, k := range t.PartitionKeys {
		snap.Partitions = append(snap.Partitions, PartitionColumn{
			FieldID: PartitionFieldIDBase + i,
			Name:    k.Name,
			Type:    CleanType(k.Type),
		})
	}
	for k, v := range t.Parameters {
		snap.Properties[k] = v
	}
	return snap, nil
}
