package engine_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"ddl-alterator/internal/catalog"
	"ddl-alterator/internal/engine"
	"ddl-alterator/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"
)

func newStore(t *testing.T) *catalog.SQLStore {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := catalog.NewSQLStore(db, "sqlite", "")
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

// hiveTable registers a parquet table partitioned by dt.
func hiveTable(t *testing.T, store *catalog.SQLStore, name string, pairs ...string) {
	table := &catalog.Table{
		DatabaseName: "sales",
		Name:         name,
		TableType:    catalog.ExternalTable,
		StorageDescriptor: catalog.StorageDescriptor{
			Location:     "s3://bucket/" + name + "/",
			InputFormat:  catalog.ParquetInputFormat,
			OutputFormat: catalog.ParquetOutputFormat,
			SerdeInfo:    catalog.SerDeInfo{SerializationLibrary: catalog.ParquetSerde},
		},
		PartitionKeys: []catalog.Column{{Name: "dt", Type: "string"}},
		Parameters:    map[string]string{"classification": "parquet"},
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		table.StorageDescriptor.Columns = append(table.StorageDescriptor.Columns, catalog.Column{Name: pairs[i], Type: pairs[i+1]})
	}
	_, err := store.PutTable(context.Background(), table)
	require.NoError(t, err)
}

// hiveDDL renders a parquet DDL partitioned by dt; lines are column
// declarations, optionally followed by an annotation comment.
func hiveDDL(name string, lines ...string) string {
	var body []string
	for i, l := range lines {
		decl, comment, _ := strings.Cut(l, " -- ")
		if i < len(lines)-1 {
			decl += ","
		}
		if comment != "" {
			decl += " -- " + comment
		}
		body = append(body, "  "+decl)
	}
	return fmt.Sprintf("CREATE EXTERNAL TABLE `sales`.`%s` (\n%s\n)\nPARTITIONED BY (\n  `dt` string\n)\nSTORED AS PARQUET\n",
		name, strings.Join(body, "\n"))
}

func columnNames(t *testing.T, store *catalog.SQLStore, name string) []string {
	table, err := store.GetTable(context.Background(), "sales", name)
	require.NoError(t, err)
	var out []string
	for _, c := range table.StorageDescriptor.Columns {
		out = append(out, c.Name)
	}
	return out
}

func TestProcess_Hive(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	hiveTable(t, store, "orders", "id", "bigint", "amount", "double")
	hiveTable(t, store, "items", "a", "bigint", "b", "bigint")
	alt := engine.New(store, storage.New(nil), zaptest.NewLogger(t), engine.Options{})

	t.Run("new table", func(t *testing.T) {
		out, err := alt.Process(ctx, engine.File{Name: "fresh.sql", DDL: hiveDDL("fresh", "`id` bigint")})
		require.NoError(t, err)
		assert.Equal(t, engine.StatusNew, out.Status)
		assert.Equal(t, "sales.fresh", out.Table)
	})

	t.Run("identical", func(t *testing.T) {
		out, err := alt.Process(ctx, engine.File{Name: "orders.sql", DDL: hiveDDL("orders", "`id` bigint", "`amount` double")})
		require.NoError(t, err)
		assert.Equal(t, engine.StatusIdentical, out.Status)
	})

	t.Run("incompatible without backfill", func(t *testing.T) {
		out, err := alt.Process(ctx, engine.File{Name: "items.sql", DDL: hiveDDL("items", "`a` bigint", "`b` int")})
		require.NoError(t, err)
		assert.Equal(t, engine.StatusSkipped, out.Status)
		assert.Equal(t, engine.IncompatibleType, out.Reason)
		require.NotNil(t, out.Details)
		assert.Len(t, out.Details.Incompatible, 1)
	})

	t.Run("partial backfill aborts", func(t *testing.T) {
		out, err := alt.Process(ctx, engine.File{Name: "items.sql", DDL: hiveDDL("items",
			"`a` int -- backfilled_from: a_old",
			"`b` int",
		)})
		require.Error(t, err)
		assert.Equal(t, engine.StatusError, out.Status)
		assert.Equal(t, "MissingBackfill", out.Code)
	})

	t.Run("partition mismatch", func(t *testing.T) {
		ddl := strings.Replace(hiveDDL("orders", "`id` bigint", "`amount` double"), "`dt` string", "`region` string", 1)
		out, err := alt.Process(ctx, engine.File{Name: "orders.sql", DDL: ddl})
		require.NoError(t, err)
		assert.Equal(t, engine.PartitionMismatch, out.Reason)
		assert.NotEmpty(t, out.Details.Problems)
	})

	t.Run("update with position", func(t *testing.T) {
		out, err := alt.Process(ctx, engine.File{Name: "orders.sql", DDL: hiveDDL("orders",
			"`id` bigint",
			"`amount` double",
			"`status` string -- after: id",
		)})
		require.NoError(t, err)
		assert.Equal(t, engine.StatusSuccess, out.Status)
		assert.Equal(t, "1", out.PreviousVersion)
		assert.Equal(t, "2", out.CurrentVersion)
		assert.Equal(t, []catalog.Column{{Name: "status", Type: "string"}}, out.Details.Add)
		assert.Equal(t, []catalog.Move{{Name: "status", After: "id"}, {Name: "amount", After: "status"}}, out.Details.Positions)
		assert.Equal(t, []string{"id", "status", "amount"}, columnNames(t, store, "orders"))
	})
}

func TestProcess_Skipped(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	hiveTable(t, store, "orders", "id", "bigint")
	_, err := store.PutTable(ctx, &catalog.Table{
		DatabaseName:      "sales",
		Name:              "view",
		TableType:         "VIRTUAL_VIEW",
		StorageDescriptor: catalog.StorageDescriptor{Columns: []catalog.Column{{Name: "id", Type: "bigint"}}},
	})
	require.NoError(t, err)
	_, err = store.PutTable(ctx, &catalog.Table{
		DatabaseName:      "sales",
		Name:              "events",
		TableType:         catalog.ExternalTable,
		StorageDescriptor: catalog.StorageDescriptor{Columns: []catalog.Column{{Name: "id", Type: "bigint"}}},
		Parameters:        map[string]string{"table_type": "ICEBERG"},
	})
	require.NoError(t, err)
	alt := engine.New(store, storage.New(nil), zaptest.NewLogger(t), engine.Options{})

	var useCases = []struct {
		description string
		ddl         string
		status      engine.Status
		reason      engine.SkipReason
		from        string
	}{
		{
			description: "no qualified name",
			ddl:         "CREATE TABLE orders (`id` bigint)",
			status:      engine.StatusSkipped,
			reason:      engine.FormatError,
		},
		{
			description: "unparsable column",
			ddl:         hiveDDL("orders", "`id` bigint bigint"),
			status:      engine.StatusSkipped,
			reason:      engine.FormatError,
		},
		{
			description: "not a create",
			ddl:         "ALTER TABLE `sales`.`orders` ADD COLUMNS (`x` int)",
			status:      engine.StatusSkipped,
			reason:      engine.NonCreateError,
		},
		{
			description: "managed table",
			ddl:         "CREATE TABLE `sales`.`orders` (\n  `id` bigint\n)\nSTORED AS PARQUET\n",
			status:      engine.StatusSkipped,
			reason:      engine.ValidationError,
			from:        engine.FromDDL,
		},
		{
			description: "unsupported format on existing table",
			ddl:         "CREATE EXTERNAL TABLE `sales`.`orders` (\n  `id` bigint\n)\nSTORED AS ORC\n",
			status:      engine.StatusSkipped,
			reason:      engine.ValidationError,
			from:        engine.FromDDL,
		},
		{
			description: "unsupported format on new table",
			ddl:         "CREATE EXTERNAL TABLE `sales`.`fresh` (\n  `id` bigint\n)\nSTORED AS ORC\n",
			status:      engine.StatusNew,
		},
		{
			description: "catalog table is a view",
			ddl:         hiveDDL("view", "`id` bigint"),
			status:      engine.StatusSkipped,
			reason:      engine.ValidationError,
			from:        engine.FromCatalog,
		},
		{
			description: "hive DDL for an iceberg table",
			ddl:         hiveDDL("events", "`id` bigint"),
			status:      engine.StatusSkipped,
			reason:      engine.ValidationError,
			from:        engine.FromDDL,
		},
	}
	for _, useCase := range useCases {
		out, err := alt.Process(ctx, engine.File{Name: "f.sql", DDL: useCase.ddl})
		require.NoError(t, err, useCase.description)
		assert.Equal(t, useCase.status, out.Status, useCase.description)
		assert.Equal(t, useCase.reason, out.Reason, useCase.description)
		assert.Equal(t, useCase.from, out.From, useCase.description)
	}
}

func TestProcess_HiveTypeAliases(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	hiveTable(t, store, "counts", "n", "int", "total", "bigint", "ratio", "decimal(10,0)")
	alt := engine.New(store, storage.New(nil), zaptest.NewLogger(t), engine.Options{})

	out, err := alt.Process(ctx, engine.File{Name: "counts.sql", DDL: hiveDDL("counts", "`n` integer", "`total` long", "`ratio` decimal")})
	require.NoError(t, err)
	assert.Equal(t, engine.StatusIdentical, out.Status)

	out, err = alt.Process(ctx, engine.File{Name: "counts.sql", DDL: hiveDDL("counts", "`n` bigint", "`total` long", "`ratio` decimal")})
	require.NoError(t, err)
	assert.Equal(t, engine.StatusSuccess, out.Status)
	assert.Equal(t, []catalog.Column{{Name: "n", Type: "bigint"}}, out.Details.Add)
}

func TestProcess_Validate(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	hiveTable(t, store, "orders", "id", "bigint")
	alt := engine.New(store, storage.New(nil), zaptest.NewLogger(t), engine.Options{Validate: true})

	out, err := alt.Process(ctx, engine.File{Name: "orders.sql", DDL: hiveDDL("orders", "`id` bigint", "`note` string")})
	require.NoError(t, err)
	assert.Equal(t, engine.StatusSuccess, out.Status)
	assert.Equal(t, "1", out.PreviousVersion)
	assert.Equal(t, "1", out.CurrentVersion)
	assert.Equal(t, []string{"id"}, columnNames(t, store, "orders"))
}

const migrationDDL = "CREATE TABLE `sales`.`orders` (\n" +
	"  `id` bigint,\n" +
	"  %s,\n" +
	"  %s)\n" +
	"USING iceberg\n" +
	"PARTITIONED BY (`dt`)\n" +
	"TBLPROPERTIES (\n" +
	"  'format-version'='2'\n" +
	")\n"

func TestProcess_Migration(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	hiveTable(t, store, "orders", "id", "bigint", "amount", "double")
	alt := engine.New(store, storage.New(nil), zaptest.NewLogger(t), engine.Options{})

	out, err := alt.Process(ctx, engine.File{Name: "orders.sql", DDL: fmt.Sprintf(migrationDDL, "`amount` double", "`dt` string")})
	require.NoError(t, err)
	assert.Equal(t, engine.StatusIdentical, out.Status)
	require.NotNil(t, out.Result)
	assert.True(t, out.Result.Migration)
	assert.Equal(t, map[string]string{"format-version": "2"}, out.Result.Properties.New)

	out, err = alt.Process(ctx, engine.File{Name: "orders.sql", DDL: fmt.Sprintf(migrationDDL, "`dt` string", "`amount` double")})
	require.NoError(t, err)
	assert.Equal(t, engine.StatusSkipped, out.Status)
	assert.Equal(t, engine.SequenceMismatch, out.Reason)
}

const icebergMetadata = `{
  "format-version": 2,
  "current-schema-id": 0,
  "schemas": [{"schema-id": 0, "fields": [
    {"id": 1, "name": "id", "required": false, "type": "long"},
    {"id": 2, "name": "name", "required": false, "type": "string"},
    {"id": 3, "name": "region", "required": false, "type": "string"}
  ]}],
  "default-spec-id": 0,
  "partition-specs": [{"spec-id": 0, "fields": [{"name": "region", "transform": "identity", "source-id": 3, "field-id": 1000}]}],
  "properties": {"write.format.default": "parquet"}
}`

func TestProcess_Iceberg(t *testing.T) {
	ctx := context.Background()
	fs := storage.New(nil)
	metadataURL := "mem://localhost/engine_test/events/metadata/00001.metadata.json"
	require.NoError(t, fs.Upload(ctx, metadataURL, []byte(icebergMetadata)))

	store := newStore(t)
	_, err := store.PutTable(ctx, &catalog.Table{
		DatabaseName: "analytics",
		Name:         "events",
		TableType:    catalog.ExternalTable,
		StorageDescriptor: catalog.StorageDescriptor{Columns: []catalog.Column{
			{Name: "id", Type: "bigint"}, {Name: "name", Type: "string"}, {Name: "region", Type: "string"},
		}},
		Parameters: map[string]string{"table_type": "ICEBERG", "metadata_location": metadataURL},
	})
	require.NoError(t, err)
	alt := engine.New(store, fs, zaptest.NewLogger(t), engine.Options{})

	ddl := "CREATE TABLE `analytics`.`events` (\n" +
		"  `id` bigint,\n" +
		"  `name` varchar(64),\n" +
		"  `region` string,\n" +
		"  `email` string)\n" +
		"USING iceberg\n" +
		"PARTITIONED BY (`region`)\n"
	out, err := alt.Process(ctx, engine.File{Name: "events.sql", DDL: ddl})
	require.NoError(t, err)
	assert.Equal(t, engine.StatusSuccess, out.Status)
	assert.Equal(t, []catalog.Column{{Name: "email", Type: "string"}}, out.Details.Add)
	assert.Empty(t, out.Details.Compatible)
	assert.Equal(t, "spark_catalog.analytics.events", out.Result.Table)

	table, err := store.GetTable(ctx, "analytics", "events")
	require.NoError(t, err)
	assert.Len(t, table.StorageDescriptor.Columns, 4)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	fs := storage.New(nil)
	base := "mem://localhost/engine_test/run"
	files := map[string]string{
		"a_new.sql":       hiveDDL("fresh", "`id` bigint"),
		"b_identical.sql": hiveDDL("orders", "`id` bigint"),
		"c_update.sql":    hiveDDL("items", "`a` bigint", "`c` string"),
		"d_skipped.sql":   "DROP TABLE `sales`.`orders`",
	}
	var urls []string
	for _, name := range []string{"a_new.sql", "b_identical.sql", "c_update.sql", "d_skipped.sql"} {
		require.NoError(t, fs.Upload(ctx, base+"/"+name, []byte(files[name])))
		urls = append(urls, base+"/"+name)
	}
	urls = append(urls, base+"/missing.sql")

	store := newStore(t)
	hiveTable(t, store, "orders", "id", "bigint")
	hiveTable(t, store, "items", "a", "bigint")
	alt := engine.New(store, fs, zaptest.NewLogger(t), engine.Options{})

	progress := 0
	summary, err := alt.Run(ctx, urls, func() { progress++ })
	require.NoError(t, err)
	assert.Equal(t, 5, progress)
	assert.Equal(t, engine.Stats{Analyzed: 5, Updates: 1, Skipped: 1, New: 1, Errored: 1, Identical: 1}, summary.Stats)
	assert.Equal(t, "ReadFailed", summary.Errored[0].Code)
	assert.Equal(t, engine.NonCreateError, summary.Skipped[0].Reason)
}

func TestRun_Abort(t *testing.T) {
	ctx := context.Background()
	fs := storage.New(nil)
	base := "mem://localhost/engine_test/abort"
	require.NoError(t, fs.Upload(ctx, base+"/a.sql", []byte(hiveDDL("items", "`a` int -- backfilled_from: a_old", "`b` int"))))
	require.NoError(t, fs.Upload(ctx, base+"/b.sql", []byte(hiveDDL("fresh", "`id` bigint"))))

	store := newStore(t)
	hiveTable(t, store, "items", "a", "bigint", "b", "bigint")
	alt := engine.New(store, fs, zaptest.NewLogger(t), engine.Options{})

	summary, err := alt.Run(ctx, []string{base + "/a.sql", base + "/b.sql"}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, summary.Stats.Analyzed)
	assert.Equal(t, 1, summary.Stats.Errored)
	assert.Equal(t, []string{"a", "b"}, columnNames(t, store, "items"))
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	hiveTable(t, store, "orders_v2", "id", "bigint", "amount", "double", "status", "string")
	hiveTable(t, store, "orders", "id", "int", "amount", "double")
	alt := engine.New(store, storage.New(nil), zaptest.NewLogger(t), engine.Options{})

	src, err := engine.ParseTableRef("sales.orders_v2")
	require.NoError(t, err)
	tgt, err := engine.ParseTableRef("sales.orders")
	require.NoError(t, err)

	out, err := alt.Sync(ctx, src, tgt, true)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusSuccess, out.Status)
	assert.Equal(t, []catalog.Column{{Name: "id", Type: "bigint"}, {Name: "status", Type: "string"}}, out.Details.Add)
	assert.Equal(t, []string{"id", "amount", "status"}, columnNames(t, store, "orders"))

	out, err = alt.Sync(ctx, src, tgt, true)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusIdentical, out.Status)

	_, err = alt.Sync(ctx, engine.TableRef{Database: "sales", Name: "ghost"}, tgt, true)
	assert.True(t, errors.Is(err, catalog.ErrTableNotFound))

	_, err = engine.ParseTableRef("orders")
	assert.Error(t, err)
}

func TestSync_PartitionCheck(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	hiveTable(t, store, "orders", "id", "bigint")
	_, err := store.PutTable(ctx, &catalog.Table{
		DatabaseName: "sales",
		Name:         "orders_by_region",
		TableType:    catalog.ExternalTable,
		StorageDescriptor: catalog.StorageDescriptor{
			Columns:      []catalog.Column{{Name: "id", Type: "bigint"}, {Name: "extra", Type: "string"}},
			InputFormat:  catalog.ParquetInputFormat,
			OutputFormat: catalog.ParquetOutputFormat,
			SerdeInfo:    catalog.SerDeInfo{SerializationLibrary: catalog.ParquetSerde},
		},
		PartitionKeys: []catalog.Column{{Name: "region", Type: "string"}},
	})
	require.NoError(t, err)
	alt := engine.New(store, storage.New(nil), zaptest.NewLogger(t), engine.Options{Validate: true})

	src := engine.TableRef{Database: "sales", Name: "orders_by_region"}
	tgt := engine.TableRef{Database: "sales", Name: "orders"}

	out, err := alt.Sync(ctx, src, tgt, true)
	require.NoError(t, err)
	assert.Equal(t, engine.PartitionMismatch, out.Reason)

	out, err = alt.Sync(ctx, src, tgt, false)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusSuccess, out.Status)
	assert.Equal(t, out.PreviousVersion, out.CurrentVersion)
}
