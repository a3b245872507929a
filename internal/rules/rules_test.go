package rules_test

import (
	"testing"

	"ddl-alterator/internal/catalog"
	"ddl-alterator/internal/rules"
	"ddl-alterator/internal/schema"

	"github.com/stretchr/testify/assert"
)

const parquetDDL = "CREATE EXTERNAL TABLE `db`.`t` (`a` int)\n" +
	"ROW FORMAT SERDE '" + catalog.ParquetSerde + "'\n" +
	"STORED AS INPUTFORMAT '" + catalog.ParquetInputFormat + "'\n" +
	"OUTPUTFORMAT '" + catalog.ParquetOutputFormat + "'\n"

func TestRun_DDL(t *testing.T) {
	var useCases = []struct {
		description string
		text        string
		expect      []string
	}{
		{description: "external parquet", text: parquetDDL},
		{description: "stored as parquet", text: "CREATE EXTERNAL TABLE `db`.`t` (`a` int) STORED AS PARQUET"},
		{description: "iceberg", text: "CREATE TABLE `db`.`t` (`a` int) USING iceberg"},
		{description: "iceberg table property", text: "CREATE TABLE `db`.`t` (`a` int) TBLPROPERTIES ('table_type'='ICEBERG')"},
		{description: "managed parquet", text: "CREATE TABLE `db`.`t` (`a` int) STORED AS PARQUET", expect: []string{rules.ExternalTable}},
		{description: "external orc", text: "CREATE EXTERNAL TABLE `db`.`t` (`a` int) STORED AS ORC", expect: []string{rules.FileFormat}},
		{description: "managed text", text: "CREATE TABLE `db`.`t` (`a` int) STORED AS TEXTFILE", expect: []string{rules.ExternalTable, rules.FileFormat}},
	}
	for _, useCase := range useCases {
		var actual []string
		for _, f := range rules.Run(rules.DDLText(useCase.text), rules.Default) {
			actual = append(actual, f.Rule)
		}
		assert.Equal(t, useCase.expect, actual, useCase.description)
	}
}

func TestRun_Descriptor(t *testing.T) {
	parquet := &catalog.Table{
		TableType: catalog.ExternalTable,
		StorageDescriptor: catalog.StorageDescriptor{
			InputFormat:  catalog.ParquetInputFormat,
			OutputFormat: catalog.ParquetOutputFormat,
			SerdeInfo:    catalog.SerDeInfo{SerializationLibrary: catalog.ParquetSerde},
		},
	}
	assert.Empty(t, rules.Run(rules.Descriptor(parquet), rules.Default))

	iceberg := &catalog.Table{TableType: catalog.ExternalTable, Parameters: map[string]string{"table_type": "iceberg"}}
	assert.Empty(t, rules.Run(rules.Descriptor(iceberg), rules.Default))

	view := &catalog.Table{TableType: "VIRTUAL_VIEW"}
	failures := rules.Run(rules.Descriptor(view), rules.Default)
	if assert.Len(t, failures, 2) {
		assert.Equal(t, rules.ExternalTable, failures[0].Rule)
		assert.Contains(t, failures[0].Message, "VIRTUAL_VIEW")
		assert.Equal(t, rules.FileFormat, failures[1].Rule)
	}
}

func TestRun_CustomBook(t *testing.T) {
	book := []rules.Rule{{Name: "NEVER", Check: func(rules.Target) (bool, string) { return false, "always fails" }}}
	assert.Equal(t, []rules.Failure{{Rule: "NEVER", Message: "always fails"}}, rules.Run(rules.DDLText(""), book))
}

func TestCheckPartitions(t *testing.T) {
	cat := []schema.PartitionColumn{{Name: "dt", Type: "string"}, {Name: "region", Type: "string"}}

	assert.Empty(t, rules.CheckPartitions([]schema.PartitionColumn{{Name: "DT", Type: "STRING"}, {Name: "region"}}, cat))
	assert.Len(t, rules.CheckPartitions([]schema.PartitionColumn{{Name: "dt", Type: "string"}}, cat), 1)
	assert.Len(t, rules.CheckPartitions([]schema.PartitionColumn{{Name: "region"}, {Name: "dt"}}, cat), 2)
	assert.Equal(t,
		[]string{"partition dt type differs: DDL int, catalog string"},
		rules.CheckPartitions([]schema.PartitionColumn{{Name: "dt", Type: "int"}, {Name: "region"}}, cat))
}
