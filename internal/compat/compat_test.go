package compat_test

import (
	"testing"

	"ddl-alterator/internal/compat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompatible(t *testing.T) {
	var useCases = []struct {
		description string
		old, new    string
		engine      compat.Engine
		expect      bool
	}{
		{"int widens to bigint", "int", "bigint", compat.Athena, true},
		{"bigint does not narrow to int", "bigint", "int", compat.Athena, false},
		{"long alias", "int", "long", compat.Iceberg, true},
		{"integer alias", "integer", "bigint", compat.Iceberg, true},
		{"real alias", "real", "double", compat.Iceberg, true},
		{"tinyint chain", "tinyint", "smallint", compat.Iceberg, true},
		{"float to double", "float", "double", compat.Athena, true},
		{"double to float", "double", "float", compat.Athena, false},
		{"string to int on athena", "string", "int", compat.Athena, true},
		{"string to int on iceberg", "string", "int", compat.Iceberg, false},
		{"byte to int on athena", "byte", "int", compat.Athena, true},
		{"byte on iceberg", "byte", "int", compat.Iceberg, false},
		{"decimal precision grows", "decimal(10,2)", "decimal(12,2)", compat.Iceberg, true},
		{"decimal scale changes", "decimal(10,2)", "decimal(10,3)", compat.Iceberg, false},
		{"decimal precision shrinks", "decimal(10,2)", "decimal(8,2)", compat.Athena, false},
		{"bare decimal is 10,0", "decimal", "decimal(12,0)", compat.Athena, true},
		{"varchar grows", "varchar(10)", "varchar(20)", compat.Athena, true},
		{"varchar shrinks", "varchar(20)", "varchar(10)", compat.Athena, false},
		{"varchar to unbounded", "varchar(20)", "varchar", compat.Athena, true},
		{"identical", "date", "date", compat.Iceberg, true},
		{"unrelated", "date", "timestamp", compat.Athena, false},
		{"case insensitive", "INT", "BigInt", compat.Athena, true},
	}
	for _, useCase := range useCases {
		actual, err := compat.Compatible(useCase.old, useCase.new, useCase.engine)
		require.NoError(t, err, useCase.description)
		assert.Equal(t, useCase.expect, actual, useCase.description)
	}
}

func TestCompatible_UnknownEngine(t *testing.T) {
	_, err := compat.Compatible("int", "bigint", compat.Engine("presto"))
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	changes := []compat.TypeChange{
		{Name: "a", OldType: "int", NewType: "bigint"},
		{Name: "b", OldType: "bigint", NewType: "int"},
		{Name: "c", OldType: "string", NewType: "int", BackfilledFrom: "c_old"},
	}
	all, compatible, incompatible, err := compat.Classify(changes, compat.Iceberg)
	require.NoError(t, err)

	assert.False(t, all)
	assert.Equal(t, []compat.TypeChange{changes[0]}, compatible)
	assert.Equal(t, []compat.TypeChange{changes[1], changes[2]}, incompatible)

	all, _, incompatible, err = compat.Classify(changes[:1], compat.Iceberg)
	require.NoError(t, err)
	assert.True(t, all)
	assert.Empty(t, incompatible)
}

func TestParseEngine(t *testing.T) {
	e, err := compat.ParseEngine("ICEBERG")
	require.NoError(t, err)
	assert.Equal(t, compat.Iceberg, e)

	e, err = compat.ParseEngine("")
	require.NoError(t, err)
	assert.Equal(t, compat.Athena, e)

	_, err = compat.ParseEngine("hive")
	assert.Error(t, err)
}
