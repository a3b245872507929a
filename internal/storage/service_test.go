package storage_test

import (
	"context"
	"testing"

	"ddl-alterator/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Match(t *testing.T) {
	var useCases = []struct {
		description string
		filter      storage.Filter
		name        string
		expect      bool
	}{
		{"suffix only", storage.Filter{Suffix: ".sql"}, "orders.sql", true},
		{"wrong suffix", storage.Filter{Suffix: ".sql"}, "orders.json", false},
		{"prefix", storage.Filter{Prefix: "ddl_", Suffix: ".sql"}, "ddl_orders.sql", true},
		{"missing prefix", storage.Filter{Prefix: "ddl_", Suffix: ".sql"}, "orders.sql", false},
		{"listed table", storage.Filter{Suffix: ".sql", Tables: []string{"orders"}}, "Orders.sql", true},
		{"unlisted table", storage.Filter{Suffix: ".sql", Tables: []string{"orders"}}, "items.sql", false},
	}
	for _, useCase := range useCases {
		assert.Equal(t, useCase.expect, useCase.filter.Match(useCase.name), useCase.description)
	}
}

func TestService(t *testing.T) {
	ctx := context.Background()
	srv := storage.New(nil)
	base := "mem://localhost/storage_test/ddl"

	for _, name := range []string{"b.sql", "a.sql", "notes.txt"} {
		require.NoError(t, srv.Upload(ctx, base+"/"+name, []byte("CREATE TABLE `db`.`"+name+"` (`a` int)")))
	}
	require.NoError(t, srv.Upload(ctx, "mem://localhost/storage_test/single.sql", []byte("x")))

	ok, err := srv.Exists(ctx, base+"/a.sql")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := srv.Download(ctx, base+"/a.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "a.sql")

	files, err := srv.ListDDL(ctx, []string{base, base + "/a.sql", "mem://localhost/storage_test/single.sql"}, storage.Filter{Suffix: ".sql"})
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, storage.BaseName(f))
	}
	assert.Equal(t, []string{"a.sql", "b.sql", "single.sql"}, names)
	assert.Len(t, files, 3)

	_, err = srv.Download(ctx, base+"/missing.sql")
	assert.Error(t, err)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "orders.sql", storage.BaseName("s3://bucket/ddl/orders.sql"))
	assert.Equal(t, "orders.sql", storage.BaseName("/tmp/ddl/orders.sql"))
}
