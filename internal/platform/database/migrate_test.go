package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/migrations"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_add_index.up.sql":      {Data: []byte("CREATE INDEX b ON t (b);")},
		"000002_add_index.down.sql":    {Data: []byte("DROP INDEX b;")},
		"000001_create_table.up.sql":   {Data: []byte("CREATE TABLE t (b INT);")},
		"000010_late.up.sql":           {Data: []byte("SELECT 1;")},
		"README.md":                    {Data: []byte("notes")},
		"000001_create_table.down.sql": {Data: []byte("DROP TABLE t;")},
	}

	got, err := LoadMigrations(fsys)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, []int64{1, 2, 10}, []int64{got[0].Version, got[1].Version, got[2].Version})
	assert.Equal(t, "create_table", got[0].Name)
	assert.Equal(t, "CREATE INDEX b ON t (b);", got[1].SQL)
}

func TestLoadMigrations_Rejects(t *testing.T) {
	tests := map[string]fstest.MapFS{
		"no description":    {"000001.up.sql": {}},
		"non-numeric":       {"first_table.up.sql": {}},
		"zero version":      {"000000_init.up.sql": {}},
		"duplicate version": {"000001_a.up.sql": {}, "1_b.up.sql": {}},
	}
	for name, fsys := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadMigrations(fsys)
			assert.Error(t, err)
		})
	}
}

func TestLoadMigrations_Embedded(t *testing.T) {
	got, err := LoadMigrations(migrations.FS)
	require.NoError(t, err)

	require.NotEmpty(t, got)
	for i, m := range got {
		assert.EqualValues(t, i+1, m.Version, "migrations are numbered without gaps")
		assert.NotEmpty(t, m.SQL)
	}
}
