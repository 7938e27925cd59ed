package postgres

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgxURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/ledger":   "pgx5://u:p@db:5432/ledger",
		"postgresql://u:p@db:5432/ledger": "pgx5://u:p@db:5432/ledger",
		"pgx5://db/ledger":                "pgx5://db/ledger",
	}

	for in, want := range tests {
		assert.Equal(t, want, pgxURL(in), in)
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
