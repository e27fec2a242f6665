package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add tenant index", "add_tenant_index"},
		{"Add-Tenant-Index", "add_tenant_index"},
		{"ADD_TENANT_INDEX", "add_tenant_index"},
		{"add__tenant__index", "add_tenant_index"},
		{"Usage Rows 123", "usage_rows_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	t.Run("scaffolds a matching up and down pair", func(t *testing.T) {
		tmpDir := t.TempDir()

		mf, err := CreateMigration(tmpDir, "add tenant index", "Index tenants by status")
		require.NoError(t, err)
		require.NotNil(t, mf)

		// Version is the 14-digit creation timestamp.
		assert.Len(t, mf.Version, 14)
		assert.True(t, strings.HasSuffix(mf.UpPath, ".up.sql"))
		assert.True(t, strings.HasSuffix(mf.DownPath, ".down.sql"))

		upBase := strings.TrimSuffix(filepath.Base(mf.UpPath), ".up.sql")
		downBase := strings.TrimSuffix(filepath.Base(mf.DownPath), ".down.sql")
		assert.Equal(t, upBase, downBase)

		upContent, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(upContent), "add tenant index")
		assert.Contains(t, string(upContent), "Index tenants by status")
		assert.Contains(t, string(upContent), "Write your UP migration SQL here")

		downContent, err := os.ReadFile(mf.DownPath)
		require.NoError(t, err)
		assert.Contains(t, string(downContent), "Rollback")
		assert.Contains(t, string(downContent), "Write your DOWN migration SQL here")
	})

	t.Run("creates the migrations directory when missing", func(t *testing.T) {
		nestedPath := filepath.Join(t.TempDir(), "nested", "migrations")

		mf, err := CreateMigration(nestedPath, "initial schema", "")
		require.NoError(t, err)
		require.NotNil(t, mf)

		info, err := os.Stat(nestedPath)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestListMigrations(t *testing.T) {
	writeFiles := func(t *testing.T, dir string, names ...string) {
		t.Helper()
		for _, name := range names {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- test"), 0644))
		}
	}

	t.Run("lists each pair once, sorted", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeFiles(t, tmpDir,
			"000002_add_usage_rows.up.sql",
			"000002_add_usage_rows.down.sql",
			"000001_create_tenants.up.sql",
			"000001_create_tenants.down.sql",
		)

		migrations, err := ListMigrations(tmpDir)
		require.NoError(t, err)
		assert.Equal(t, []string{"000001_create_tenants", "000002_add_usage_rows"}, migrations)
	})

	t.Run("empty directory", func(t *testing.T) {
		migrations, err := ListMigrations(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, migrations)
	})

	t.Run("missing directory is not an error", func(t *testing.T) {
		migrations, err := ListMigrations("/nonexistent/path/to/migrations")
		require.NoError(t, err)
		assert.Empty(t, migrations)
	})

	t.Run("ignores files that are not migration pairs", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeFiles(t, tmpDir,
			"000001_init.up.sql",
			"000001_init.down.sql",
			"README.md",
			".gitkeep",
		)

		migrations, err := ListMigrations(tmpDir)
		require.NoError(t, err)
		assert.Equal(t, []string{"000001_init"}, migrations)
	})

	t.Run("ignores directories", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeFiles(t, tmpDir, "000001_init.up.sql", "000001_init.down.sql")
		require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "subdir.up.sql"), 0755))

		migrations, err := ListMigrations(tmpDir)
		require.NoError(t, err)
		assert.Len(t, migrations, 1)
	})
}
