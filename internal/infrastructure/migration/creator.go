package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// MigrationFile describes a freshly scaffolded up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Timestamp   string
	UpPath      string
	DownPath    string
}

// CreateMigration scaffolds a timestamped up/down migration pair
func CreateMigration(migrationsDir, name, description string) (*MigrationFile, error) {
	if err := os.MkdirAll(migrationsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	// The version timestamp keeps files lexicographically ordered.
	now := time.Now()
	mf := &MigrationFile{
		Version:     now.Format("20060102150405"),
		Name:        name,
		Description: description,
		Timestamp:   now.Format(time.RFC3339),
	}

	baseName := mf.Version + "_" + sanitizeName(name)
	mf.UpPath = filepath.Join(migrationsDir, baseName+".up.sql")
	mf.DownPath = filepath.Join(migrationsDir, baseName+".down.sql")

	upStub := fmt.Sprintf("-- Migration: %s\n-- Created: %s\n-- Description: %s\n\n-- Write your UP migration SQL here\n\n",
		mf.Name, mf.Timestamp, mf.Description)
	downStub := fmt.Sprintf("-- Migration: %s (Rollback)\n-- Created: %s\n-- Description: Rollback for %s\n\n-- Write your DOWN migration SQL here\n\n",
		mf.Name, mf.Timestamp, mf.Description)

	if err := os.WriteFile(mf.UpPath, []byte(upStub), 0644); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := os.WriteFile(mf.DownPath, []byte(downStub), 0644); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}

	return mf, nil
}

// sanitizeName converts a migration name into a safe snake_case file name
func sanitizeName(name string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(name) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ' || c == '-' || c == '_':
			s := b.String()
			if len(s) > 0 && !strings.HasSuffix(s, "_") {
				b.WriteByte('_')
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// ListMigrations returns the base names of the migration pairs in a directory
func ListMigrations(migrationsDir string) ([]string, error) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	migrations := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		migrations = append(migrations, strings.TrimSuffix(entry.Name(), ".up.sql"))
	}
	sort.Strings(migrations)

	return migrations, nil
}
