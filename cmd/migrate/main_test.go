package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_create_transactions.sql", true, 1, "create_transactions"},
		{"0012_add_index.sql", true, 12, "add_index"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseFilename(tt.filename)
			if ok != tt.valid || version != tt.version || name != tt.name {
				t.Errorf("parseFilename(%q) = %d, %q, %v; want %d, %q, %v",
					tt.filename, version, name, ok, tt.version, tt.name, tt.valid)
			}
		})
	}
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"0002_create_contacts.sql":     "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.contacts` (id STRING);",
		"0001_create_transactions.sql": "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.transactions` (id STRING);",
		"README.md":                    "not a migration",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	migrations, err := readMigrations(dir, "proj", "ledger")
	if err != nil {
		t.Fatalf("readMigrations() error = %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, want 2", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("versions = %d, %d; want 1, 2", migrations[0].Version, migrations[1].Version)
	}
	if !strings.Contains(migrations[0].SQL, "`proj.ledger.transactions`") {
		t.Errorf("placeholders not replaced: %s", migrations[0].SQL)
	}

	again, err := readMigrations(dir, "other", "dataset")
	if err != nil {
		t.Fatal(err)
	}
	if again[0].Checksum != migrations[0].Checksum {
		t.Error("checksum should not depend on project or dataset")
	}
}

func TestReadMigrationsDuplicateVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0001_a.sql", "0001_b.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := readMigrations(dir, "p", "d"); err == nil {
		t.Error("expected duplicate version error")
	}
}

func TestPending(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "a", Checksum: "c1"},
		{Version: 2, Name: "b", Checksum: "c2"},
		{Version: 3, Name: "c", Checksum: "c3"},
	}

	todo, err := pending(migrations, []AppliedMigration{{Version: 1, Checksum: "c1"}, {Version: 2}})
	if err != nil {
		t.Fatalf("pending() error = %v", err)
	}
	if len(todo) != 1 || todo[0].Version != 3 {
		t.Errorf("pending() = %+v, want only version 3", todo)
	}

	_, err = pending(migrations, []AppliedMigration{{Version: 1, Checksum: "edited"}})
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("pending() error = %v, want ErrChecksumMismatch", err)
	}
}

func TestRepositoryMigrations(t *testing.T) {
	migrations, err := readMigrations(filepath.Join("..", "..", "migrations", "bigquery"), "p", "d")
	if err != nil {
		t.Fatalf("readMigrations() error = %v", err)
	}
	want := []string{"create_transactions", "create_contacts", "create_imports", "create_parsing_runs"}
	if len(migrations) != len(want) {
		t.Fatalf("got %d migrations, want %d", len(migrations), len(want))
	}
	for i, mig := range migrations {
		if mig.Version != i+1 || mig.Name != want[i] {
			t.Errorf("migration %d = %04d_%s, want %04d_%s", i, mig.Version, mig.Name, i+1, want[i])
		}
		if strings.Contains(mig.SQL, "{{") {
			t.Errorf("%s has unreplaced placeholders", mig.Filename)
		}
	}
}
