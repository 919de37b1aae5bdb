package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMigrationFiles_OrderedUpOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"002_b.up.sql",
		"001_a.up.sql",
		"001_a.down.sql",
		"README.md",
		"010_c.up.sql",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "999_dir.up.sql"), 0o700); err != nil {
		t.Fatal(err)
	}

	files, err := migrationFiles(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"001_a.up.sql", "002_b.up.sql", "010_c.up.sql"}
	if len(files) != len(want) {
		t.Fatalf("got %v, want %v", files, want)
	}
	for i, f := range files {
		if filepath.Base(f) != want[i] {
			t.Errorf("file %d: got %s, want %s", i, filepath.Base(f), want[i])
		}
	}
}

func TestMigrationFiles_MissingDir(t *testing.T) {
	if _, err := migrationFiles(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestMigrationFiles_Repository(t *testing.T) {
	files, err := migrationFiles("../../migrations")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("expected the repository migrations to be found")
	}
}
