package persistence

import (
	"strings"
	"testing"
)

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no migrations embedded")
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".sql") {
			t.Errorf("unexpected migration file %s", name)
		}
		content, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			t.Fatalf("ReadFile %s: %v", name, err)
		}
		if len(content) == 0 {
			t.Errorf("migration %s is empty", name)
		}
	}

	first, err := migrationFiles.ReadFile("migrations/" + entries[0].Name())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(first), "CREATE TABLE IF NOT EXISTS subscribers") {
		t.Error("first migration does not create the subscribers table")
	}
}
