package migrate

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

func TestEmbeddedMigrationsValidate(t *testing.T) {
	if err := ValidateEmbedded(); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
}

func TestValidateRejectsDialectDrift(t *testing.T) {
	body := []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")
	fsys := fstest.MapFS{
		"postgres/20260301120000_create_documents.sql": {Data: body},
		"postgres/20260302120000_add_index.sql":        {Data: body},
		"sqlite/20260301120000_create_documents.sql":   {Data: body},
	}
	if err := Validate(fsys); err == nil {
		t.Fatal("expected mismatch between dialects")
	}

	fsys["sqlite/20260302120000_add_index.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}
	if err := Validate(fsys); err == nil || !strings.Contains(err.Error(), "goose Up") {
		t.Fatalf("expected missing annotation error, got %v", err)
	}
}

func TestCreatePairWritesEveryDialect(t *testing.T) {
	root := t.TempDir()
	paths, err := CreatePair(root, "Add Visa Fee Index!")
	if err != nil {
		t.Fatalf("create pair: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected two files, got %v", paths)
	}
	if filepath.Base(paths[0]) != filepath.Base(paths[1]) {
		t.Fatalf("expected matching names, got %v", paths)
	}
	if !strings.HasSuffix(paths[0], "_add_visa_fee_index.sql") {
		t.Fatalf("unexpected file name %s", paths[0])
	}
	if err := Validate(os.DirFS(root)); err != nil {
		t.Fatalf("created pair should validate: %v", err)
	}
	if _, err := CreatePair(root, "!!!"); err == nil {
		t.Fatal("expected error for empty sanitized name")
	}
}

func TestDocumentsMigrationContainsSchema(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "postgres", "*_create_documents.sql"))
	if err != nil || len(matches) == 0 {
		t.Fatalf("no documents migration found: %v", err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS documents",
		"fields JSONB NOT NULL",
		"CREATE INDEX IF NOT EXISTS idx_documents_collection_created_at",
		"DROP TABLE IF EXISTS documents",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestDialectRejectsUnknownDriver(t *testing.T) {
	if _, _, err := dialectFor("mysql"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestRunAppliesSQLiteMigrations(t *testing.T) {
	sqlDB, err := sql.Open("sqlite3", "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := Run(context.Background(), sqlDB, "sqlite", "up"); err != nil {
		t.Fatalf("goose up: %v", err)
	}
	for _, table := range []string{"documents", "orphaned_media"} {
		var name string
		row := sqlDB.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table)
		if err := row.Scan(&name); err != nil {
			t.Fatalf("expected table %s: %v", table, err)
		}
	}
}
