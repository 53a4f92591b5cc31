package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const failedToInitDB = "Failed to initialize database: %v"

const select1 = `SELECT 1`

func TestSetLogger(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.InfoLevel)
	SetLogger(logger)

	// This test mainly ensures the function doesn't panic
}

func TestNewSQLite(t *testing.T) {
	db := NewSQLite(InMemory)

	if db == nil {
		t.Fatal("Expected non-nil SQLite instance")
	}

	if db.conn != nil {
		t.Error("Expected connection to be nil initially")
	}
}

func tableColumns(t *testing.T, db *SQLite, table string) map[string]bool {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("Failed to get %s table info: %v", table, err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			t.Errorf("Failed to scan column info: %v", err)
			continue
		}
		columns[name] = true
	}
	return columns
}

func TestSQLiteBasicOperations(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.ErrorLevel)
	SetLogger(logger)

	path := filepath.Join(t.TempDir(), "nested", "history.db")
	db := NewSQLite(path)
	defer db.Close()

	t.Run("InitDB creates the file and tables", func(t *testing.T) {
		if err := db.InitDB(); err != nil {
			t.Fatalf(failedToInitDB, err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected database file to exist: %v", err)
		}
		if err := db.Get().Ping(); err != nil {
			t.Errorf("Failed to ping database: %v", err)
		}
	})

	t.Run("Verify table schemas", func(t *testing.T) {
		expected := map[string][]string{
			"publications": {"id", "draft_id", "action", "status", "url", "title", "content", "content_hash", "uploads", "created_at"},
			"uploads":      {"id", "draft_id", "filename", "url", "content_hash", "created_at"},
		}

		for table, cols := range expected {
			columns := tableColumns(t, db, table)
			for _, col := range cols {
				if !columns[col] {
					t.Errorf("Expected %s table to have column %s", table, col)
				}
			}
		}
	})

	t.Run("InitDB is idempotent", func(t *testing.T) {
		again := NewSQLite(path)
		defer again.Close()
		if err := again.InitDB(); err != nil {
			t.Fatalf(failedToInitDB, err)
		}
	})
}

func TestSQLiteQueryAndExec(t *testing.T) {
	db := NewSQLite(InMemory)
	defer db.Close()

	if err := db.InitDB(); err != nil {
		t.Fatalf(failedToInitDB, err)
	}

	result, err := db.Exec(
		`INSERT INTO publications (draft_id, action, status, url, title) VALUES (?, ?, ?, ?, ?)`,
		"draft-1", "create", "server-draft", "https://example.com/1", "Hello",
	)
	if err != nil {
		t.Fatalf("Failed to insert publication: %v", err)
	}
	if n, _ := result.RowsAffected(); n != 1 {
		t.Errorf("Expected 1 row affected, got %d", n)
	}

	rows, err := db.Query(`SELECT draft_id, url FROM publications WHERE draft_id = ?`, "draft-1")
	if err != nil {
		t.Fatalf("Failed to query publication: %v", err)
	}
	defer rows.Close()

	if !rows.Next() {
		t.Fatal("Expected to find inserted publication")
	}
	var draftID, url string
	if err := rows.Scan(&draftID, &url); err != nil {
		t.Fatalf("Failed to scan publication: %v", err)
	}
	if draftID != "draft-1" || url != "https://example.com/1" {
		t.Errorf("Unexpected row (%s, %s)", draftID, url)
	}
}

func TestSQLiteErrorHandling(t *testing.T) {
	t.Run("Query on uninitialized database", func(t *testing.T) {
		db := NewSQLite(InMemory)
		defer db.Close()

		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic when querying uninitialized database")
			}
		}()

		db.Query(select1)
	})

	t.Run("Invalid SQL exec", func(t *testing.T) {
		db := NewSQLite(InMemory)
		defer db.Close()

		if err := db.InitDB(); err != nil {
			t.Fatalf(failedToInitDB, err)
		}

		if _, err := db.Exec("INVALID SQL SYNTAX"); err == nil {
			t.Error("Expected error for invalid SQL")
		}
	})

	t.Run("Close without init", func(t *testing.T) {
		db := NewSQLite(InMemory)
		if err := db.Close(); err != nil {
			t.Errorf("Expected nil error closing unopened database, got %v", err)
		}
	})
}
