package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kalambet/collegeai/internal/document"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps documents and the turn log in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) collegeai.db in dataDir and runs pending
// migrations. Pass ":memory:" for an in-memory database (used by tests).
func OpenSQLite(dataDir string) (*SQLiteStore, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "collegeai.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migrations that haven't been run yet.
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *SQLiteStore) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Documents ---

// Load implements DocumentStore. A document whose body fails to decode makes
// the whole store ErrMalformed.
func (s *SQLiteStore) Load(store string) (map[string]document.Document, error) {
	var name string
	err := s.db.QueryRow("SELECT name FROM stores WHERE name = ?", store).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up store %s: %w", store, err)
	}

	rows, err := s.db.Query("SELECT client_id, body FROM documents WHERE store = ?", store)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", store, err)
	}
	defer rows.Close()

	out := map[string]document.Document{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		var doc document.Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("%w: %s/%s: %v", ErrMalformed, store, id, err)
		}
		out[id] = doc
	}
	return out, rows.Err()
}

// Save implements DocumentStore, replacing the store's contents in one
// transaction.
func (s *SQLiteStore) Save(store string, docs map[string]document.Document) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.Exec(
		`INSERT INTO stores (name, updated_at) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET updated_at = excluded.updated_at`,
		store, now,
	); err != nil {
		return fmt.Errorf("upserting store %s: %w", store, err)
	}
	if _, err := tx.Exec("DELETE FROM documents WHERE store = ?", store); err != nil {
		return fmt.Errorf("clearing %s: %w", store, err)
	}
	for id, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encoding %s/%s: %w", store, id, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO documents (store, client_id, body, updated_at) VALUES (?, ?, ?, ?)",
			store, id, string(body), now,
		); err != nil {
			return fmt.Errorf("writing %s/%s: %w", store, id, err)
		}
	}
	return tx.Commit()
}

// --- Turn log ---

// TurnRecord is one completed agent turn.
type TurnRecord struct {
	ClientID   string
	Agent      string
	Action     string
	QuestionID string
	Note       string
	CreatedAt  time.Time
}

// TurnLog is implemented by stores that keep an audit trail of turns.
type TurnLog interface {
	RecordTurn(r TurnRecord) error
	RecentTurns(clientID string, limit int) ([]TurnRecord, error)
}

// RecordTurn appends r to the turn log.
func (s *SQLiteStore) RecordTurn(r TurnRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO turns (client_id, agent, action, question_id, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ClientID, r.Agent, r.Action, r.QuestionID, r.Note, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording turn: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit turns for clientID, newest first.
func (s *SQLiteStore) RecentTurns(clientID string, limit int) ([]TurnRecord, error) {
	rows, err := s.db.Query(
		`SELECT client_id, agent, action, question_id, note, created_at
		 FROM turns WHERE client_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		clientID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var r TurnRecord
		if err := rows.Scan(&r.ClientID, &r.Agent, &r.Action, &r.QuestionID, &r.Note, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
