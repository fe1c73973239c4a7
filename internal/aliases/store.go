// Package aliases stores user-taught names for entities. An alias maps
// a spoken phrase ("the big lamp") to a canonical entity id, and always
// wins over fuzzy matching during resolution.
package aliases

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Alias is one learned name.
type Alias struct {
	Name      string // stored lowercased
	EntityID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is a SQLite-backed alias store. Lookups are case-insensitive;
// re-teaching an existing alias overwrites it (last write wins).
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the alias database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open alias database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate alias database: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS aliases (
		name TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_aliases_entity ON aliases(entity_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Normalize lowercases and trims an alias name. All reads and writes go
// through this, so "The Big Lamp" and "the big lamp" are the same alias.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup returns the entity id for name, or ok=false if unknown.
func (s *Store) Lookup(name string) (string, bool, error) {
	var entityID string
	err := s.db.QueryRow(
		`SELECT entity_id FROM aliases WHERE name = ?`, Normalize(name),
	).Scan(&entityID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup alias %q: %w", name, err)
	}
	return entityID, true, nil
}

// Remember saves name as an alias for entityID, overwriting any prior
// binding for the same name.
func (s *Store) Remember(name, entityID string) error {
	normalized := Normalize(name)
	if normalized == "" {
		return fmt.Errorf("alias name is empty")
	}
	if entityID == "" {
		return fmt.Errorf("alias entity id is empty")
	}

	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO aliases (name, entity_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			entity_id = excluded.entity_id,
			updated_at = excluded.updated_at`,
		normalized, entityID, now, now,
	)
	if err != nil {
		return fmt.Errorf("save alias %q: %w", normalized, err)
	}
	return nil
}

// Forget removes an alias. Removing an unknown alias is not an error;
// the returned bool reports whether anything was deleted.
func (s *Store) Forget(name string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM aliases WHERE name = ?`, Normalize(name))
	if err != nil {
		return false, fmt.Errorf("forget alias %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("forget alias %q: %w", name, err)
	}
	return n > 0, nil
}

// All returns every alias, ordered by name.
func (s *Store) All() ([]Alias, error) {
	rows, err := s.db.Query(
		`SELECT name, entity_id, created_at, updated_at FROM aliases ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	var out []Alias
	for rows.Next() {
		var a Alias
		if err := rows.Scan(&a.Name, &a.EntityID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ForEntity returns the aliases pointing at entityID, ordered by name.
func (s *Store) ForEntity(entityID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT name FROM aliases WHERE entity_id = ? ORDER BY name`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list aliases for %s: %w", entityID, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
