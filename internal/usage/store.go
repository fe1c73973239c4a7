// Package usage records model token consumption per agent run, so cost
// can be reported without scraping provider dashboards.
package usage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Price is the per-model token pricing in USD per million tokens.
type Price struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Record is one model call's usage.
type Record struct {
	ID           string
	ChatID       string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	At           time.Time
}

// Summary aggregates usage over a period.
type Summary struct {
	Requests     int
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// ComputeCost prices a call. Unknown models cost zero; the tokens are
// still recorded so pricing can be backfilled later.
func ComputeCost(model string, inputTokens, outputTokens int, pricing map[string]Price) float64 {
	p, ok := pricing[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1e6*p.InputPerMillion +
		float64(outputTokens)/1e6*p.OutputPerMillion
}

// Store is an append-only SQLite usage log.
type Store struct {
	db      *sql.DB
	pricing map[string]Price
}

// Open opens (and if needed creates) the usage database at dbPath.
func Open(dbPath string, pricing map[string]Price) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open usage database: %w", err)
	}

	store := &Store{db: db, pricing: pricing}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate usage database: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL,
		model TEXT NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cost_usd REAL NOT NULL,
		at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_at ON usage(at);
	CREATE INDEX IF NOT EXISTS idx_usage_chat ON usage(chat_id, at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Track appends one usage record, pricing it from the configured table.
func (s *Store) Track(chatID, model string, inputTokens, outputTokens int) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("usage record id: %w", err)
	}

	cost := ComputeCost(model, inputTokens, outputTokens, s.pricing)
	_, err = s.db.Exec(`
		INSERT INTO usage (id, chat_id, model, input_tokens, output_tokens, cost_usd, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.String(), chatID, model, inputTokens, outputTokens, cost, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("track usage: %w", err)
	}
	return nil
}

// Since aggregates usage at or after the given time.
func (s *Store) Since(t time.Time) (Summary, error) {
	var sum Summary
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(input_tokens), 0),
		       COALESCE(SUM(output_tokens), 0),
		       COALESCE(SUM(cost_usd), 0)
		FROM usage WHERE at >= ?`, t.UTC(),
	).Scan(&sum.Requests, &sum.InputTokens, &sum.OutputTokens, &sum.CostUSD)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize usage: %w", err)
	}
	return sum, nil
}

// Recent returns the newest records, most recent first.
func (s *Store) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, chat_id, model, input_tokens, output_tokens, cost_usd, at
		FROM usage ORDER BY at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.ChatID, &r.Model, &r.InputTokens, &r.OutputTokens, &r.CostUSD, &r.At); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
