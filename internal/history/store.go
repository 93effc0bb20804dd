package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Record is one completed, successful analysis.
type Record struct {
	ID              string
	FileName        string
	Language        string
	Classification  string
	ConfidenceScore float64
	Explanation     string
	CreatedAt       time.Time
}

// Store keeps completed analyses in a local SQLite database so past results
// survive restarts.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id               TEXT PRIMARY KEY,
		file_name        TEXT NOT NULL,
		language         TEXT NOT NULL,
		classification   TEXT NOT NULL,
		confidence_score REAL NOT NULL,
		explanation      TEXT DEFAULT '',
		created_at       DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}

	slog.Info("History store ready", "path", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Insert records a completed analysis, filling in a fresh ID and timestamp
// when the caller left them empty. The stored record is returned.
func (s *Store) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, file_name, language, classification, confidence_score, explanation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FileName, rec.Language, rec.Classification, rec.ConfidenceScore, rec.Explanation, rec.CreatedAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("inserting analysis record: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, language, classification, confidence_score, explanation, created_at
		 FROM analyses
		 ORDER BY created_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		err := rows.Scan(&rec.ID, &rec.FileName, &rec.Language, &rec.Classification,
			&rec.ConfidenceScore, &rec.Explanation, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning analysis record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
