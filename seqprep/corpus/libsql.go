package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"
)

const translationsSchema = `CREATE TABLE IF NOT EXISTS translations (
	idx INTEGER PRIMARY KEY,
	translation TEXT NOT NULL
)`

// SQLSource serves a corpus stored in a libsql database.
// Rows are addressed by a dense zero-based idx column.
type SQLSource struct {
	db    *sql.DB
	count int
}

// OpenSQL opens a libsql database, e.g. "file:corpus.db".
func OpenSQL(dsn string) (*sql.DB, error) {
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus database: %w", err)
	}
	if _, err := db.Exec(translationsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create translations table: %w", err)
	}
	return db, nil
}

// NewSQLSource snapshots the row count of the translations table.
func NewSQLSource(ctx context.Context, db *sql.DB) (*SQLSource, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM translations").Scan(&n); err != nil {
		return nil, fmt.Errorf("failed to count translations: %w", err)
	}
	return &SQLSource{db: db, count: n}, nil
}

func (s *SQLSource) Len() int { return s.count }

func (s *SQLSource) At(i int) (Translation, error) {
	if i < 0 || i >= s.count {
		return nil, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, s.count)
	}
	var raw string
	err := s.db.QueryRow("SELECT translation FROM translations WHERE idx = ?", i).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no row for idx %d", ErrIndexOutOfRange, i)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query translation %d: %w", i, err)
	}
	var tr Translation
	if err := json.Unmarshal([]byte(raw), &tr); err != nil {
		return nil, fmt.Errorf("failed to decode translation %d: %w", i, err)
	}
	return tr, nil
}

// Close closes the underlying database.
func (s *SQLSource) Close() error { return s.db.Close() }

// ImportTranslations appends translations after the current last idx in one transaction.
func ImportTranslations(ctx context.Context, db *sql.DB, translations []Translation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(idx) + 1, 0) FROM translations").Scan(&next); err != nil {
		return fmt.Errorf("failed to read next idx: %w", err)
	}
	for i, tr := range translations {
		payload, err := json.Marshal(tr)
		if err != nil {
			return fmt.Errorf("failed to encode translation %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO translations (idx, translation) VALUES (?, ?)", next+i, string(payload)); err != nil {
			return fmt.Errorf("failed to insert translation %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
