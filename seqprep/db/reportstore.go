package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/filter"

	roaring "github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"
)

const (
	reportColumns = "id, fingerprint, seq_len, total, max_src_tokens, max_tgt_tokens, fits, oversized, created_at"
	// fixed width so created_at sorts lexically
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// LibSQLReportStore keeps scan reports in a libsql database. Index bitmaps
// are stored in roaring's portable serialization.
type LibSQLReportStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenReportStore opens (and creates if needed) a report database. A dsn
// without a scheme is treated as a local file path.
func OpenReportStore(dsn string, log zerolog.Logger) (*LibSQLReportStore, error) {
	if !strings.Contains(dsn, ":") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("could not create report directory: %w", err)
		}
		dsn = "file:" + dsn
	} else if path, ok := strings.CutPrefix(dsn, "file:"); ok && !strings.Contains(path, "memory") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("could not create report directory: %w", err)
		}
	}

	conn, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open report database: %w", err)
	}
	s := &LibSQLReportStore{db: conn, log: log}
	if err := s.init(); err != nil {
		conn.Close()
		return nil, err
	}
	log.Debug().Str("dsn", dsn).Msg("report store ready")
	return s, nil
}

func (s *LibSQLReportStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS scan_reports (
		id TEXT PRIMARY KEY UNIQUE,
		fingerprint TEXT NOT NULL DEFAULT '',
		seq_len INTEGER NOT NULL,
		total INTEGER NOT NULL,
		max_src_tokens INTEGER NOT NULL,
		max_tgt_tokens INTEGER NOT NULL,
		fits BLOB,
		oversized BLOB,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create scan_reports table: %w", err)
	}

	// databases created before fingerprints existed lack the column; their
	// rows keep an empty fingerprint and are never reused
	var n int
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('scan_reports') WHERE name = 'fingerprint'").Scan(&n); err != nil {
		return fmt.Errorf("failed to inspect scan_reports table: %w", err)
	}
	if n == 0 {
		if _, err := s.db.Exec("ALTER TABLE scan_reports ADD COLUMN fingerprint TEXT NOT NULL DEFAULT ''"); err != nil {
			return fmt.Errorf("failed to add fingerprint column: %w", err)
		}
		s.log.Info().Msg("added fingerprint column to scan_reports")
	}

	if _, err := s.db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_scan_reports_lookup ON scan_reports (fingerprint, seq_len, total)"); err != nil {
		return fmt.Errorf("failed to create scan_reports index: %w", err)
	}
	return nil
}

func (s *LibSQLReportStore) Save(ctx context.Context, r *filter.Report) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	fits, err := r.Fits.ToBytes()
	if err != nil {
		return fmt.Errorf("error serializing fits bitmap: %w", err)
	}
	oversized, err := r.Oversized.ToBytes()
	if err != nil {
		return fmt.Errorf("error serializing oversized bitmap: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO scan_reports ("+reportColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID.String(), r.Fingerprint, r.SeqLen, r.Total, r.MaxSrcTokens, r.MaxTgtTokens, fits, oversized,
		r.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("error inserting scan report: %w", err)
	}
	s.log.Debug().Str("report_id", r.ID.String()).Int("seq_len", r.SeqLen).Msg("saved scan report")
	return nil
}

func (s *LibSQLReportStore) Get(ctx context.Context, id uuid.UUID) (*filter.Report, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+reportColumns+" FROM scan_reports WHERE id = ?", id.String())
	return scanReport(row)
}

func (s *LibSQLReportStore) Latest(ctx context.Context, fingerprint string, seqLen, total int) (*filter.Report, error) {
	if fingerprint == "" {
		return nil, ErrReportNotFound
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+reportColumns+" FROM scan_reports WHERE fingerprint = ? AND seq_len = ? AND total = ? ORDER BY created_at DESC LIMIT 1",
		fingerprint, seqLen, total)
	return scanReport(row)
}

func (s *LibSQLReportStore) List(ctx context.Context) ([]*filter.Report, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+reportColumns+" FROM scan_reports ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("error querying scan reports: %w", err)
	}
	defer rows.Close()

	var out []*filter.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *LibSQLReportStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM scan_reports WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("error deleting scan report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	return nil
}

func (s *LibSQLReportStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*filter.Report, error) {
	var (
		id, createdAt   string
		fits, oversized []byte
		r               filter.Report
	)
	err := row.Scan(&id, &r.Fingerprint, &r.SeqLen, &r.Total, &r.MaxSrcTokens, &r.MaxTgtTokens, &fits, &oversized, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error scanning scan report: %w", err)
	}

	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid report id %q: %w", id, err)
	}
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid report timestamp %q: %w", createdAt, err)
	}
	r.Fits = roaring.New()
	if err := r.Fits.UnmarshalBinary(fits); err != nil {
		return nil, fmt.Errorf("error decoding fits bitmap: %w", err)
	}
	r.Oversized = roaring.New()
	if err := r.Oversized.UnmarshalBinary(oversized); err != nil {
		return nil, fmt.Errorf("error decoding oversized bitmap: %w", err)
	}
	return &r, nil
}
