package db

import (
	"context"
	"errors"

	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/filter"

	"github.com/google/uuid"
)

var ErrReportNotFound = errors.New("scan report not found")

// ReportStore persists corpus scan reports so a corpus does not need to be
// re-tokenized for a sequence length it was already measured against.
type ReportStore interface {
	Save(ctx context.Context, report *filter.Report) error
	Get(ctx context.Context, id uuid.UUID) (*filter.Report, error)
	// Latest returns the most recent report with the given input fingerprint,
	// seqLen and corpus size total. An empty fingerprint never matches.
	Latest(ctx context.Context, fingerprint string, seqLen, total int) (*filter.Report, error)
	List(ctx context.Context) ([]*filter.Report, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Close() error
}
