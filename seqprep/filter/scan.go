// Package filter measures a parallel corpus against a fixed sequence length
// so oversized pairs can be dropped before training.
package filter

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/corpus"
	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/dataset"
	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/tokenizer"

	roaring "github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

const defaultChunkSize = 256

// Report is the result of one corpus scan. Fingerprint identifies the corpus
// and tokenizers the scan ran over; it is set by the caller and empty when
// the inputs are unknown.
type Report struct {
	ID           uuid.UUID
	Fingerprint  string
	SeqLen       int
	Total        int
	MaxSrcTokens int
	MaxTgtTokens int
	Fits         *roaring.Bitmap
	Oversized    *roaring.Bitmap
	CreatedAt    time.Time
}

// Kept returns how many pairs fit the sequence length.
func (r *Report) Kept() int { return int(r.Fits.GetCardinality()) }

// Dropped returns how many pairs are too long.
func (r *Report) Dropped() int { return int(r.Oversized.GetCardinality()) }

// Scanner tokenizes a corpus on a bounded worker pool.
type Scanner struct {
	workers   int
	chunkSize int
	log       zerolog.Logger
}

// ScannerOption configures a Scanner
type ScannerOption func(*Scanner)

// WithWorkers bounds the number of goroutines; n <= 0 means runtime.NumCPU().
func WithWorkers(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithChunkSize(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

func WithLogger(l zerolog.Logger) ScannerOption {
	return func(s *Scanner) { s.log = l }
}

func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		workers:   runtime.NumCPU(),
		chunkSize: defaultChunkSize,
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type chunkResult struct {
	fits, oversized *roaring.Bitmap
	maxSrc, maxTgt  int
}

// Scan tokenizes every pair of c and records which indices fit seqLen.
// The first tokenizer or corpus error cancels the remaining work.
func (s *Scanner) Scan(ctx context.Context, c corpus.Corpus, tokSrc, tokTgt tokenizer.Tokenizer, seqLen int) (*Report, error) {
	if seqLen <= 0 {
		return nil, fmt.Errorf("%w: got %d", dataset.ErrInvalidSeqLen, seqLen)
	}
	start := time.Now()
	total := c.Count()
	report := &Report{
		ID:        uuid.New(),
		SeqLen:    seqLen,
		Total:     total,
		Fits:      roaring.New(),
		Oversized: roaring.New(),
	}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(s.workers).WithContext(ctx).WithCancelOnError()
	for lo := 0; lo < total; lo += s.chunkSize {
		lo := lo
		hi := min(lo+s.chunkSize, total)
		p.Go(func(ctx context.Context) error {
			res, err := scanChunk(ctx, c, tokSrc, tokTgt, seqLen, lo, hi)
			if err != nil {
				return err
			}
			mu.Lock()
			report.Fits.Or(res.fits)
			report.Oversized.Or(res.oversized)
			report.MaxSrcTokens = max(report.MaxSrcTokens, res.maxSrc)
			report.MaxTgtTokens = max(report.MaxTgtTokens, res.maxTgt)
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("corpus scan failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.CreatedAt = time.Now()
	s.log.Info().
		Str("report_id", report.ID.String()).
		Int("total", total).
		Int("kept", report.Kept()).
		Int("dropped", report.Dropped()).
		Int("max_src_tokens", report.MaxSrcTokens).
		Int("max_tgt_tokens", report.MaxTgtTokens).
		Dur("elapsed", time.Since(start)).
		Msg("corpus scan complete")
	return report, nil
}

func scanChunk(ctx context.Context, c corpus.Corpus, tokSrc, tokTgt tokenizer.Tokenizer, seqLen, lo, hi int) (*chunkResult, error) {
	res := &chunkResult{fits: roaring.New(), oversized: roaring.New()}
	for i := lo; i < hi; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		srcText, tgtText, err := c.Get(i)
		if err != nil {
			return nil, err
		}
		srcIDs, err := tokSrc.Encode(srcText)
		if err != nil {
			return nil, fmt.Errorf("failed to tokenize source at index %d: %w", i, err)
		}
		tgtIDs, err := tokTgt.Encode(tgtText)
		if err != nil {
			return nil, fmt.Errorf("failed to tokenize target at index %d: %w", i, err)
		}
		res.maxSrc = max(res.maxSrc, len(srcIDs))
		res.maxTgt = max(res.maxTgt, len(tgtIDs))
		if dataset.Fits(len(srcIDs), len(tgtIDs), seqLen) {
			res.fits.Add(uint32(i))
		} else {
			res.oversized.Add(uint32(i))
		}
	}
	return res, nil
}
