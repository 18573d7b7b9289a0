package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	internal "github.com/ZanzyTHEbar/bilingual-seqprep/seqprep"
	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/config"
	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/corpus"
	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/dataset"
	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/db"
	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/filter"
	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/tokenizer"

	"github.com/rs/zerolog"
)

var ErrUnknownCorpusKind = errors.New("unknown corpus kind")

// Service provides a library-first API from configuration to a ready dataset
type Service struct {
	cfg     *config.Config
	source  corpus.Source
	tokSrc  tokenizer.Tokenizer
	tokTgt  tokenizer.Tokenizer
	ds      *dataset.BilingualDataset
	store   db.ReportStore
	scanner *filter.Scanner
	log     zerolog.Logger
	closers []func() error

	// fingerprint of the configured inputs; empty disables report reuse
	fingerprint string
}

// Option configures a Service
type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithTokenizers bypasses loading tokenizers from the configured paths.
// Stored scan reports are not reused for a Service built this way.
func WithTokenizers(src, tgt tokenizer.Tokenizer) Option {
	return func(s *Service) { s.tokSrc, s.tokTgt = src, tgt }
}

// WithSource bypasses opening the configured corpus.
// Stored scan reports are not reused for a Service built this way.
func WithSource(src corpus.Source) Option {
	return func(s *Service) { s.source = src }
}

// NewService opens the tokenizers and corpus named by cfg. store may be nil,
// in which case every Scan runs from scratch and nothing is persisted.
func NewService(cfg *config.Config, store db.ReportStore, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, store: store, log: internal.GetLogger()}
	for _, o := range opts {
		o(s)
	}
	injected := s.tokSrc != nil || s.tokTgt != nil || s.source != nil

	var err error
	if s.tokSrc == nil {
		if s.tokSrc, err = tokenizer.Open(cfg.Tokenizers.Source.Kind, cfg.Tokenizers.Source.Path); err != nil {
			return nil, fmt.Errorf("failed to open source tokenizer: %w", err)
		}
	}
	if s.tokTgt == nil {
		if s.tokTgt, err = tokenizer.Open(cfg.Tokenizers.Target.Kind, cfg.Tokenizers.Target.Path); err != nil {
			return nil, fmt.Errorf("failed to open target tokenizer: %w", err)
		}
	}
	if s.source == nil {
		if err := s.openSource(); err != nil {
			return nil, err
		}
	}

	if !injected {
		if s.fingerprint, err = inputFingerprint(cfg); err != nil {
			s.Close()
			return nil, err
		}
	}

	s.ds, err = dataset.New(s.source, s.tokSrc, s.tokTgt, cfg.Dataset.SrcLang, cfg.Dataset.TgtLang, cfg.Dataset.SeqLen,
		dataset.WithLogger(s.log))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.scanner = filter.NewScanner(filter.WithWorkers(cfg.Scan.Workers), filter.WithLogger(s.log))

	s.log.Info().
		Str("src_lang", cfg.Dataset.SrcLang).
		Str("tgt_lang", cfg.Dataset.TgtLang).
		Int("seq_len", cfg.Dataset.SeqLen).
		Int("pairs", s.ds.Len()).
		Msg("dataset ready")
	return s, nil
}

func (s *Service) openSource() error {
	switch strings.ToLower(s.cfg.Corpus.Kind) {
	case "jsonl", "":
		mem, err := corpus.LoadJSONL(s.cfg.Corpus.Path)
		if err != nil {
			return err
		}
		s.source = mem
	case "libsql":
		conn, err := corpus.OpenSQL(s.cfg.Corpus.Path)
		if err != nil {
			return err
		}
		src, err := corpus.NewSQLSource(context.Background(), conn)
		if err != nil {
			conn.Close()
			return err
		}
		s.source = src
		s.closers = append(s.closers, src.Close)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCorpusKind, s.cfg.Corpus.Kind)
	}
	return nil
}

// Dataset returns the prepared dataset over the whole corpus.
func (s *Service) Dataset() *dataset.BilingualDataset { return s.ds }

// Scan measures the corpus against the configured sequence length. With
// Scan.Reuse set, a stored report for the same inputs, length and corpus size
// is returned instead of re-tokenizing.
func (s *Service) Scan(ctx context.Context) (*filter.Report, error) {
	seqLen, total := s.ds.SeqLen(), s.ds.Len()
	if s.store != nil && s.cfg.Scan.Reuse && s.fingerprint != "" {
		report, err := s.store.Latest(ctx, s.fingerprint, seqLen, total)
		switch {
		case err == nil:
			s.log.Debug().Str("report_id", report.ID.String()).Msg("reusing stored scan report")
			return report, nil
		case !errors.Is(err, db.ErrReportNotFound):
			return nil, fmt.Errorf("failed to look up scan report: %w", err)
		}
	}

	c := corpus.Pairs(s.source, s.cfg.Dataset.SrcLang, s.cfg.Dataset.TgtLang)
	report, err := s.scanner.Scan(ctx, c, s.tokSrc, s.tokTgt, seqLen)
	if err != nil {
		return nil, err
	}
	report.Fingerprint = s.fingerprint
	if s.store != nil {
		if err := s.store.Save(ctx, report); err != nil {
			return nil, fmt.Errorf("failed to save scan report: %w", err)
		}
	}
	if dropped := report.Dropped(); dropped > 0 {
		s.log.Warn().Int("dropped", dropped).Int("seq_len", seqLen).Msg("pairs exceed sequence length")
	}
	return report, nil
}

// Trainable returns the subset of pairs that fit the sequence length.
func (s *Service) Trainable(ctx context.Context) (*dataset.Subset, *filter.Report, error) {
	report, err := s.Scan(ctx)
	if err != nil {
		return nil, nil, err
	}
	return dataset.NewSubset(s.ds, report.Fits), report, nil
}

// Close releases the corpus database, if any. The report store belongs to the caller.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// OpenReportStore opens the libsql report store named by cfg.Store.DSN.
func OpenReportStore(cfg *config.Config, log zerolog.Logger) (*db.LibSQLReportStore, error) {
	return db.OpenReportStore(cfg.Store.DSN, log)
}
