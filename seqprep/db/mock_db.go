package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/filter"

	"github.com/google/uuid"
)

// MockReportStore is an in-memory ReportStore for tests and dry runs.
type MockReportStore struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]*filter.Report
}

// NewMockReportStore creates a new MockReportStore
func NewMockReportStore() *MockReportStore {
	return &MockReportStore{reports: make(map[uuid.UUID]*filter.Report)}
}

func (m *MockReportStore) Save(ctx context.Context, r *filter.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if _, exists := m.reports[r.ID]; exists {
		return fmt.Errorf("scan report %s already exists", r.ID)
	}
	m.reports[r.ID] = cloneReport(r)
	return nil
}

func (m *MockReportStore) Get(ctx context.Context, id uuid.UUID) (*filter.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return cloneReport(r), nil
}

func (m *MockReportStore) Latest(ctx context.Context, fingerprint string, seqLen, total int) (*filter.Report, error) {
	if fingerprint == "" {
		return nil, ErrReportNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *filter.Report
	for _, r := range m.reports {
		if r.Fingerprint != fingerprint || r.SeqLen != seqLen || r.Total != total {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrReportNotFound
	}
	return cloneReport(latest), nil
}

func (m *MockReportStore) List(ctx context.Context) ([]*filter.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*filter.Report, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, cloneReport(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockReportStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	delete(m.reports, id)
	return nil
}

func (m *MockReportStore) Close() error { return nil }

func cloneReport(r *filter.Report) *filter.Report {
	c := *r
	if r.Fits != nil {
		c.Fits = r.Fits.Clone()
	}
	if r.Oversized != nil {
		c.Oversized = r.Oversized.Clone()
	}
	return &c
}
