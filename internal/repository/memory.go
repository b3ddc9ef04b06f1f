// Package repository provides study store backends: an in-memory table for
// tests and single-process deployments, SQLite for embedded persistence and
// Postgres for shared deployments.
package repository

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/brain-mri-analysis-server/internal/domain"
)

// MemoryRepository is a process-local study store. Individual calls are
// atomic under an internal mutex; it holds no lock between calls.
type MemoryRepository struct {
	logger *logrus.Logger

	mu      sync.RWMutex
	records map[string]*domain.StudyRecord
	order   []string
}

// NewMemoryRepository creates an empty in-memory study store.
func NewMemoryRepository(logger *logrus.Logger) *MemoryRepository {
	return &MemoryRepository{
		logger:  logger,
		records: make(map[string]*domain.StudyRecord),
	}
}

// Register stores a new record, rejecting duplicate ids.
func (r *MemoryRepository) Register(ctx context.Context, record *domain.StudyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.ID]; exists {
		return domain.ErrStudyExists
	}
	stored := *record
	r.records[record.ID] = &stored
	r.order = append(r.order, record.ID)
	return nil
}

// Get returns a copy of the record for id, or domain.ErrNotFound.
func (r *MemoryRepository) Get(ctx context.Context, id string) (*domain.StudyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

// SetValidation replaces the stored validation verdict.
func (r *MemoryRepository) SetValidation(ctx context.Context, id string, validation *domain.ValidationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	record.Validation = validation
	return nil
}

// SetAnalysis replaces the stored analysis result.
func (r *MemoryRepository) SetAnalysis(ctx context.Context, id string, analysis *domain.AnalysisResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	record.Analysis = analysis
	return nil
}

// Delete removes the record for id.
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.records, id)
	for i, stored := range r.order {
		if stored == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns summaries in registration order.
func (r *MemoryRepository) List(ctx context.Context) ([]domain.StudySummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]domain.StudySummary, 0, len(r.order))
	for _, id := range r.order {
		summaries = append(summaries, summarize(r.records[id]))
	}
	return summaries, nil
}

// Close is a no-op for the in-memory store.
func (r *MemoryRepository) Close() error {
	return nil
}

func summarize(record *domain.StudyRecord) domain.StudySummary {
	summary := domain.StudySummary{
		ID:          record.ID,
		UploadedAt:  record.UploadedAt,
		HasAnalysis: record.Analysis != nil,
		State:       record.State(),
	}
	if record.Validation != nil {
		summary.IsValid = record.Validation.IsValid
	}
	if record.Study != nil {
		summary.SeriesCount = len(record.Study.Series)
	}
	return summary
}
