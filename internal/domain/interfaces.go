package domain

import (
	"context"
)

// StudyRepository is the persistence abstraction behind the lifecycle
// orchestrator. Backends (in-memory table, SQLite, Postgres) are swappable
// without touching orchestration logic. Implementations must keep each
// individual call atomic; cross-call serialization per study id is the
// orchestrator's job.
type StudyRepository interface {
	// Register stores a new record. Returns ErrStudyExists if the id is taken.
	Register(ctx context.Context, record *StudyRecord) error
	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*StudyRecord, error)
	// SetValidation replaces the stored validation verdict. ErrNotFound if absent.
	SetValidation(ctx context.Context, id string, validation *ValidationResult) error
	// SetAnalysis replaces the stored analysis result. ErrNotFound if absent.
	SetAnalysis(ctx context.Context, id string, analysis *AnalysisResult) error
	// Delete removes the record. ErrNotFound if absent.
	Delete(ctx context.Context, id string) error
	// List returns summaries for every stored study in a stable order.
	List(ctx context.Context) ([]StudySummary, error)
	// Close releases backend resources.
	Close() error
}

// Segmenter is the tumor segmentation collaborator: given a validated study it
// returns volumetric measurements, or fails.
type Segmenter interface {
	Segment(ctx context.Context, study *Study) (*SegmentationSummary, error)
}

// GenotypePredictor is the genotype prediction collaborator.
type GenotypePredictor interface {
	PredictGenotype(ctx context.Context, study *Study) (*GenotypeSummary, error)
}

// Explainer is the explainability collaborator. Its failures degrade
// gracefully: an inference run proceeds without an explanation rather than
// failing as a whole.
type Explainer interface {
	Explain(ctx context.Context, study *Study, seg *SegmentationSummary, gen *GenotypeSummary) (*ExplainabilitySummary, error)
}

// FileStore is the file storage collaborator. The orchestrator signals it on
// study deletion so associated uploads are released.
type FileStore interface {
	// Release removes all stored files for a study. Releasing an unknown
	// study id is a no-op.
	Release(studyID string) error
}

// ConfigManager provides access to validated application configuration.
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetStorageConfig() *StorageConfig
	Validate() error
}
