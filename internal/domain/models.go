package domain

import (
	"time"
)

// FileMetadata is one per-file metadata record supplied by the file intake
// collaborator. The core never touches raw image bytes; intake hands over
// already-extracted header fields.
type FileMetadata struct {
	FilePath         string `json:"file_path"`
	SeriesUID        string `json:"series_uid"`
	StudyUID         string `json:"study_uid"`
	Modality         string `json:"modality"`
	SeriesDesc       string `json:"series_description"`
	PatientID        string `json:"patient_id,omitempty"`
	StudyDate        string `json:"study_date,omitempty"`
	StudyDesc        string `json:"study_description,omitempty"`
	InstanceNumber   int    `json:"instance_number"`
	HasInstanceIndex bool   `json:"has_instance_index"`
}

// Series represents a single MRI sequence: an ordered run of slices sharing a
// series UID. Invariant: SliceCount == len(FilePaths).
type Series struct {
	UID          string       `json:"series_uid"`
	Description  string       `json:"series_description"`
	Modality     string       `json:"modality"`
	SequenceType SequenceType `json:"sequence_type"`
	FilePaths    []string     `json:"file_paths"`
	SliceCount   int          `json:"slice_count"`
}

// Study is the aggregate root: one imaging session, assembled once at upload
// time and logically immutable thereafter.
type Study struct {
	UID         string   `json:"study_uid"`
	PatientID   string   `json:"patient_id"`
	StudyDate   string   `json:"study_date,omitempty"`
	Description string   `json:"study_description,omitempty"`
	Series      []Series `json:"series"`
}

// IsEmpty reports whether this is the sentinel study produced for an empty
// file set.
func (s *Study) IsEmpty() bool {
	return s.UID == EmptyStudyID && len(s.Series) == 0
}

// SeriesByType returns the first series classified to the given sequence
// type, or nil if none is present.
func (s *Study) SeriesByType(seq SequenceType) *Series {
	for i := range s.Series {
		if s.Series[i].SequenceType == seq {
			return &s.Series[i]
		}
	}
	return nil
}

// ValidationResult is an immutable snapshot of one validation-gate run.
// A study may be revalidated; each run produces a fresh result that replaces
// the stored one.
type ValidationResult struct {
	IsValid           bool                  `json:"is_valid"`
	Errors            []string              `json:"errors"`
	Warnings          []string              `json:"warnings"`
	RequiredSequences map[SequenceType]bool `json:"required_sequences"`
	ValidatedAt       time.Time             `json:"validated_at"`
}

// SegmentationSummary holds the numeric output of the tumor segmentation
// collaborator. Volumes are in milliliters.
type SegmentationSummary struct {
	WholeTumorVolumeML   float64 `json:"whole_tumor_volume_ml"`
	EnhancingVolumeML    float64 `json:"enhancing_tumor_volume_ml"`
	NecroticCoreVolumeML float64 `json:"necrotic_core_volume_ml"`
	Confidence           float64 `json:"confidence_score"`
}

// GenotypeSummary holds the probabilistic output of the genotype prediction
// collaborator. All probabilities are in [0, 1].
type GenotypeSummary struct {
	IDHMutationProb       float64 `json:"idh_mutation_probability"`
	IDHWildtypeProb       float64 `json:"idh_wildtype_probability"`
	MGMTMethylationProb   float64 `json:"mgmt_methylation_probability"`
	EGFRAmplificationProb float64 `json:"egfr_amplification_probability"`
	Confidence            float64 `json:"prediction_confidence"`
}

// ExplainabilitySummary carries a human-readable explanation of an analysis
// plus the ordered feature labels that drove it.
type ExplainabilitySummary struct {
	ExplanationText   string   `json:"explanation_text"`
	ImportantFeatures []string `json:"important_features"`
}

// ClinicalFlags are the derived risk indicators computed by the clinical risk
// rule engine from numeric analysis outputs.
type ClinicalFlags struct {
	HighRisk             bool     `json:"high_risk"`
	RequiresUrgentReview bool     `json:"requires_urgent_review"`
	RiskFactors          []string `json:"risk_factors"`
	UrgencyReason        string   `json:"urgency_reason,omitempty"`
}

// AnalysisResult is the complete outcome of one gate-permitted inference run.
// Re-running inference for the same study replaces the stored result
// (last write wins, never appended).
type AnalysisResult struct {
	StudyID        string                 `json:"study_id"`
	Timestamp      time.Time              `json:"timestamp"`
	Validation     *ValidationResult      `json:"validation"`
	Segmentation   *SegmentationSummary   `json:"segmentation,omitempty"`
	Genotype       *GenotypeSummary       `json:"genotype_prediction,omitempty"`
	Explainability *ExplainabilitySummary `json:"explainability,omitempty"`
	ClinicalFlags  ClinicalFlags          `json:"clinical_flags"`
	ProcessingTime time.Duration          `json:"processing_time"`
}

// InferenceOptions selects which collaborators an inference run invokes.
// BypassValidation is the explicit, logged safety override; it must never
// default to true.
type InferenceOptions struct {
	RunSegmentation     bool `json:"run_segmentation"`
	RunGenotype         bool `json:"run_genotype_prediction"`
	GenerateExplanation bool `json:"generate_explanations"`
	BypassValidation    bool `json:"bypass_validation"`
}

// DefaultInferenceOptions enables every collaborator and keeps the gate armed.
func DefaultInferenceOptions() InferenceOptions {
	return InferenceOptions{
		RunSegmentation:     true,
		RunGenotype:         true,
		GenerateExplanation: true,
		BypassValidation:    false,
	}
}

// StudyRecord is one entry of the lifecycle store: the study, its latest
// validation verdict and, once inference has run, the latest analysis result.
type StudyRecord struct {
	ID         string            `json:"study_id"`
	Study      *Study            `json:"study"`
	Validation *ValidationResult `json:"validation"`
	Analysis   *AnalysisResult   `json:"analysis,omitempty"`
	UploadedAt time.Time         `json:"uploaded_at"`
}

// State derives the lifecycle state from the record contents.
func (r *StudyRecord) State() StudyState {
	if r.Analysis != nil {
		return StateAnalysisComplete
	}
	return StateUploaded
}

// StudySummary is the listing projection of a stored study.
type StudySummary struct {
	ID          string     `json:"study_id"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	IsValid     bool       `json:"is_valid"`
	HasAnalysis bool       `json:"has_results"`
	SeriesCount int        `json:"num_series"`
	State       StudyState `json:"state"`
}

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Upload    UploadConfig    `mapstructure:"upload"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// StorageConfig selects and configures the study repository backend.
type StorageConfig struct {
	Driver     string         `mapstructure:"driver"` // memory, sqlite, postgres
	SQLitePath string         `mapstructure:"sqlite_path"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// UploadConfig holds file intake settings.
type UploadConfig struct {
	Dir string `mapstructure:"dir"`
}

// RateLimitConfig holds API rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
