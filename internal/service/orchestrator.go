package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brain-mri-analysis-server/internal/domain"
)

// Orchestrator coordinates the study lifecycle: registration, revalidation,
// gate-checked inference and deletion. It owns cross-call serialization:
// operations on the same study id run one at a time, while operations on
// different studies proceed concurrently. The store is never locked as a
// whole during collaborator calls.
type Orchestrator struct {
	logger     *logrus.Logger
	repo       domain.StudyRepository
	gate       *ValidationGate
	riskEngine *ClinicalRiskRuleEngine
	segmenter  domain.Segmenter
	genotyper  domain.GenotypePredictor
	explainer  domain.Explainer
	files      domain.FileStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOrchestrator creates a new lifecycle orchestrator.
func NewOrchestrator(
	logger *logrus.Logger,
	repo domain.StudyRepository,
	gate *ValidationGate,
	riskEngine *ClinicalRiskRuleEngine,
	segmenter domain.Segmenter,
	genotyper domain.GenotypePredictor,
	explainer domain.Explainer,
	files domain.FileStore,
) *Orchestrator {
	return &Orchestrator{
		logger:     logger,
		repo:       repo,
		gate:       gate,
		riskEngine: riskEngine,
		segmenter:  segmenter,
		genotyper:  genotyper,
		explainer:  explainer,
		files:      files,
		locks:      make(map[string]*sync.Mutex),
	}
}

// lockFor returns the serialization mutex for a study id, creating it on
// first use. Entries are never removed; the table is bounded by the number of
// distinct ids ever seen.
func (o *Orchestrator) lockFor(id string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[id] = lock
	}
	return lock
}

// Register stores a freshly assembled study under the caller-supplied id
// together with its initial validation verdict. Invalid studies are stored
// too: validation gates inference, not registration.
func (o *Orchestrator) Register(ctx context.Context, id string, study *domain.Study, validation *domain.ValidationResult) (*domain.StudyRecord, error) {
	lock := o.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	record := &domain.StudyRecord{
		ID:         id,
		Study:      study,
		Validation: validation,
		UploadedAt: time.Now().UTC(),
	}
	if err := o.repo.Register(ctx, record); err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{
		"study_id":   id,
		"study_uid":  study.UID,
		"is_valid":   validation.IsValid,
		"num_series": len(study.Series),
	}).Info("Registered study")

	return record, nil
}

// Get returns the stored record for a study id, or domain.ErrNotFound.
func (o *Orchestrator) Get(ctx context.Context, id string) (*domain.StudyRecord, error) {
	return o.repo.Get(ctx, id)
}

// List returns summaries for every stored study.
func (o *Orchestrator) List(ctx context.Context) ([]domain.StudySummary, error) {
	return o.repo.List(ctx)
}

// Revalidate reruns the validation gate against the stored study and replaces
// the stored verdict with the fresh one.
func (o *Orchestrator) Revalidate(ctx context.Context, id string) (*domain.ValidationResult, error) {
	lock := o.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	record, err := o.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	validation := o.gate.Validate(record.Study)
	if err := o.repo.SetValidation(ctx, id, validation); err != nil {
		return nil, err
	}
	return validation, nil
}

// RequestInference runs the selected analysis collaborators for a study,
// enforcing the validation gate first. On success the stored analysis result
// is replaced wholesale; reruns overwrite, never append.
//
// A gate rejection returns ValidationBlockedError. A segmentation or genotype
// collaborator failure aborts the run with CollaboratorError and leaves the
// stored record untouched. An explainability failure only degrades the
// result: the run completes without an explanation.
func (o *Orchestrator) RequestInference(ctx context.Context, id string, opts domain.InferenceOptions) (*domain.AnalysisResult, error) {
	lock := o.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	record, err := o.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !record.Validation.IsValid {
		if !opts.BypassValidation {
			o.logger.WithFields(logrus.Fields{
				"study_id":   id,
				"num_errors": len(record.Validation.Errors),
			}).Warn("Inference blocked by validation gate")
			return nil, domain.NewValidationBlockedError(id, record.Validation)
		}
		o.logger.WithField("study_id", id).Warn("Validation bypassed by explicit override, proceeding with invalid study")
	}

	start := time.Now()
	result := &domain.AnalysisResult{
		StudyID:    id,
		Timestamp:  start.UTC(),
		Validation: record.Validation,
	}

	if opts.RunSegmentation {
		seg, err := o.segmenter.Segment(ctx, record.Study)
		if err != nil {
			return nil, domain.NewCollaboratorError("segmentation", err)
		}
		result.Segmentation = seg
	}

	if opts.RunGenotype {
		gen, err := o.genotyper.PredictGenotype(ctx, record.Study)
		if err != nil {
			return nil, domain.NewCollaboratorError("genotype prediction", err)
		}
		result.Genotype = gen
	}

	if opts.GenerateExplanation {
		expl, err := o.explainer.Explain(ctx, record.Study, result.Segmentation, result.Genotype)
		if err != nil {
			o.logger.WithFields(logrus.Fields{
				"study_id": id,
				"error":    err.Error(),
			}).Warn("Explainability unavailable, continuing without explanation")
		} else {
			result.Explainability = expl
		}
	}

	result.ClinicalFlags = o.riskEngine.Evaluate(result.Segmentation, result.Genotype)
	result.ProcessingTime = time.Since(start)

	if err := o.repo.SetAnalysis(ctx, id, result); err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{
		"study_id":               id,
		"high_risk":              result.ClinicalFlags.HighRisk,
		"requires_urgent_review": result.ClinicalFlags.RequiresUrgentReview,
		"processing_time":        result.ProcessingTime.String(),
	}).Info("Inference complete")

	return result, nil
}

// Delete removes a study record and signals the file store to release its
// uploads. A file store failure after successful removal is logged, not
// returned: the record is already gone.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	lock := o.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if err := o.repo.Delete(ctx, id); err != nil {
		return err
	}

	if err := o.files.Release(id); err != nil {
		o.logger.WithFields(logrus.Fields{
			"study_id": id,
			"error":    err.Error(),
		}).Warn("Failed to release stored files for deleted study")
	}

	o.logger.WithField("study_id", id).Info("Deleted study")
	return nil
}
