package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brain-mri-analysis-server/internal/domain"
)

const (
	// MinSlicesPerSequence is the hard floor below which a required sequence
	// cannot be analyzed at all.
	MinSlicesPerSequence = 1

	// RecommendedSlicesPerSequence is the soft floor below which analysis
	// proceeds with a quality warning.
	RecommendedSlicesPerSequence = 5
)

// ValidationGate decides whether a study is medically complete enough for
// brain tumor analysis. It runs three checks: modality, required sequence
// presence and per-sequence slice counts. The verdict is valid only when all
// three pass; warnings never affect the verdict.
type ValidationGate struct {
	logger *logrus.Logger
}

// NewValidationGate creates a new validation gate.
func NewValidationGate(logger *logrus.Logger) *ValidationGate {
	return &ValidationGate{logger: logger}
}

// Validate runs the full rule set against the study and returns a fresh
// verdict snapshot. Validate is pure with respect to the study: it never
// mutates its input and the same study always yields the same verdict.
func (g *ValidationGate) Validate(study *domain.Study) *domain.ValidationResult {
	result := &domain.ValidationResult{
		IsValid:           true,
		Errors:            []string{},
		Warnings:          []string{},
		RequiredSequences: make(map[domain.SequenceType]bool, len(domain.RequiredSequences)),
		ValidatedAt:       time.Now().UTC(),
	}
	for _, seq := range domain.RequiredSequences {
		result.RequiredSequences[seq] = false
	}

	// Checks are never short-circuited: a zero-series study still reports
	// every missing required sequence alongside the no-series error.
	if len(study.Series) == 0 {
		result.Errors = append(result.Errors, "Study contains no series")
	}

	g.checkModality(study, result)
	g.checkRequiredSequences(study, result)
	g.checkSliceCounts(study, result)

	result.IsValid = len(result.Errors) == 0
	g.logVerdict(study, result)
	return result
}

// checkModality rejects any series not acquired as MR. Comparison is against
// the normalized modality code, so "mr" and " MR " both pass.
func (g *ValidationGate) checkModality(study *domain.Study, result *domain.ValidationResult) {
	for _, series := range study.Series {
		if domain.NormalizeModality(series.Modality) != domain.ExpectedModality {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"Series '%s' has invalid modality '%s'. Expected '%s' for MRI. This system only accepts MRI studies.",
				series.Description, series.Modality, domain.ExpectedModality))
		}
	}
}

// checkRequiredSequences verifies that every required sequence type appears at
// least once. Extra series of any type, including T1-contrast, are never an
// error.
func (g *ValidationGate) checkRequiredSequences(study *domain.Study, result *domain.ValidationResult) {
	for _, series := range study.Series {
		if series.SequenceType.IsRequired() {
			result.RequiredSequences[series.SequenceType] = true
		}
	}

	for _, seq := range domain.RequiredSequences {
		if !result.RequiredSequences[seq] {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"Missing required sequence: %s. Brain tumor analysis requires T1, T2, and FLAIR sequences.", seq))
		}
	}
}

// checkSliceCounts applies the per-sequence slice thresholds. Only series
// classified as a required sequence type participate; unknown and optional
// sequence types are skipped entirely.
func (g *ValidationGate) checkSliceCounts(study *domain.Study, result *domain.ValidationResult) {
	for _, series := range study.Series {
		if !series.SequenceType.IsRequired() {
			continue
		}
		switch {
		case series.SliceCount < MinSlicesPerSequence:
			result.Errors = append(result.Errors, fmt.Sprintf(
				"Sequence %s has only %d slices. Minimum %d slices required for reliable analysis.",
				series.SequenceType, series.SliceCount, MinSlicesPerSequence))
		case series.SliceCount < RecommendedSlicesPerSequence:
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"Sequence %s has only %d slices. More slices (20+) recommended for optimal analysis quality.",
				series.SequenceType, series.SliceCount))
		}
	}
}

// Summary renders a verdict as a short human-readable report for logs and
// operator-facing responses.
func (g *ValidationGate) Summary(result *domain.ValidationResult) string {
	var b strings.Builder
	if result.IsValid {
		b.WriteString("Study validation PASSED")
	} else {
		b.WriteString("Study validation FAILED")
	}

	if len(result.Errors) > 0 {
		b.WriteString(fmt.Sprintf("\nErrors (%d):", len(result.Errors)))
		for _, e := range result.Errors {
			b.WriteString("\n  - " + e)
		}
	}
	if len(result.Warnings) > 0 {
		b.WriteString(fmt.Sprintf("\nWarnings (%d):", len(result.Warnings)))
		for _, w := range result.Warnings {
			b.WriteString("\n  - " + w)
		}
	}

	b.WriteString("\nRequired sequences:")
	for _, seq := range domain.RequiredSequences {
		mark := "missing"
		if result.RequiredSequences[seq] {
			mark = "found"
		}
		b.WriteString(fmt.Sprintf("\n  %s: %s", seq, mark))
	}
	return b.String()
}

func (g *ValidationGate) logVerdict(study *domain.Study, result *domain.ValidationResult) {
	fields := logrus.Fields{
		"study_uid":    study.UID,
		"is_valid":     result.IsValid,
		"num_errors":   len(result.Errors),
		"num_warnings": len(result.Warnings),
	}
	if result.IsValid {
		g.logger.WithFields(fields).Info("Study passed validation")
	} else {
		g.logger.WithFields(fields).WithField("errors", result.Errors).Warn("Study failed validation")
	}
}
