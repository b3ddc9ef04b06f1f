package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brain-mri-analysis-server/internal/domain"
)

func mrSeries(uid string, seq domain.SequenceType, slices int) domain.Series {
	paths := make([]string, slices)
	for i := range paths {
		paths[i] = "/u/" + uid + ".dcm"
	}
	return domain.Series{
		UID:          uid,
		Description:  string(seq),
		Modality:     "MR",
		SequenceType: seq,
		FilePaths:    paths,
		SliceCount:   slices,
	}
}

func completeStudy(slices int) *domain.Study {
	return &domain.Study{
		UID:       "study-1",
		PatientID: "P001",
		Series: []domain.Series{
			mrSeries("s1", domain.SequenceT1, slices),
			mrSeries("s2", domain.SequenceT2, slices),
			mrSeries("s3", domain.SequenceFLAIR, slices),
		},
	}
}

func TestValidationGate_CompleteStudyPasses(t *testing.T) {
	gate := NewValidationGate(newTestLogger())

	result := gate.Validate(completeStudy(20))

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, map[domain.SequenceType]bool{
		domain.SequenceT1:    true,
		domain.SequenceT2:    true,
		domain.SequenceFLAIR: true,
	}, result.RequiredSequences)
}

func TestValidationGate_MissingFLAIRFails(t *testing.T) {
	gate := NewValidationGate(newTestLogger())

	study := completeStudy(20)
	study.Series = study.Series[:2]

	result := gate.Validate(study)

	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Missing required sequence: FLAIR")
	assert.Equal(t, map[domain.SequenceType]bool{
		domain.SequenceT1:    true,
		domain.SequenceT2:    true,
		domain.SequenceFLAIR: false,
	}, result.RequiredSequences)
}

func TestValidationGate_EmptyStudy(t *testing.T) {
	gate := NewValidationGate(newTestLogger())

	result := gate.Validate(&domain.Study{UID: domain.EmptyStudyID, Series: []domain.Series{}})

	assert.False(t, result.IsValid)

	// The no-series error does not suppress the other checks: each missing
	// required sequence is still reported.
	require.Len(t, result.Errors, 4)
	assert.Equal(t, "Study contains no series", result.Errors[0])
	assert.Contains(t, result.Errors[1], "Missing required sequence: T1")
	assert.Contains(t, result.Errors[2], "Missing required sequence: T2")
	assert.Contains(t, result.Errors[3], "Missing required sequence: FLAIR")
	assert.Equal(t, map[domain.SequenceType]bool{
		domain.SequenceT1:    false,
		domain.SequenceT2:    false,
		domain.SequenceFLAIR: false,
	}, result.RequiredSequences)
}

func TestValidationGate_NonMRModalityFails(t *testing.T) {
	gate := NewValidationGate(newTestLogger())

	study := completeStudy(20)
	study.Series[1].Modality = "CT"

	result := gate.Validate(study)

	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "invalid modality 'CT'")
	assert.Contains(t, result.Errors[0], study.Series[1].Description)
}

func TestValidationGate_ModalityComparisonIsNormalized(t *testing.T) {
	gate := NewValidationGate(newTestLogger())

	study := completeStudy(20)
	study.Series[0].Modality = "mr"
	study.Series[1].Modality = " MR "

	result := gate.Validate(study)

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}

func TestValidationGate_SliceCountThresholds(t *testing.T) {
	gate := NewValidationGate(newTestLogger())

	tests := []struct {
		name         string
		slices       int
		wantErrors   int
		wantWarnings int
		wantValid    bool
	}{
		{"Zero slices is a hard error", 0, 3, 0, false},
		{"One slice warns", 1, 0, 3, true},
		{"Four slices warns", 4, 0, 3, true},
		{"Five slices is clean", 5, 0, 0, true},
		{"Twenty slices is clean", 20, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := gate.Validate(completeStudy(tt.slices))
			assert.Equal(t, tt.wantValid, result.IsValid)
			assert.Len(t, result.Errors, tt.wantErrors)
			assert.Len(t, result.Warnings, tt.wantWarnings)
		})
	}
}

func TestValidationGate_WarningsNeverBlock(t *testing.T) {
	gate := NewValidationGate(newTestLogger())

	result := gate.Validate(completeStudy(2))

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 3)
	for _, w := range result.Warnings {
		assert.Contains(t, w, "recommended")
	}
}

func TestValidationGate_UnknownSeriesSkippedBySliceCheck(t *testing.T) {
	gate := NewValidationGate(newTestLogger())

	study := completeStudy(20)
	unknown := mrSeries("s4", domain.SequenceUnknown, 0)
	study.Series = append(study.Series, unknown)

	result := gate.Validate(study)

	// A zero-slice unknown series raises neither error nor warning.
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidationGate_T1ContrastNotRequired(t *testing.T) {
	gate := NewValidationGate(newTestLogger())

	// A study with an extra T1-contrast series passes, and a study without
	// one is never penalized for its absence.
	study := completeStudy(20)
	study.Series = append(study.Series, mrSeries("s4", domain.SequenceT1Contrast, 20))

	result := gate.Validate(study)
	assert.True(t, result.IsValid)
	_, tracked := result.RequiredSequences[domain.SequenceT1Contrast]
	assert.False(t, tracked)
}

func TestValidationGate_Summary(t *testing.T) {
	gate := NewValidationGate(newTestLogger())

	study := completeStudy(20)
	study.Series = study.Series[:2]
	result := gate.Validate(study)

	summary := gate.Summary(result)
	assert.True(t, strings.HasPrefix(summary, "Study validation FAILED"))
	assert.Contains(t, summary, "Missing required sequence: FLAIR")
	assert.Contains(t, summary, "FLAIR: missing")
	assert.Contains(t, summary, "T1: found")
}
