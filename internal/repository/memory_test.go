package repository

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brain-mri-analysis-server/internal/domain"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testRecord(id string) *domain.StudyRecord {
	return &domain.StudyRecord{
		ID: id,
		Study: &domain.Study{
			UID:       "uid-" + id,
			PatientID: "P001",
			Series: []domain.Series{
				{
					UID:          "s1",
					Description:  "AX T1",
					Modality:     "MR",
					SequenceType: domain.SequenceT1,
					FilePaths:    []string{"/u/a.dcm"},
					SliceCount:   1,
				},
			},
		},
		Validation: &domain.ValidationResult{
			IsValid:  true,
			Errors:   []string{},
			Warnings: []string{},
			RequiredSequences: map[domain.SequenceType]bool{
				domain.SequenceT1:    true,
				domain.SequenceT2:    true,
				domain.SequenceFLAIR: true,
			},
			ValidatedAt: time.Now().UTC(),
		},
		UploadedAt: time.Now().UTC(),
	}
}

func testAnalysis(id string) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		StudyID:   id,
		Timestamp: time.Now().UTC(),
		Segmentation: &domain.SegmentationSummary{
			WholeTumorVolumeML: 42.5,
			Confidence:         0.9,
		},
		ClinicalFlags: domain.ClinicalFlags{RiskFactors: []string{}},
	}
}

// repositoryContract exercises the behavior every backend must share.
func repositoryContract(t *testing.T, repo domain.StudyRepository) {
	ctx := context.Background()

	t.Run("Get unknown id", func(t *testing.T) {
		_, err := repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Register and get", func(t *testing.T) {
		require.NoError(t, repo.Register(ctx, testRecord("r1")))

		record, err := repo.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "r1", record.ID)
		assert.Equal(t, "uid-r1", record.Study.UID)
		assert.True(t, record.Validation.IsValid)
		assert.Nil(t, record.Analysis)
		assert.Equal(t, domain.StateUploaded, record.State())
	})

	t.Run("Duplicate id rejected", func(t *testing.T) {
		assert.ErrorIs(t, repo.Register(ctx, testRecord("r1")), domain.ErrStudyExists)
	})

	t.Run("SetValidation replaces verdict", func(t *testing.T) {
		updated := &domain.ValidationResult{
			IsValid:           false,
			Errors:            []string{"Study contains no series"},
			Warnings:          []string{},
			RequiredSequences: map[domain.SequenceType]bool{domain.SequenceT1: false},
			ValidatedAt:       time.Now().UTC(),
		}
		require.NoError(t, repo.SetValidation(ctx, "r1", updated))

		record, err := repo.Get(ctx, "r1")
		require.NoError(t, err)
		assert.False(t, record.Validation.IsValid)
		assert.Equal(t, updated.Errors, record.Validation.Errors)

		assert.ErrorIs(t, repo.SetValidation(ctx, "missing", updated), domain.ErrNotFound)
	})

	t.Run("SetAnalysis transitions state", func(t *testing.T) {
		require.NoError(t, repo.SetAnalysis(ctx, "r1", testAnalysis("r1")))

		record, err := repo.Get(ctx, "r1")
		require.NoError(t, err)
		require.NotNil(t, record.Analysis)
		assert.Equal(t, 42.5, record.Analysis.Segmentation.WholeTumorVolumeML)
		assert.Equal(t, domain.StateAnalysisComplete, record.State())

		assert.ErrorIs(t, repo.SetAnalysis(ctx, "missing", testAnalysis("missing")), domain.ErrNotFound)
	})

	t.Run("List in registration order", func(t *testing.T) {
		require.NoError(t, repo.Register(ctx, testRecord("r2")))

		summaries, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, summaries, 2)
		assert.Equal(t, "r1", summaries[0].ID)
		assert.Equal(t, "r2", summaries[1].ID)
		assert.True(t, summaries[0].HasAnalysis)
		assert.False(t, summaries[1].HasAnalysis)
		assert.Equal(t, 1, summaries[0].SeriesCount)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "r1"))
		_, err := repo.Get(ctx, "r1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, "r1"), domain.ErrNotFound)

		summaries, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, "r2", summaries[0].ID)
	})
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository(newTestLogger())
	defer repo.Close()

	repositoryContract(t, repo)
}

func TestMemoryRepository_GetReturnsCopy(t *testing.T) {
	repo := NewMemoryRepository(newTestLogger())
	ctx := context.Background()

	require.NoError(t, repo.Register(ctx, testRecord("r1")))

	first, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	first.Analysis = testAnalysis("r1")

	second, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, second.Analysis)
}
