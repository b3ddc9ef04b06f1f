package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brain-mri-analysis-server/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "studies.db"), newTestLogger())
	require.NoError(t, err)
	defer repo.Close()

	repositoryContract(t, repo)
}

func TestSQLiteRepository_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studies.db")
	ctx := context.Background()

	repo, err := NewSQLiteRepository(path, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, repo.Register(ctx, testRecord("r1")))
	require.NoError(t, repo.SetAnalysis(ctx, "r1", testAnalysis("r1")))
	require.NoError(t, repo.Close())

	reopened, err := NewSQLiteRepository(path, newTestLogger())
	require.NoError(t, err)
	defer reopened.Close()

	record, err := reopened.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "uid-r1", record.Study.UID)
	require.NotNil(t, record.Analysis)
	assert.Equal(t, domain.StateAnalysisComplete, record.State())
}

func TestSQLiteRepository_BackendFailures(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	repo := &SQLiteRepository{logger: newTestLogger(), db: mockDB}
	ctx := context.Background()
	backendErr := errors.New("disk I/O error")

	t.Run("Register failure", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO studies").WillReturnError(backendErr)
		err := repo.Register(ctx, testRecord("r1"))
		assert.ErrorIs(t, err, backendErr)
	})

	t.Run("Register duplicate maps to ErrStudyExists", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO studies").
			WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: studies.id"))
		err := repo.Register(ctx, testRecord("r1"))
		assert.ErrorIs(t, err, domain.ErrStudyExists)
	})

	t.Run("Get failure", func(t *testing.T) {
		mock.ExpectQuery("SELECT").WillReturnError(backendErr)
		_, err := repo.Get(ctx, "r1")
		assert.ErrorIs(t, err, backendErr)
	})

	t.Run("Update on missing row maps to ErrNotFound", func(t *testing.T) {
		mock.ExpectExec("UPDATE studies SET analysis_json").
			WillReturnResult(sqlmock.NewResult(0, 0))
		err := repo.SetAnalysis(ctx, "missing", testAnalysis("missing"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("List failure", func(t *testing.T) {
		mock.ExpectQuery("ORDER BY rowid").WillReturnError(backendErr)
		_, err := repo.List(ctx)
		assert.ErrorIs(t, err, backendErr)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
