package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/brain-mri-analysis-server/internal/database"
	"github.com/brain-mri-analysis-server/internal/domain"
)

// PostgresRepository is the shared-deployment study store backed by a pgx
// connection pool. Records are stored as JSONB documents; the seq column
// preserves registration order for listings.
type PostgresRepository struct {
	logger *logrus.Logger
	db     *database.DB
}

// NewPostgresRepository creates a study store on an established connection
// pool. Schema setup is the migration runner's job, not the repository's.
func NewPostgresRepository(db *database.DB, logger *logrus.Logger) *PostgresRepository {
	return &PostgresRepository{logger: logger, db: db}
}

// Register stores a new record, rejecting duplicate ids.
func (r *PostgresRepository) Register(ctx context.Context, record *domain.StudyRecord) error {
	studyJSON, err := json.Marshal(record.Study)
	if err != nil {
		return fmt.Errorf("encoding study: %w", err)
	}
	validationJSON, err := json.Marshal(record.Validation)
	if err != nil {
		return fmt.Errorf("encoding validation result: %w", err)
	}
	var analysisJSON []byte
	if record.Analysis != nil {
		analysisJSON, err = json.Marshal(record.Analysis)
		if err != nil {
			return fmt.Errorf("encoding analysis result: %w", err)
		}
	}

	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO studies (id, study, validation, analysis, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		record.ID, studyJSON, validationJSON, analysisJSON, record.UploadedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrStudyExists
		}
		return fmt.Errorf("inserting study record: %w", err)
	}
	return nil
}

// Get returns the record for id, or domain.ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*domain.StudyRecord, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT id, study, validation, analysis, uploaded_at
		 FROM studies WHERE id = $1`, id)

	record, err := scanPostgresRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

// SetValidation replaces the stored validation verdict.
func (r *PostgresRepository) SetValidation(ctx context.Context, id string, validation *domain.ValidationResult) error {
	payload, err := json.Marshal(validation)
	if err != nil {
		return fmt.Errorf("encoding validation result: %w", err)
	}
	return r.update(ctx, `UPDATE studies SET validation = $1 WHERE id = $2`, payload, id)
}

// SetAnalysis replaces the stored analysis result.
func (r *PostgresRepository) SetAnalysis(ctx context.Context, id string, analysis *domain.AnalysisResult) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encoding analysis result: %w", err)
	}
	return r.update(ctx, `UPDATE studies SET analysis = $1 WHERE id = $2`, payload, id)
}

// Delete removes the record for id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.update(ctx, `DELETE FROM studies WHERE id = $1`, id)
}

func (r *PostgresRepository) update(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating study record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns summaries in registration order.
func (r *PostgresRepository) List(ctx context.Context) ([]domain.StudySummary, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, study, validation, analysis, uploaded_at
		 FROM studies ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing study records: %w", err)
	}
	defer rows.Close()

	summaries := []domain.StudySummary{}
	for rows.Next() {
		record, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summarize(record))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating study records: %w", err)
	}
	return summaries, nil
}

// Close closes the underlying connection pool.
func (r *PostgresRepository) Close() error {
	r.db.Close()
	return nil
}

func scanPostgresRecord(row pgx.Row) (*domain.StudyRecord, error) {
	var (
		record         domain.StudyRecord
		studyJSON      []byte
		validationJSON []byte
		analysisJSON   []byte
	)
	if err := row.Scan(&record.ID, &studyJSON, &validationJSON, &analysisJSON, &record.UploadedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scanning study record: %w", err)
	}

	record.Study = &domain.Study{}
	if err := json.Unmarshal(studyJSON, record.Study); err != nil {
		return nil, fmt.Errorf("decoding study: %w", err)
	}
	record.Validation = &domain.ValidationResult{}
	if err := json.Unmarshal(validationJSON, record.Validation); err != nil {
		return nil, fmt.Errorf("decoding validation result: %w", err)
	}
	if len(analysisJSON) > 0 {
		record.Analysis = &domain.AnalysisResult{}
		if err := json.Unmarshal(analysisJSON, record.Analysis); err != nil {
			return nil, fmt.Errorf("decoding analysis result: %w", err)
		}
	}
	return &record, nil
}
