package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/brain-mri-analysis-server/internal/domain"
)

// SQLiteRepository is an embedded, file-backed study store. Records are kept
// as JSON documents keyed by study id; rowid preserves registration order.
type SQLiteRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

// NewSQLiteRepository opens (and if needed creates) the database at path and
// ensures the schema exists.
func NewSQLiteRepository(path string, logger *logrus.Logger) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	repo := &SQLiteRepository{logger: logger, db: db}
	if err := repo.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	logger.WithField("path", path).Info("Opened SQLite study store")
	return repo, nil
}

func (r *SQLiteRepository) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS studies (
		id              TEXT PRIMARY KEY,
		study_json      TEXT NOT NULL,
		validation_json TEXT NOT NULL,
		analysis_json   TEXT,
		uploaded_at     TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_studies_uploaded_at ON studies(uploaded_at);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Register stores a new record, rejecting duplicate ids.
func (r *SQLiteRepository) Register(ctx context.Context, record *domain.StudyRecord) error {
	studyJSON, validationJSON, analysisJSON, err := encodeRecord(record)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO studies (id, study_json, validation_json, analysis_json, uploaded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		record.ID, studyJSON, validationJSON, analysisJSON, record.UploadedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrStudyExists
		}
		return fmt.Errorf("inserting study record: %w", err)
	}
	return nil
}

// Get returns the record for id, or domain.ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*domain.StudyRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, study_json, validation_json, analysis_json, uploaded_at
		 FROM studies WHERE id = ?`, id)
	return scanRecord(row)
}

// SetValidation replaces the stored validation verdict.
func (r *SQLiteRepository) SetValidation(ctx context.Context, id string, validation *domain.ValidationResult) error {
	payload, err := json.Marshal(validation)
	if err != nil {
		return fmt.Errorf("encoding validation result: %w", err)
	}
	return r.update(ctx, `UPDATE studies SET validation_json = ? WHERE id = ?`, string(payload), id)
}

// SetAnalysis replaces the stored analysis result.
func (r *SQLiteRepository) SetAnalysis(ctx context.Context, id string, analysis *domain.AnalysisResult) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encoding analysis result: %w", err)
	}
	return r.update(ctx, `UPDATE studies SET analysis_json = ? WHERE id = ?`, string(payload), id)
}

// Delete removes the record for id.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	return r.update(ctx, `DELETE FROM studies WHERE id = ?`, id)
}

func (r *SQLiteRepository) update(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating study record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns summaries in registration order.
func (r *SQLiteRepository) List(ctx context.Context) ([]domain.StudySummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, study_json, validation_json, analysis_json, uploaded_at
		 FROM studies ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing study records: %w", err)
	}
	defer rows.Close()

	summaries := []domain.StudySummary{}
	for rows.Next() {
		record, err := scanRecord(rows)
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

// Close closes the underlying database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.StudyRecord, error) {
	var (
		record         domain.StudyRecord
		studyJSON      string
		validationJSON string
		analysisJSON   sql.NullString
		uploadedAt     time.Time
	)
	if err := row.Scan(&record.ID, &studyJSON, &validationJSON, &analysisJSON, &uploadedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning study record: %w", err)
	}
	record.UploadedAt = uploadedAt

	record.Study = &domain.Study{}
	if err := json.Unmarshal([]byte(studyJSON), record.Study); err != nil {
		return nil, fmt.Errorf("decoding study: %w", err)
	}
	record.Validation = &domain.ValidationResult{}
	if err := json.Unmarshal([]byte(validationJSON), record.Validation); err != nil {
		return nil, fmt.Errorf("decoding validation result: %w", err)
	}
	if analysisJSON.Valid && analysisJSON.String != "" {
		record.Analysis = &domain.AnalysisResult{}
		if err := json.Unmarshal([]byte(analysisJSON.String), record.Analysis); err != nil {
			return nil, fmt.Errorf("decoding analysis result: %w", err)
		}
	}
	return &record, nil
}

func encodeRecord(record *domain.StudyRecord) (study, validation string, analysis sql.NullString, err error) {
	studyPayload, err := json.Marshal(record.Study)
	if err != nil {
		return "", "", sql.NullString{}, fmt.Errorf("encoding study: %w", err)
	}
	validationPayload, err := json.Marshal(record.Validation)
	if err != nil {
		return "", "", sql.NullString{}, fmt.Errorf("encoding validation result: %w", err)
	}
	if record.Analysis != nil {
		analysisPayload, err := json.Marshal(record.Analysis)
		if err != nil {
			return "", "", sql.NullString{}, fmt.Errorf("encoding analysis result: %w", err)
		}
		analysis = sql.NullString{String: string(analysisPayload), Valid: true}
	}
	return string(studyPayload), string(validationPayload), analysis, nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures in the error text;
	// matching on it avoids a driver-specific error type dependency.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
