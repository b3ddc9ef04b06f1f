package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brain-mri-analysis-server/internal/domain"
	"github.com/brain-mri-analysis-server/internal/ingest"
)

// registerStudyRequest carries the file metadata records extracted by the
// intake collaborator for one imaging session.
type registerStudyRequest struct {
	Files []domain.FileMetadata `json:"files"`
}

// inferenceRequest selects a registered study and the collaborators to run.
// Option pointers distinguish "omitted" from "explicitly false"; omitted
// options take their defaults, and bypass always defaults to off.
type inferenceRequest struct {
	StudyID             string `json:"study_id" binding:"required"`
	RunSegmentation     *bool  `json:"run_segmentation"`
	RunGenotype         *bool  `json:"run_genotype_prediction"`
	GenerateExplanation *bool  `json:"generate_explanations"`
	BypassValidation    bool   `json:"bypass_validation"`
}

func (r *inferenceRequest) options() domain.InferenceOptions {
	opts := domain.DefaultInferenceOptions()
	if r.RunSegmentation != nil {
		opts.RunSegmentation = *r.RunSegmentation
	}
	if r.RunGenotype != nil {
		opts.RunGenotype = *r.RunGenotype
	}
	if r.GenerateExplanation != nil {
		opts.GenerateExplanation = *r.GenerateExplanation
	}
	opts.BypassValidation = r.BypassValidation
	return opts
}

// handleRegisterStudy assembles a study from intake metadata, validates it
// and stores it. Invalid studies are registered too; the verdict in the
// response tells the client whether analysis will be permitted.
func (s *Server) handleRegisterStudy(c *gin.Context) {
	var req registerStudyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	study := s.assembler.Assemble(req.Files)
	validation := s.gate.Validate(study)

	studyID := uuid.NewString()
	record, err := s.orchestrator.Register(c.Request.Context(), studyID, study, validation)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"study_id":   record.ID,
		"study_uid":  study.UID,
		"num_series": len(study.Series),
		"validation": validation,
		"summary":    s.gate.Summary(validation),
	})
}

// handleListStudies returns summaries of every stored study.
func (s *Server) handleListStudies(c *gin.Context) {
	summaries, err := s.orchestrator.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"studies": summaries,
		"count":   len(summaries),
	})
}

// handleGetStudy returns the full stored record for a study.
func (s *Server) handleGetStudy(c *gin.Context) {
	record, err := s.orchestrator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// handleGetValidation returns the stored validation verdict plus its
// human-readable summary.
func (s *Server) handleGetValidation(c *gin.Context) {
	record, err := s.orchestrator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"study_id":   record.ID,
		"validation": record.Validation,
		"summary":    s.gate.Summary(record.Validation),
	})
}

// handleRevalidate reruns the validation gate against the stored study.
func (s *Server) handleRevalidate(c *gin.Context) {
	id := c.Param("id")
	validation, err := s.orchestrator.Revalidate(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"study_id":   id,
		"validation": validation,
		"summary":    s.gate.Summary(validation),
	})
}

// handleUploadFiles stores raw uploads (single files or zip archives) for a
// registered study. Image bytes are stored, never decoded; metadata
// extraction stays with the intake collaborator.
func (s *Server) handleUploadFiles(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.orchestrator.Get(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form: " + err.Error()})
		return
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	var stored []string
	dicomCount := 0
	for _, upload := range uploads {
		src, err := upload.Open()
		if err != nil {
			s.respondError(c, err)
			return
		}
		paths, err := s.store.Save(id, upload.Filename, src)
		src.Close()
		if err != nil {
			s.respondError(c, err)
			return
		}
		for _, path := range paths {
			stored = append(stored, path)
			if ingest.IsDICOMFile(path) {
				dicomCount++
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"study_id":     id,
		"num_stored":   len(stored),
		"num_dicom":    dicomCount,
		"stored_files": stored,
	})
}

// handleInference triggers a gate-checked analysis run.
func (s *Server) handleInference(c *gin.Context) {
	var req inferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := s.orchestrator.RequestInference(c.Request.Context(), req.StudyID, req.options())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleGetResults returns the stored analysis result for a study.
func (s *Server) handleGetResults(c *gin.Context) {
	record, err := s.orchestrator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if record.Analysis == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no analysis results for study"})
		return
	}
	c.JSON(http.StatusOK, record.Analysis)
}

// handleDeleteStudy removes a study and releases its stored files.
func (s *Server) handleDeleteStudy(c *gin.Context) {
	id := c.Param("id")
	if err := s.orchestrator.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"study_id": id,
		"deleted":  true,
	})
}
