package service

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/brain-mri-analysis-server/internal/domain"
)

// StudyAssembler groups per-file metadata records into Series and Study
// aggregates. It never touches raw image bytes; the file intake collaborator
// supplies already-extracted, deduplicated header fields.
type StudyAssembler struct {
	logger     *logrus.Logger
	classifier *SequenceClassifier
}

// NewStudyAssembler creates a new study assembler.
func NewStudyAssembler(logger *logrus.Logger, classifier *SequenceClassifier) *StudyAssembler {
	return &StudyAssembler{
		logger:     logger,
		classifier: classifier,
	}
}

// Assemble builds a Study from the given file metadata records.
//
// Files are grouped by series UID in first-seen order. Within each series,
// files are ordered by instance number ascending; files without an instance
// number sort after all indexed files, keeping their relative input order.
// Study-level fields are taken from the first file that provides them.
//
// An empty input yields the sentinel empty study rather than an error, so the
// validation gate can fail it with a proper "no series" verdict downstream.
func (a *StudyAssembler) Assemble(files []domain.FileMetadata) *domain.Study {
	if len(files) == 0 {
		a.logger.Warn("Assembling study from empty file set")
		return &domain.Study{
			UID:       domain.EmptyStudyID,
			PatientID: domain.AnonymousPatientID,
			Series:    []domain.Series{},
		}
	}

	study := &domain.Study{
		UID:       files[0].StudyUID,
		PatientID: domain.AnonymousPatientID,
	}

	groups := make(map[string][]domain.FileMetadata)
	var order []string
	for _, file := range files {
		if study.PatientID == domain.AnonymousPatientID && file.PatientID != "" {
			study.PatientID = file.PatientID
		}
		if study.StudyDate == "" && file.StudyDate != "" {
			study.StudyDate = file.StudyDate
		}
		if study.Description == "" && file.StudyDesc != "" {
			study.Description = file.StudyDesc
		}
		if _, seen := groups[file.SeriesUID]; !seen {
			order = append(order, file.SeriesUID)
		}
		groups[file.SeriesUID] = append(groups[file.SeriesUID], file)
	}

	for _, uid := range order {
		study.Series = append(study.Series, a.buildSeries(uid, groups[uid]))
	}

	a.logger.WithFields(logrus.Fields{
		"study_uid":  study.UID,
		"patient_id": study.PatientID,
		"num_series": len(study.Series),
		"num_files":  len(files),
	}).Info("Assembled study from file metadata")

	return study
}

// buildSeries orders one series' files and classifies its sequence type from
// the series description of the first file.
func (a *StudyAssembler) buildSeries(uid string, files []domain.FileMetadata) domain.Series {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].HasInstanceIndex != files[j].HasInstanceIndex {
			return files[i].HasInstanceIndex
		}
		if !files[i].HasInstanceIndex {
			return false
		}
		return files[i].InstanceNumber < files[j].InstanceNumber
	})

	paths := make([]string, len(files))
	for i, file := range files {
		paths[i] = file.FilePath
	}

	return domain.Series{
		UID:          uid,
		Description:  files[0].SeriesDesc,
		Modality:     files[0].Modality,
		SequenceType: a.classifier.Classify(files[0].SeriesDesc),
		FilePaths:    paths,
		SliceCount:   len(paths),
	}
}
