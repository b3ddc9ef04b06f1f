// Package domain contains core business entities and types for validation-gated
// brain MRI study analysis.
//
// A study is one imaging session for a patient, composed of one or more series
// (acquisition runs). Before any analysis is permitted, a study must pass the
// medical validation gate defined in the service layer.
package domain

import (
	"errors"
	"strings"
)

// SequenceType represents the clinical MRI sequence type of a series.
// It is a closed enumeration: comparison logic never falls back to raw
// string matching, and text conversion happens only at the serialization
// boundary.
type SequenceType string

const (
	SequenceT1         SequenceType = "T1"
	SequenceT1Contrast SequenceType = "T1c"
	SequenceT2         SequenceType = "T2"
	SequenceFLAIR      SequenceType = "FLAIR"
	SequenceUnknown    SequenceType = "unknown"
)

// RequiredSequences is the fixed set of sequence types a study must carry to
// pass the validation gate. T1-contrast is classified but deliberately not
// required: the rule set enforces T1, T2 and FLAIR only.
var RequiredSequences = []SequenceType{SequenceT1, SequenceT2, SequenceFLAIR}

// ExpectedModality is the only imaging modality this system accepts.
const ExpectedModality = "MR"

// EmptyStudyID is the sentinel study id produced when assembly receives no
// file metadata at all. The validation gate recognizes it and fails the study
// with a "no series" error instead of crashing upstream.
const EmptyStudyID = "EMPTY"

// AnonymousPatientID is the placeholder used when file metadata carries no
// patient identifier.
const AnonymousPatientID = "ANONYMOUS"

// IsValid reports whether the sequence type is a member of the closed set.
// Only known members may participate in gate decisions.
func (s SequenceType) IsValid() bool {
	switch s {
	case SequenceT1, SequenceT1Contrast, SequenceT2, SequenceFLAIR, SequenceUnknown:
		return true
	default:
		return false
	}
}

// IsKnown reports whether the sequence type was recognized by the classifier.
func (s SequenceType) IsKnown() bool {
	return s.IsValid() && s != SequenceUnknown
}

// IsRequired reports whether the sequence type belongs to the required set.
func (s SequenceType) IsRequired() bool {
	for _, req := range RequiredSequences {
		if s == req {
			return true
		}
	}
	return false
}

// String returns the string representation of the sequence type.
func (s SequenceType) String() string {
	return string(s)
}

// LogFields returns structured logging fields for gate-decision audit trails.
func (s SequenceType) LogFields() map[string]any {
	return map[string]any{
		"sequence_type": string(s),
		"known":         s.IsKnown(),
		"required":      s.IsRequired(),
	}
}

// ParseSequenceType converts serialized text back into the closed enumeration.
// The empty string maps to SequenceUnknown so records stored before a series
// was classified round-trip cleanly.
func ParseSequenceType(text string) (SequenceType, error) {
	switch SequenceType(text) {
	case SequenceT1:
		return SequenceT1, nil
	case SequenceT1Contrast:
		return SequenceT1Contrast, nil
	case SequenceT2:
		return SequenceT2, nil
	case SequenceFLAIR:
		return SequenceFLAIR, nil
	case SequenceUnknown, SequenceType(""):
		return SequenceUnknown, nil
	default:
		return SequenceUnknown, errors.New("unknown sequence type: " + text)
	}
}

// StudyState represents the lifecycle state of a stored study.
// There is no distinct "failed validation" state: invalid studies simply
// remain Uploaded until deleted.
type StudyState string

const (
	StateUploaded         StudyState = "UPLOADED"
	StateAnalysisComplete StudyState = "ANALYSIS_COMPLETE"
)

// IsValid reports whether the study state is a member of the closed set.
func (s StudyState) IsValid() bool {
	switch s {
	case StateUploaded, StateAnalysisComplete:
		return true
	default:
		return false
	}
}

// String returns the string representation of the study state.
func (s StudyState) String() string {
	return string(s)
}

// NormalizeModality trims and upper-cases a raw modality code from file
// metadata so the gate compares canonical forms.
func NormalizeModality(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
