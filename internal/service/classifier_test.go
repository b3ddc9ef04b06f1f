package service

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/brain-mri-analysis-server/internal/domain"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestSequenceClassifier_Classify(t *testing.T) {
	classifier, err := NewSequenceClassifier(newTestLogger())
	require.NoError(t, err)

	tests := []struct {
		name        string
		description string
		want        domain.SequenceType
	}{
		{"Plain T1", "AX T1 SE", domain.SequenceT1},
		{"Uppercase T1 weighted", "T1_WEIGHTED SAG", domain.SequenceT1},
		{"Hyphenated T1", "sag t1-weighted", domain.SequenceT1},
		{"T1 with contrast token", "AX T1C", domain.SequenceT1Contrast},
		{"T1CE token", "t1ce axial", domain.SequenceT1Contrast},
		{"T1 plus C", "T1+C MPRAGE", domain.SequenceT1Contrast},
		{"T1 post contrast phrase", "T1 POST_CONTRAST", domain.SequenceT1Contrast},
		{"T1 with gadolinium marker", "AX T1 GAD", domain.SequenceT1Contrast},
		{"Generic contrast without t1", "CONTRAST ENHANCED", domain.SequenceT1Contrast},
		{"Plain T2", "AX T2 TSE", domain.SequenceT2},
		{"T2 weighted", "t2_weighted cor", domain.SequenceT2},
		{"FLAIR", "AX FLAIR", domain.SequenceFLAIR},
		{"FLAIR with space", "fl air axial", domain.SequenceFLAIR},
		{"Unrelated description", "DWI b1000", domain.SequenceUnknown},
		{"Localizer", "3-plane localizer", domain.SequenceUnknown},
		{"Empty description", "", domain.SequenceUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.Classify(tt.description)
			if got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.description, got, tt.want)
			}
		})
	}
}

func TestSequenceClassifier_ContrastPrecedence(t *testing.T) {
	classifier, err := NewSequenceClassifier(newTestLogger())
	require.NoError(t, err)

	// Any description matching both the generic T1 keywords and a contrast
	// marker must classify as T1-contrast, never plain T1.
	descriptions := []string{
		"T1 gad axial",
		"t1 post_contrast",
		"SAG T1 CONTRAST",
		"t1_post mprage",
	}
	for _, desc := range descriptions {
		if got := classifier.Classify(desc); got != domain.SequenceT1Contrast {
			t.Errorf("Classify(%q) = %v, want %v", desc, got, domain.SequenceT1Contrast)
		}
	}
}

func TestSequenceClassifier_Deterministic(t *testing.T) {
	classifier, err := NewSequenceClassifier(newTestLogger())
	require.NoError(t, err)

	// Repeated calls, including cache hits, must agree.
	for i := 0; i < 3; i++ {
		require.Equal(t, domain.SequenceFLAIR, classifier.Classify("AX FLAIR"))
		require.Equal(t, domain.SequenceUnknown, classifier.Classify("scout"))
	}
}
