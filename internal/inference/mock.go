// Package inference provides the analysis collaborators invoked by the
// lifecycle orchestrator: tumor segmentation, genotype prediction and
// explainability. The mock model stands in for ML backends that are not yet
// deployed; its outputs are seeded per study so repeated runs agree.
package inference

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brain-mri-analysis-server/internal/domain"
)

// MockModel produces plausible analysis outputs without any ML runtime.
// Values are drawn from fixed clinical ranges using a per-study seed, so the
// same study always yields the same numbers.
type MockModel struct {
	logger *logrus.Logger
}

// NewMockModel creates a new mock analysis model.
func NewMockModel(logger *logrus.Logger) *MockModel {
	return &MockModel{logger: logger}
}

func (m *MockModel) rng(study *domain.Study, salt string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(salt))
	h.Write([]byte(study.UID))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

// Segment returns seeded tumor compartment volumes in milliliters.
func (m *MockModel) Segment(ctx context.Context, study *domain.Study) (*domain.SegmentationSummary, error) {
	r := m.rng(study, "segmentation")

	necrotic := 2 + r.Float64()*13
	enhancing := 5 + r.Float64()*25
	edema := 10 + r.Float64()*30

	summary := &domain.SegmentationSummary{
		WholeTumorVolumeML:   necrotic + enhancing + edema,
		EnhancingVolumeML:    enhancing,
		NecroticCoreVolumeML: necrotic,
		Confidence:           0.82 + r.Float64()*0.13,
	}

	m.logger.WithFields(logrus.Fields{
		"study_uid":      study.UID,
		"whole_tumor_ml": summary.WholeTumorVolumeML,
		"enhancing_ml":   summary.EnhancingVolumeML,
		"necrotic_ml":    summary.NecroticCoreVolumeML,
		"confidence":     summary.Confidence,
	}).Debug("Mock segmentation complete")

	return summary, nil
}

// PredictGenotype returns seeded molecular marker probabilities.
func (m *MockModel) PredictGenotype(ctx context.Context, study *domain.Study) (*domain.GenotypeSummary, error) {
	r := m.rng(study, "genotype")

	idhMutation := 0.3 + r.Float64()*0.4
	summary := &domain.GenotypeSummary{
		IDHMutationProb:       idhMutation,
		IDHWildtypeProb:       1 - idhMutation,
		MGMTMethylationProb:   0.4 + r.Float64()*0.4,
		EGFRAmplificationProb: 0.2 + r.Float64()*0.4,
		Confidence:            0.70 + r.Float64()*0.20,
	}

	m.logger.WithFields(logrus.Fields{
		"study_uid":    study.UID,
		"idh_mutation": summary.IDHMutationProb,
		"confidence":   summary.Confidence,
	}).Debug("Mock genotype prediction complete")

	return summary, nil
}

// Explain composes a human-readable report over the numeric outputs.
func (m *MockModel) Explain(ctx context.Context, study *domain.Study, seg *domain.SegmentationSummary, gen *domain.GenotypeSummary) (*domain.ExplainabilitySummary, error) {
	var text strings.Builder
	var features []string

	fmt.Fprintf(&text, "Automated analysis summary for study %s.", study.UID)

	if seg != nil {
		fmt.Fprintf(&text,
			" Segmentation identified a whole tumor volume of %.1f mL, including %.1f mL of enhancing tissue and %.1f mL of necrotic core.",
			seg.WholeTumorVolumeML, seg.EnhancingVolumeML, seg.NecroticCoreVolumeML)

		if seg.EnhancingVolumeML > 10 {
			features = append(features, "Large enhancing tumor component")
		}
		if seg.NecroticCoreVolumeML > 5 {
			features = append(features, "Significant necrotic core")
		}
		features = append(features, "Tumor location in detected region")
	}

	if gen != nil {
		fmt.Fprintf(&text,
			" Genotype prediction estimates an IDH mutation probability of %.0f%% and an MGMT methylation probability of %.0f%%.",
			gen.IDHMutationProb*100, gen.MGMTMethylationProb*100)

		features = append(features,
			"Signal intensity patterns",
			"T2/FLAIR signal characteristics",
			"Tumor heterogeneity index")
	}

	if seg == nil && gen == nil {
		text.WriteString(" No analysis outputs were available for explanation.")
	}

	return &domain.ExplainabilitySummary{
		ExplanationText:   text.String(),
		ImportantFeatures: features,
	}, nil
}
