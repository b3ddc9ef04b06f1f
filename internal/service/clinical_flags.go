package service

import (
	"github.com/sirupsen/logrus"

	"github.com/brain-mri-analysis-server/internal/domain"
)

// Clinical decision thresholds. All comparisons are strictly greater-than:
// a value exactly at a threshold does not trigger the rule.
const (
	wholeTumorHighRiskML = 50.0
	enhancingHighRiskML  = 20.0
	necroticUrgentML     = 10.0
	idhWildtypeHighRisk  = 0.7
	egfrHighRisk         = 0.6
)

const urgencyReasonNecroticCore = "Large necrotic core may indicate high-grade glioma"

// ClinicalRiskRuleEngine derives risk flags from numeric analysis outputs
// using a fixed, ordered rule table. It is fully deterministic: the same
// inputs always produce the same flags with risk factors in the same order.
// Segmentation rules run before genotype rules.
type ClinicalRiskRuleEngine struct {
	logger *logrus.Logger
}

// NewClinicalRiskRuleEngine creates a new clinical risk rule engine.
func NewClinicalRiskRuleEngine(logger *logrus.Logger) *ClinicalRiskRuleEngine {
	return &ClinicalRiskRuleEngine{logger: logger}
}

// Evaluate applies the rule table to the given summaries. Either summary may
// be nil, in which case its rules are skipped. With no triggered rules the
// result is the benign zero verdict with an empty risk factor list.
func (e *ClinicalRiskRuleEngine) Evaluate(seg *domain.SegmentationSummary, gen *domain.GenotypeSummary) domain.ClinicalFlags {
	flags := domain.ClinicalFlags{
		RiskFactors: []string{},
	}

	if seg != nil {
		if seg.WholeTumorVolumeML > wholeTumorHighRiskML {
			flags.HighRisk = true
			flags.RiskFactors = append(flags.RiskFactors, "Large tumor volume (>50 mL)")
		}
		if seg.EnhancingVolumeML > enhancingHighRiskML {
			flags.HighRisk = true
			flags.RiskFactors = append(flags.RiskFactors, "Significant tumor enhancement")
		}
		if seg.NecroticCoreVolumeML > necroticUrgentML {
			flags.RequiresUrgentReview = true
			flags.RiskFactors = append(flags.RiskFactors, "Large necrotic core")
			if flags.UrgencyReason == "" {
				flags.UrgencyReason = urgencyReasonNecroticCore
			}
		}
	}

	if gen != nil {
		if gen.IDHWildtypeProb > idhWildtypeHighRisk {
			flags.HighRisk = true
			flags.RiskFactors = append(flags.RiskFactors, "IDH-wildtype (worse prognosis)")
		}
		if gen.EGFRAmplificationProb > egfrHighRisk {
			flags.HighRisk = true
			flags.RiskFactors = append(flags.RiskFactors, "EGFR amplification likely")
		}
	}

	e.logger.WithFields(logrus.Fields{
		"high_risk":              flags.HighRisk,
		"requires_urgent_review": flags.RequiresUrgentReview,
		"num_risk_factors":       len(flags.RiskFactors),
	}).Debug("Evaluated clinical risk rules")

	return flags
}
