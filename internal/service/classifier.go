package service

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/brain-mri-analysis-server/internal/domain"
)

// sequenceKeywords maps each sequence type to its detection keywords.
// Matching is ordered: earlier entries win, except for the T1 vs T1-contrast
// precedence handled explicitly in Classify.
var sequenceKeywords = []struct {
	sequence domain.SequenceType
	keywords []string
}{
	{domain.SequenceT1, []string{"t1", "t1w", "t1_weighted", "t1-weighted"}},
	{domain.SequenceT1Contrast, []string{"t1c", "t1ce", "t1+c", "t1_post", "t1_gad", "gad", "contrast", "post_contrast"}},
	{domain.SequenceT2, []string{"t2", "t2w", "t2_weighted", "t2-weighted"}},
	{domain.SequenceFLAIR, []string{"flair", "fl air", "t2_flair"}},
}

// contrastKeywords are the T1-contrast markers checked by the precedence rule.
var contrastKeywords = sequenceKeywords[1].keywords

// SequenceClassifier maps a free-text series description to a clinical MRI
// sequence type. Classification is a pure function of the description; the
// LRU cache is a memoization layer only and never changes the outcome.
type SequenceClassifier struct {
	logger *logrus.Logger
	cache  *lru.Cache[string, domain.SequenceType]
}

// NewSequenceClassifier creates a new sequence classifier.
func NewSequenceClassifier(logger *logrus.Logger) (*SequenceClassifier, error) {
	cache, err := lru.New[string, domain.SequenceType](1024)
	if err != nil {
		return nil, fmt.Errorf("creating classifier cache: %w", err)
	}
	return &SequenceClassifier{
		logger: logger,
		cache:  cache,
	}, nil
}

// Classify detects the MRI sequence type from a series description using
// case-insensitive substring matching against the fixed keyword table.
//
// Precedence rule: a description matching the generic T1 keywords is
// re-checked against the contrast markers first, so "t1 post gad" classifies
// as T1-contrast, never plain T1. No other sequence type has such a rule.
// Descriptions matching no keyword set classify as unknown.
func (c *SequenceClassifier) Classify(description string) domain.SequenceType {
	if cached, ok := c.cache.Get(description); ok {
		return cached
	}

	result := classify(description)
	c.cache.Add(description, result)

	c.logger.WithFields(logrus.Fields{
		"series_description": description,
		"sequence_type":      result.String(),
	}).Debug("Classified series description")

	return result
}

func classify(description string) domain.SequenceType {
	desc := strings.ToLower(description)

	for _, entry := range sequenceKeywords {
		for _, keyword := range entry.keywords {
			if !strings.Contains(desc, keyword) {
				continue
			}
			if entry.sequence == domain.SequenceT1 && matchesAny(desc, contrastKeywords) {
				return domain.SequenceT1Contrast
			}
			return entry.sequence
		}
	}

	return domain.SequenceUnknown
}

func matchesAny(desc string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(desc, keyword) {
			return true
		}
	}
	return false
}
