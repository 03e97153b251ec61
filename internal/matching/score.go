package matching

import (
	"math"

	"github.com/spigell/skill-gap/internal/nlp"
)

// Reasoning is the categorical interpretation attached to a Result.
type Reasoning string

const (
	ReasoningHigh     Reasoning = "high alignment"
	ReasoningModerate Reasoning = "moderate alignment, possible gaps"
	ReasoningLow      Reasoning = "low alignment"

	ReasoningEmptyInput         Reasoning = "empty input"
	ReasoningInsufficientLength Reasoning = "insufficient length"
)

// IsGuard reports whether the reasoning comes from an input guard rather
// than from a similarity computation.
func (r Reasoning) IsGuard() bool {
	return r == ReasoningEmptyInput || r == ReasoningInsufficientLength
}

// Default policy constants. All of them are tunable per deployment.
const (
	DefaultSimilarityThreshold = 0.55
	DefaultHighAlignment       = 0.75
	DefaultModerateAlignment   = 0.50
	DefaultMinTokens           = 20
)

// Policy holds the tunable decision constants of the engine.
type Policy struct {
	// SimilarityThreshold is the minimum similarity for a semantic skill hit.
	SimilarityThreshold float64 `validate:"gt=0,lte=1"`
	// HighAlignment and ModerateAlignment are exclusive lower bounds of the reasoning bands.
	HighAlignment     float64 `validate:"gt=0,lte=1,gtfield=ModerateAlignment"`
	ModerateAlignment float64 `validate:"gte=0,lt=1"`
	// MinTokens is the minimum whitespace token count of each input text.
	MinTokens int `validate:"gte=0"`
}

// DefaultPolicy returns the documented default policy.
func DefaultPolicy() Policy {
	return Policy{
		SimilarityThreshold: DefaultSimilarityThreshold,
		HighAlignment:       DefaultHighAlignment,
		ModerateAlignment:   DefaultModerateAlignment,
		MinTokens:           DefaultMinTokens,
	}
}

// Interpret converts a whole-document similarity into a 0-100 score rounded
// to two decimals and its reasoning band.
func (p Policy) Interpret(similarity float64) (float64, Reasoning) {
	if math.IsNaN(similarity) {
		similarity = 0
	}
	similarity = math.Max(0, math.Min(1, similarity))
	score := math.Round(similarity*100*100) / 100

	switch {
	case similarity > p.HighAlignment:
		return score, ReasoningHigh
	case similarity > p.ModerateAlignment:
		return score, ReasoningModerate
	default:
		return score, ReasoningLow
	}
}

// guard checks the degenerate-input rules and returns the guard that fired.
func (p Policy) guard(resumeText, jobDescriptionText string) (Reasoning, bool) {
	// text made only of punctuation still normalizes to nothing.
	if nlp.Normalize(resumeText) == "" || nlp.Normalize(jobDescriptionText) == "" {
		return ReasoningEmptyInput, true
	}
	if nlp.TokenCount(resumeText) < p.MinTokens || nlp.TokenCount(jobDescriptionText) < p.MinTokens {
		return ReasoningInsufficientLength, true
	}
	return "", false
}
