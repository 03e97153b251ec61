// Package stages holds the concrete pipeline stages. Each one reads its typed
// inputs from the state and returns only the keys it writes.
package stages

import (
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/logger"
	"github.com/spigell/skill-gap/internal/pipeline"
)

// Additional keys written next to the well-known pipeline keys.
const (
	KeyExtractionError        = "extraction_error"
	KeyMatchEvidence          = "match_evidence"
	KeyRecommendationsMessage = "recommendations_message"
	KeyCoverLetterError       = pipeline.KeyCoverLetter + "_error"
	KeyInterviewQAError       = pipeline.KeyInterviewQA + "_error"
)

// Values of pipeline.KeySkillsSource.
const (
	SkillsFromRequest   = "request"
	SkillsFromExtractor = "extracted"
	SkillsFromDefaults  = "default"
)

const CongratulationsMessage = "Congratulations! You have all the required skills for this job."

func stageLogger(log *zap.Logger, a pipeline.Action) *zap.Logger {
	return logger.WithStage(log, a.String())
}

func cleanSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		if skill = strings.TrimSpace(skill); skill != "" {
			out = append(out, skill)
		}
	}
	return out
}
