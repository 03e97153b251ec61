package stages

import (
	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/ai"
	"github.com/spigell/skill-gap/internal/notify"
	"github.com/spigell/skill-gap/internal/pipeline"
)

// Deps are the collaborators the stages are built from. A nil collaborator
// leaves its stage registered but disabled.
type Deps struct {
	Extractor     ai.SkillExtractor
	DefaultSkills []string
	Matcher       Matcher
	Advisor       ai.Advisor
	AdvisorSource string
	Writer        ai.Writer
	Mailer        notify.Mailer
	Logger        *zap.Logger
}

// All returns every stage in plan order.
func All(d Deps) []pipeline.Stage {
	extract := NewExtractSkills(d.Extractor, d.DefaultSkills, d.Logger)
	match := NewMatch(d.Matcher, d.Logger)
	recommend := NewRecommend(d.Advisor, d.AdvisorSource, d.Logger)
	coverLetter := NewCoverLetter(d.Writer, d.Logger)
	interviewQA := NewInterviewQA(d.Writer, d.Logger)
	mail := NewNotify(d.Mailer, d.Logger)

	if d.Extractor == nil && len(extract.defaults) == 0 {
		extract.Disable("no skill extractor and no default skills")
	}
	if d.Matcher == nil {
		match.Disable("matching engine is not configured")
	}
	if d.Advisor == nil {
		recommend.Disable("no learning-resource advisor configured")
	}
	if d.Writer == nil {
		coverLetter.Disable("document writer is not configured")
		interviewQA.Disable("document writer is not configured")
	}
	if d.Mailer == nil {
		mail.Disable("mailer is not configured")
	}

	return []pipeline.Stage{extract, match, recommend, coverLetter, interviewQA, mail}
}

// Select returns the stages named by actions, in the given order.
func Select(all []pipeline.Stage, actions []pipeline.Action) []pipeline.Stage {
	byName := make(map[string]pipeline.Stage, len(all))
	for _, stage := range all {
		byName[stage.Name()] = stage
	}

	out := make([]pipeline.Stage, 0, len(actions))
	for _, action := range actions {
		if stage, ok := byName[action.String()]; ok {
			out = append(out, stage)
		}
	}
	return out
}
