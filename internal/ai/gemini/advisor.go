package gemini

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/ai"
	"github.com/spigell/skill-gap/internal/utils"
)

const (
	advisorSystemPrompt  = "You are a helpful assistant that suggests YouTube learning resources."
	maxResourcesPerSkill = 2

	// ParsingFailed marks a skill whose resources could not be read from the model output.
	ParsingFailed = "parsing failed"
)

var (
	reSkillHeader = regexp.MustCompile(`(?i)^[\s*#>-]*skill:\s*(.+?)[\s*]*$`)
	reResource    = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)\s]+)\)(?:\s*[-–—]+\s*(?:🎥\s*)?Channel:\s*(.+))?`)
)

// Advisor asks the model for learning resources.
type Advisor struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewAdvisor(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Advisor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisor{generator: generator, logger: logger, maxLogLen: maxLogLength}
}

// Recommend returns one entry per requested skill, in order. Skills the
// output says nothing usable about carry the ParsingFailed marker.
func (a *Advisor) Recommend(ctx context.Context, skills []string) ([]ai.SkillResources, error) {
	if len(skills) == 0 {
		return []ai.SkillResources{}, nil
	}

	prompt := render(advisorTemplate, map[string]string{"SKILLS": strings.Join(skills, ", ")})
	raw, err := a.generator.GenerateContent(ctx, advisorSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("gemini advisor response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	parsed := parseResources(raw)

	out := make([]ai.SkillResources, 0, len(skills))
	for _, skill := range skills {
		entry := ai.SkillResources{Skill: skill, Resources: parsed[skillKey(skill)]}
		if len(entry.Resources) == 0 {
			entry.Resources = []ai.Resource{}
			entry.Error = ParsingFailed
			a.logger.Warn("no resources parsed for skill", zap.String("skill", skill))
		}
		out = append(out, entry)
	}
	return out, nil
}

// parseResources reads "Skill: X" headers followed by
// "- [title](url) - Channel: name" lines, keyed by skillKey.
func parseResources(raw string) map[string][]ai.Resource {
	out := make(map[string][]ai.Resource)
	current := ""

	for _, line := range strings.Split(raw, "\n") {
		if m := reSkillHeader.FindStringSubmatch(line); m != nil {
			current = skillKey(m[1])
			continue
		}
		if current == "" {
			continue
		}
		m := reResource.FindStringSubmatch(line)
		if m == nil || len(out[current]) >= maxResourcesPerSkill {
			continue
		}
		out[current] = append(out[current], ai.Resource{
			Title:   strings.TrimSpace(m[1]),
			URL:     strings.TrimSpace(m[2]),
			Channel: strings.Trim(strings.TrimSpace(m[3]), "*"),
		})
	}
	return out
}

func skillKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.Trim(s, "*` ")), " "))
}
