package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/ai"
	"github.com/spigell/skill-gap/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// jsonGenerator is implemented by generators that can constrain output to JSON.
type jsonGenerator interface {
	GenerateJSON(ctx context.Context, system, message string) (string, error)
}

const (
	defaultMaxSkills   = 15
	skillsSystemPrompt = "You extract required skills from job descriptions and answer with JSON only."
)

type SkillExtractor struct {
	generator contentGenerator
	maxSkills int
	logger    *zap.Logger
	maxLogLen int
}

func NewSkillExtractor(generator contentGenerator, maxSkills, maxLogLength int, logger *zap.Logger) *SkillExtractor {
	if maxSkills <= 0 {
		maxSkills = defaultMaxSkills
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SkillExtractor{
		generator: generator,
		maxSkills: maxSkills,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// ExtractSkills returns the skills the job description asks for. Output that
// cannot be parsed yields an error wrapping ai.ErrMalformedResponse.
func (s *SkillExtractor) ExtractSkills(ctx context.Context, jobDescription string) ([]string, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return nil, errors.New("job description is required")
	}

	prompt := render(skillsTemplate, map[string]string{
		"MAX_SKILLS":      strconv.Itoa(s.maxSkills),
		"JOB_DESCRIPTION": strings.TrimSpace(jobDescription),
	})

	s.logger.Debug("gemini skill extraction request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	var (
		raw string
		err error
	)
	if g, ok := s.generator.(jsonGenerator); ok {
		raw, err = g.GenerateJSON(ctx, skillsSystemPrompt, prompt)
	} else {
		raw, err = s.generator.GenerateContent(ctx, skillsSystemPrompt, prompt)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini skill extraction response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	skills, err := parseSkills(raw)
	if err != nil {
		return nil, err
	}

	if len(skills) > s.maxSkills {
		skills = skills[:s.maxSkills]
	}
	return skills, nil
}

// parseSkills accepts {"skills": [...]}, a bare array, or skills given as
// objects with a "name" field.
func parseSkills(raw string) ([]string, error) {
	cleaned := extractJSON(raw)

	var data any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: parse skills: %w", ai.ErrMalformedResponse, err)
	}

	var list []string
	switch val := data.(type) {
	case map[string]any:
		field, ok := val["skills"]
		if !ok {
			field = val["required_skills"]
		}
		list = coerceStrings(field)
	case []any:
		list = coerceStrings(val)
	}

	skills := dedupeFold(list)
	if len(skills) == 0 {
		return nil, fmt.Errorf("%w: no skills in response", ai.ErrMalformedResponse)
	}
	return skills, nil
}

func dedupeFold(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}
