package stages

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/ai"
	"github.com/spigell/skill-gap/internal/pipeline"
)

// ExtractSkills fills target_skills from the job description when the caller
// supplied none.
type ExtractSkills struct {
	pipeline.Toggle

	extractor ai.SkillExtractor
	defaults  []string
	logger    *zap.Logger
}

// NewExtractSkills builds the stage. defaults replace the extractor output
// when the model response cannot be parsed.
func NewExtractSkills(extractor ai.SkillExtractor, defaults []string, log *zap.Logger) *ExtractSkills {
	return &ExtractSkills{
		extractor: extractor,
		defaults:  cleanSkills(defaults),
		logger:    stageLogger(log, pipeline.ActionExtractSkills),
	}
}

func (s *ExtractSkills) Name() string { return pipeline.ActionExtractSkills.String() }

func (s *ExtractSkills) Requires() []string {
	return []string{pipeline.KeyJobDescriptionText}
}

func (s *ExtractSkills) Validate() error {
	if s.extractor == nil && len(s.defaults) == 0 {
		return errors.New("extract_skills needs a skill extractor or default skills")
	}
	return nil
}

type extractInput struct {
	JobDescriptionText string   `mapstructure:"job_description_text"`
	TargetSkills       []string `mapstructure:"target_skills"`
}

func (s *ExtractSkills) Run(ctx context.Context, state pipeline.State) (pipeline.State, error) {
	var in extractInput
	if err := state.Decode(&in); err != nil {
		return nil, err
	}

	if skills := cleanSkills(in.TargetSkills); len(skills) > 0 {
		return pipeline.State{
			pipeline.KeyTargetSkills: skills,
			pipeline.KeySkillsSource: SkillsFromRequest,
		}, nil
	}

	if s.extractor == nil {
		return s.fallback(nil), nil
	}

	skills, err := s.extractor.ExtractSkills(ctx, in.JobDescriptionText)
	switch {
	case errors.Is(err, ai.ErrMalformedResponse):
		s.logger.Warn("skill extraction returned malformed output, using default skills", zap.Error(err))
		return s.fallback(err), nil
	case err != nil:
		return nil, fmt.Errorf("extract skills: %w", err)
	}

	skills = cleanSkills(skills)
	if len(skills) == 0 {
		s.logger.Warn("no skills extracted, using default skills")
		return s.fallback(errors.New("no skills extracted")), nil
	}

	s.logger.Info("skills extracted", zap.Strings("skills", skills))
	return pipeline.State{
		pipeline.KeyTargetSkills: skills,
		pipeline.KeySkillsSource: SkillsFromExtractor,
	}, nil
}

func (s *ExtractSkills) fallback(cause error) pipeline.State {
	update := pipeline.State{
		pipeline.KeyTargetSkills: slices.Clone(s.defaults),
		pipeline.KeySkillsSource: SkillsFromDefaults,
	}
	if cause != nil {
		update[KeyExtractionError] = cause.Error()
	}
	return update
}
