package stages

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/ai"
	"github.com/spigell/skill-gap/internal/pipeline"
)

// Recommend finds learning resources for every missing skill.
type Recommend struct {
	pipeline.Toggle

	advisor ai.Advisor
	source  string
	logger  *zap.Logger
}

// NewRecommend builds the stage; source names the advisor in the stage status.
func NewRecommend(advisor ai.Advisor, source string, log *zap.Logger) *Recommend {
	return &Recommend{advisor: advisor, source: source, logger: stageLogger(log, pipeline.ActionRecommend)}
}

func (s *Recommend) Name() string { return pipeline.ActionRecommend.String() }

func (s *Recommend) Requires() []string {
	return []string{pipeline.KeyMissingSkills}
}

func (s *Recommend) Validate() error {
	if s.advisor == nil {
		return errors.New("recommend needs an advisor")
	}
	return nil
}

func (s *Recommend) Status() pipeline.Status {
	return pipeline.Status{
		Name:     s.Name(),
		Enabled:  s.IsEnabled(),
		Reason:   s.Reason(),
		Requires: s.Requires(),
		Details:  map[string]string{"source": s.source},
	}
}

type recommendInput struct {
	MissingSkills []string `mapstructure:"missing_skills"`
}

func (s *Recommend) Run(ctx context.Context, state pipeline.State) (pipeline.State, error) {
	var in recommendInput
	if err := state.Decode(&in); err != nil {
		return nil, err
	}

	skills := cleanSkills(in.MissingSkills)
	if len(skills) == 0 {
		return pipeline.State{
			pipeline.KeyRecommendations: []ai.SkillResources{},
			KeyRecommendationsMessage:   CongratulationsMessage,
		}, nil
	}

	recs, err := s.advisor.Recommend(ctx, skills)
	if err != nil {
		return nil, fmt.Errorf("recommend resources: %w", err)
	}

	failed := 0
	for _, rec := range recs {
		if rec.Error != "" {
			failed++
		}
	}
	s.logger.Info("resources recommended", zap.Int("skills", len(recs)), zap.Int("failed", failed))

	return pipeline.State{pipeline.KeyRecommendations: recs}, nil
}
