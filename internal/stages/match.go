package stages

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/matching"
	"github.com/spigell/skill-gap/internal/pipeline"
)

// Matcher is satisfied by *matching.Engine.
type Matcher interface {
	Match(ctx context.Context, req matching.Request) (*matching.Result, error)
}

// Match scores the résumé and records the missing skills.
type Match struct {
	pipeline.Toggle

	matcher Matcher
	logger  *zap.Logger
}

func NewMatch(matcher Matcher, log *zap.Logger) *Match {
	return &Match{matcher: matcher, logger: stageLogger(log, pipeline.ActionMatch)}
}

func (s *Match) Name() string { return pipeline.ActionMatch.String() }

func (s *Match) Requires() []string {
	return []string{pipeline.KeyResumeText, pipeline.KeyJobDescriptionText}
}

func (s *Match) Validate() error {
	if s.matcher == nil {
		return errors.New("match needs a matcher")
	}
	return nil
}

func (s *Match) Run(ctx context.Context, state pipeline.State) (pipeline.State, error) {
	var req matching.Request
	if err := state.Decode(&req); err != nil {
		return nil, err
	}

	res, err := s.matcher.Match(ctx, req)
	if err != nil {
		return nil, err
	}

	missing := res.MissingSkills
	if missing == nil {
		missing = []string{}
	}

	s.logger.Info("resume matched",
		zap.Float64("score", res.Score),
		zap.String("reasoning", string(res.Reasoning)),
		zap.Int("missing", len(missing)),
	)

	update := pipeline.State{
		pipeline.KeyScore:         res.Score,
		pipeline.KeyMissingSkills: missing,
		pipeline.KeyReasoning:     string(res.Reasoning),
	}
	if len(res.Evidence) > 0 {
		update[KeyMatchEvidence] = res.Evidence
	}
	return update, nil
}
