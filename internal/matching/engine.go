// Package matching scores a résumé against a job description and decides
// which target skills the résumé does not evidence.
package matching

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/nlp"
)

// Request is a single match request.
type Request struct {
	ResumeText         string   `json:"resume_text" mapstructure:"resume_text"`
	JobDescriptionText string   `json:"job_description_text" mapstructure:"job_description_text"`
	TargetSkills       []string `json:"target_skills" mapstructure:"target_skills" validate:"dive,notblank"`
}

// Result is the canonical outcome of a match.
type Result struct {
	Score         float64         `json:"score"`
	MissingSkills []string        `json:"missing_skills"`
	Reasoning     Reasoning       `json:"reasoning"`
	Evidence      []SkillEvidence `json:"evidence,omitempty"`
}

// Engine is safe for concurrent use: it only holds the embedder and the
// read-only policy.
type Engine struct {
	embedder Embedder
	policy   Policy
	chunking nlp.ChunkOptions
	validate *validator.Validate
	logger   *zap.Logger
}

type Option func(*Engine)

func WithPolicy(policy Policy) Option {
	return func(e *Engine) { e.policy = policy }
}

// WithSkillsSection makes the chunker append the résumé "Skills" section as extra chunks.
func WithSkillsSection(enabled bool) Option {
	return func(e *Engine) { e.chunking.SkillsSection = enabled }
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func New(embedder Embedder, opts ...Option) (*Engine, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	e := &Engine{
		embedder: embedder,
		policy:   DefaultPolicy(),
		chunking: nlp.ChunkOptions{SkillsSection: true},
		validate: validator.New(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.validate.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return nil, fmt.Errorf("register validation: %w", err)
	}
	if err := e.validate.Struct(e.policy); err != nil {
		return nil, fmt.Errorf("invalid matching policy: %w", err)
	}

	return e, nil
}

// Policy returns the decision constants the engine was built with.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Match scores the request. Degenerate texts yield a zero-score Result with a
// guard reasoning and no error. Embedding failures return ErrMatchingUnavailable.
func (e *Engine) Match(ctx context.Context, req Request) (*Result, error) {
	if err := e.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if reasoning, fired := e.policy.guard(req.ResumeText, req.JobDescriptionText); fired {
		e.logger.Debug("match guard fired", zap.String("reasoning", string(reasoning)))
		return &Result{
			Score:         0,
			MissingSkills: cloneSkills(req.TargetSkills),
			Reasoning:     reasoning,
		}, nil
	}

	resume := nlp.Normalize(req.ResumeText)
	job := nlp.Normalize(req.JobDescriptionText)
	chunks := nlp.Chunk(req.ResumeText, e.chunking)

	e.logger.Debug("embedding match batch",
		zap.Int("chunks", len(chunks)),
		zap.Int("skills", len(req.TargetSkills)),
	)

	d, err := decide(ctx, e.embedder, req.TargetSkills, resume, chunks, e.policy.SimilarityThreshold, job)
	if err != nil {
		return nil, err
	}

	evidence := d.evidence
	score, reasoning := e.policy.Interpret(Similarity(d.resume, d.extra[0]))

	result := &Result{
		Score:         score,
		MissingSkills: MissingSkills(evidence),
		Reasoning:     reasoning,
		Evidence:      evidence,
	}

	e.logger.Info("match finished",
		zap.Float64("score", result.Score),
		zap.String("reasoning", string(result.Reasoning)),
		zap.Strings("missing_skills", result.MissingSkills),
	)

	return result, nil
}

func cloneSkills(skills []string) []string {
	if skills == nil {
		return []string{}
	}
	return slices.Clone(skills)
}
