package stages

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/ai"
	"github.com/spigell/skill-gap/internal/pipeline"
)

const (
	CoverLetterFallback = "Unable to generate cover letter at this time."
	InterviewQAFallback = "Unable to generate Q&A at this time."
)

// Document generates one text document from the résumé and the job description.
// Generation failures are not fatal: the stage writes a fallback text and the
// error under a separate key.
type Document struct {
	pipeline.Toggle

	action   pipeline.Action
	kind     ai.DocumentKind
	fallback string
	errKey   string
	writer   ai.Writer
	logger   *zap.Logger
}

func NewCoverLetter(writer ai.Writer, log *zap.Logger) *Document {
	return &Document{
		action:   pipeline.ActionCoverLetter,
		kind:     ai.DocumentCoverLetter,
		fallback: CoverLetterFallback,
		errKey:   KeyCoverLetterError,
		writer:   writer,
		logger:   stageLogger(log, pipeline.ActionCoverLetter),
	}
}

func NewInterviewQA(writer ai.Writer, log *zap.Logger) *Document {
	return &Document{
		action:   pipeline.ActionInterviewQA,
		kind:     ai.DocumentInterviewQA,
		fallback: InterviewQAFallback,
		errKey:   KeyInterviewQAError,
		writer:   writer,
		logger:   stageLogger(log, pipeline.ActionInterviewQA),
	}
}

func (s *Document) Name() string { return s.action.String() }

func (s *Document) Requires() []string {
	return []string{pipeline.KeyResumeText, pipeline.KeyJobDescriptionText}
}

func (s *Document) Validate() error {
	if s.writer == nil {
		return fmt.Errorf("%s needs a writer", s.Name())
	}
	return nil
}

type documentInput struct {
	ResumeText         string `mapstructure:"resume_text"`
	JobDescriptionText string `mapstructure:"job_description_text"`
}

func (s *Document) Run(ctx context.Context, state pipeline.State) (pipeline.State, error) {
	var in documentInput
	if err := state.Decode(&in); err != nil {
		return nil, err
	}

	key := pipeline.OutputKey(s.action)

	text, err := s.writer.Write(ctx, s.kind, in.ResumeText, in.JobDescriptionText)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.logger.Error("document generation failed, using fallback text", zap.Error(err))
		return pipeline.State{key: s.fallback, s.errKey: err.Error()}, nil
	}

	s.logger.Info("document generated", zap.Int("length", len(text)))
	return pipeline.State{key: text}, nil
}
