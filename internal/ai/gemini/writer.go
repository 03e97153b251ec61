package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/ai"
	"github.com/spigell/skill-gap/internal/utils"
)

const writerSystemPrompt = "You are a career coach writing documents for job applications."

var writerTemplates = map[ai.DocumentKind]string{
	ai.DocumentCoverLetter: coverLetterTemplate,
	ai.DocumentInterviewQA: interviewQATemplate,
}

// Writer generates cover letters and interview guides.
type Writer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int

	mu        sync.RWMutex
	overrides PromptOverrides
}

func NewWriter(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Writer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{generator: generator, logger: logger, maxLogLen: maxLogLength}
}

// SetPromptOverrides replaces the user preferences used by later calls.
func (w *Writer) SetPromptOverrides(overrides PromptOverrides) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.overrides = overrides
}

func (w *Writer) Write(ctx context.Context, kind ai.DocumentKind, resume, jobDescription string) (string, error) {
	template, ok := writerTemplates[kind]
	if !ok {
		return "", fmt.Errorf("unsupported document kind %q", kind)
	}
	if strings.TrimSpace(resume) == "" {
		return "", errors.New("resume text is required")
	}

	w.mu.RLock()
	values := w.overrides.placeholders()
	w.mu.RUnlock()
	values["RESUME"] = strings.TrimSpace(resume)
	values["JOB_DESCRIPTION"] = orNone(strings.TrimSpace(jobDescription))

	prompt := render(template, values)

	w.logger.Debug("gemini document request",
		zap.String("kind", string(kind)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, w.maxLogLen)),
	)

	text, err := w.generator.GenerateContent(ctx, writerSystemPrompt, prompt)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty %s", ai.ErrMalformedResponse, kind)
	}
	return text, nil
}
