// Package ai declares the language-model-backed collaborators of the pipeline.
package ai

import (
	"context"
	"errors"
)

// ErrMalformedResponse marks model output that could not be parsed into the
// expected structure. Callers recover from it with a conservative fallback.
var ErrMalformedResponse = errors.New("malformed upstream response")

// SkillExtractor lists the skills a job description asks for.
type SkillExtractor interface {
	ExtractSkills(ctx context.Context, jobDescription string) ([]string, error)
}

// Resource is a single learning resource.
type Resource struct {
	Title   string `json:"title" mapstructure:"title"`
	URL     string `json:"url" mapstructure:"url"`
	Channel string `json:"channel,omitempty" mapstructure:"channel"`
}

// SkillResources groups the resources found for one skill. Error is set when
// the lookup for that skill failed; Resources is then empty.
type SkillResources struct {
	Skill     string     `json:"skill" mapstructure:"skill"`
	Resources []Resource `json:"resources" mapstructure:"resources"`
	Error     string     `json:"error,omitempty" mapstructure:"error"`
}

// Advisor recommends learning resources for missing skills.
type Advisor interface {
	Recommend(ctx context.Context, skills []string) ([]SkillResources, error)
}

// DocumentKind selects what a Writer produces.
type DocumentKind string

const (
	DocumentCoverLetter DocumentKind = "cover_letter"
	DocumentInterviewQA DocumentKind = "interview_qa"
)

// Writer generates documents from a résumé and a job description.
type Writer interface {
	Write(ctx context.Context, kind DocumentKind, resume, jobDescription string) (string, error)
}
