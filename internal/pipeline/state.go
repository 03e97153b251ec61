package pipeline

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/skill-gap/internal/utils"
)

// Well-known state keys. Any other key is opaque to the controller and
// passes through untouched.
const (
	KeyResumeText         = "resume_text"
	KeyJobDescriptionText = "job_description_text"
	KeyTargetSkills       = "target_skills"
	KeyScore              = "score"
	KeyMissingSkills      = "missing_skills"
	KeyReasoning          = "reasoning"
	KeyAction             = "action"
	KeyTask               = "task"
)

// Keys written by downstream stages.
const (
	KeySkillsSource    = "skills_source"
	KeyRecommendations = "recommendations"
	KeyCoverLetter     = "cover_letter"
	KeyInterviewQA     = "interview_qa"
	KeyUserEmail       = "user_email"
	KeyDeliveryStatus  = "delivery_status"
)

// State is the record threaded through the stages of one pipeline run.
// Stages read typed inputs with Decode and return partial updates that the
// controller merges in; a stage never deletes keys.
type State map[string]any

// NewState builds the initial state of a run.
func NewState(resumeText, jobDescriptionText string, targetSkills []string) State {
	s := State{
		KeyResumeText:         resumeText,
		KeyJobDescriptionText: jobDescriptionText,
	}
	if targetSkills != nil {
		s[KeyTargetSkills] = slices.Clone(targetSkills)
	}
	return s
}

// Clone returns a shallow copy.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	return maps.Clone(s)
}

// Merge returns a copy of s with every key of update set on it.
func (s State) Merge(update State) State {
	out := s.Clone()
	for k, v := range update {
		out[k] = v
	}
	return out
}

// Has reports whether key is set to a non-nil value.
func (s State) Has(key string) bool {
	v, ok := s[key]
	return ok && v != nil
}

// Keys returns the sorted key set.
func (s State) Keys() []string {
	return slices.Sorted(maps.Keys(s))
}

// Missing returns the keys from required that are not set.
func (s State) Missing(required ...string) []string {
	var missing []string
	for _, key := range required {
		if !s.Has(key) {
			missing = append(missing, key)
		}
	}
	return missing
}

// String returns the value of key as a string, or "" when it is absent or not a string.
func (s State) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Decode fills out (a pointer to a struct with mapstructure tags) from the
// state. Values that went through JSON, like []any for string lists or
// float64 for integers, are converted.
func (s State) Decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("create state decoder: %w", err)
	}

	if err := decoder.Decode(map[string]any(s)); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	return nil
}

// Summary renders the key set with short previews of string values.
// It is meant for logs and for model prompts, never for decoding.
func (s State) Summary(maxValueLen int) string {
	var b strings.Builder
	for _, key := range s.Keys() {
		fmt.Fprintf(&b, "%s: %s\n", key, preview(s[key], maxValueLen))
	}
	return b.String()
}

func preview(v any, limit int) string {
	var text string
	switch val := v.(type) {
	case string:
		text = val
	case []string:
		text = strings.Join(val, ", ")
	default:
		text = fmt.Sprint(val)
	}

	text = strings.Join(strings.Fields(text), " ")
	if limit <= 0 {
		return text
	}
	return utils.TruncateForLog(text, limit)
}
