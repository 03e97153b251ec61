package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"
)

var (
	//go:embed prompts/skills.md
	skillsTemplate string
	//go:embed prompts/advisor.md
	advisorTemplate string
	//go:embed prompts/cover_letter.md
	coverLetterTemplate string
	//go:embed prompts/interview_qa.md
	interviewQATemplate string
	//go:embed prompts/router.md
	routerTemplate string
)

const (
	maxUserInstructionRunes = 500
	maxOverrideFieldRunes   = 200
	defaultTone             = "Friendly"
	noneValue               = "none"
)

// PromptOverrides are user preferences injected into document prompts.
type PromptOverrides struct {
	Tone             string `mapstructure:"tone"`
	ExtraCriteria    string `mapstructure:"extra-criteria"`
	CustomKeywords   string `mapstructure:"keywords"`
	UserInstructions string `mapstructure:"user-instructions"`
}

func (o PromptOverrides) placeholders() map[string]string {
	tone := sanitizeLine(o.Tone)
	if tone == "" {
		tone = defaultTone
	}
	return map[string]string{
		"TONE":              tone,
		"EXTRA_CRITERIA":    orNone(sanitizeLine(o.ExtraCriteria)),
		"KEYWORDS":          orNone(sanitizeKeywords(o.CustomKeywords)),
		"USER_INSTRUCTIONS": sanitizeInstructions(o.UserInstructions),
	}
}

func render(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(template))
}

// neutralizeMarkers keeps user text from opening sections like "[System]".
func neutralizeMarkers(s string) string {
	return strings.NewReplacer("[", "(", "]", ")").Replace(s)
}

// sanitizeLine collapses a single-line field.
func sanitizeLine(s string) string {
	s = strings.Join(strings.Fields(neutralizeMarkers(s)), " ")
	return truncateRunes(s, maxOverrideFieldRunes)
}

func sanitizeKeywords(s string) string {
	parts := strings.Split(s, ",")
	keywords := make([]string, 0, len(parts))
	for _, part := range parts {
		if kw := sanitizeLine(part); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return strings.Join(keywords, ", ")
}

// sanitizeInstructions renders free-form instructions as an indented list,
// one entry per non-empty line, bounded to maxUserInstructionRunes in total.
func sanitizeInstructions(s string) string {
	s = strings.TrimSpace(neutralizeMarkers(s))
	s = truncateRunes(s, maxUserInstructionRunes)

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, "  - "+line)
		}
	}
	if len(lines) == 0 {
		return "  - " + noneValue
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func orNone(s string) string {
	if s == "" {
		return noneValue
	}
	return s
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	// models sometimes wrap the object in a sentence.
	if !strings.HasPrefix(raw, "{") && !strings.HasPrefix(raw, "[") {
		if start := strings.IndexAny(raw, "{["); start != -1 {
			if end := strings.LastIndexAny(raw, "}]"); end > start {
				raw = raw[start : end+1]
			}
		}
	}
	return raw
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

// coerceStrings accepts a list, or a comma separated string.
func coerceStrings(v any) []string {
	var items []string
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if m, ok := item.(map[string]any); ok {
				item = m["name"]
			}
			items = append(items, coerceString(item))
		}
	case []string:
		items = val
	case string:
		items = strings.Split(val, ",")
	default:
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
