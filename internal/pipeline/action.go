package pipeline

import "strings"

// Action is the closed vocabulary a router chooses from.
type Action int

const (
	// ActionUnknown is any choice outside the vocabulary. It ends the run.
	ActionUnknown Action = iota
	// ActionEnd is the terminal choice.
	ActionEnd
	ActionExtractSkills
	ActionMatch
	ActionRecommend
	ActionCoverLetter
	ActionInterviewQA
	ActionNotify
)

var actionNames = map[Action]string{
	ActionUnknown:       "unknown",
	ActionEnd:           "end",
	ActionExtractSkills: "extract_skills",
	ActionMatch:         "match",
	ActionRecommend:     "recommend",
	ActionCoverLetter:   "cover_letter",
	ActionInterviewQA:   "interview_qa",
	ActionNotify:        "notify",
}

var actionsByName = func() map[string]Action {
	m := make(map[string]Action, len(actionNames))
	for a, name := range actionNames {
		if a != ActionUnknown {
			m[name] = a
		}
	}
	return m
}()

// Actions lists the non-terminal actions in declaration order.
func Actions() []Action {
	return []Action{ActionExtractSkills, ActionMatch, ActionRecommend, ActionCoverLetter, ActionInterviewQA, ActionNotify}
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return actionNames[ActionUnknown]
}

// Terminal reports whether the action ends a routed run.
func (a Action) Terminal() bool {
	return a == ActionEnd || a == ActionUnknown || actionNames[a] == ""
}

// ParseAction maps a stage name to its Action. Matching ignores case,
// surrounding whitespace and the separator style ("cover-letter",
// "Cover Letter"). Anything else is ActionUnknown.
func ParseAction(s string) Action {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if a, ok := actionsByName[key]; ok {
		return a
	}
	return ActionUnknown
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	*a = ParseAction(string(text))
	return nil
}
