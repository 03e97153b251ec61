package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeStage struct {
	Toggle
	name        string
	requires    []string
	writes      State
	err         error
	validateErr error
	calls       int
	seen        []State
}

func (s *fakeStage) Name() string       { return s.name }
func (s *fakeStage) Requires() []string { return s.requires }
func (s *fakeStage) Validate() error    { return s.validateErr }

func (s *fakeStage) Run(_ context.Context, state State) (State, error) {
	s.calls++
	s.seen = append(s.seen, state)
	if s.err != nil {
		return nil, s.err
	}
	return s.writes, nil
}

func newController(opts ...ControllerOption) *Controller {
	return NewController(zap.NewNop(), opts...)
}

func TestRunSequenceMergesAdditively(t *testing.T) {
	match := &fakeStage{name: "match", requires: []string{KeyResumeText}, writes: State{KeyScore: 42.0, KeyMissingSkills: []string{"Go"}}}
	recommend := &fakeStage{name: "recommend", requires: []string{KeyMissingSkills}, writes: State{KeyRecommendations: "watch this"}}

	initial := NewState("resume", "job", []string{"Go"})
	initial["custom"] = "kept"

	report, err := newController().RunSequence(context.Background(), []Stage{match, recommend}, initial)
	require.NoError(t, err)

	assert.Equal(t, HaltCompleted, report.Halt)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "kept", report.State["custom"])
	assert.Equal(t, 42.0, report.State[KeyScore])
	assert.Equal(t, "watch this", report.State[KeyRecommendations])
	assert.Equal(t, "resume", report.State[KeyResumeText])

	require.Len(t, report.Steps, 2)
	assert.Equal(t, "match", report.Steps[0].Stage)
	assert.Equal(t, []string{KeyMissingSkills, KeyScore}, report.Steps[0].Written)

	assert.NotContains(t, initial, KeyScore, "initial state must not be mutated")
	assert.Equal(t, 42.0, recommend.seen[0][KeyScore])
}

func TestRunSequenceSkipsDisabledStages(t *testing.T) {
	first := &fakeStage{name: "match", writes: State{KeyScore: 1.0}}
	second := &fakeStage{name: "notify", validateErr: errors.New("smtp host is required"), writes: State{KeyDeliveryStatus: "sent"}}

	stages := []Stage{first, second}
	DisableByName(stages, "notify", "no mailer")

	report, err := newController().RunSequence(context.Background(), stages, State{})
	require.NoError(t, err)

	assert.Equal(t, 1, first.calls)
	assert.Zero(t, second.calls)
	assert.False(t, report.State.Has(KeyDeliveryStatus))

	statuses := Describe(stages)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Enabled)
	assert.False(t, statuses[1].Enabled)
	assert.Equal(t, "no mailer", statuses[1].Reason)
}

func TestRunSequenceMissingKey(t *testing.T) {
	first := &fakeStage{name: "match", writes: State{KeyScore: 10.0}}
	notify := &fakeStage{name: "notify", requires: []string{KeyUserEmail}}

	report, err := newController().RunSequence(context.Background(), []Stage{first, notify}, State{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingKey)
	assert.Contains(t, err.Error(), KeyUserEmail)

	assert.Zero(t, notify.calls)
	assert.Equal(t, 10.0, report.State[KeyScore], "state reached before the failure is reported")
}

func TestRunSequenceValidatesFirst(t *testing.T) {
	first := &fakeStage{name: "match"}
	broken := &fakeStage{name: "notify", validateErr: errors.New("smtp host is required")}

	_, err := newController().RunSequence(context.Background(), []Stage{first, broken}, State{})
	require.Error(t, err)
	assert.Zero(t, first.calls)

	_, err = newController().RunSequence(context.Background(), []Stage{first, &fakeStage{name: "match"}}, State{})
	require.Error(t, err)
}

func TestRunSequenceStageError(t *testing.T) {
	boom := errors.New("boom")
	stage := &fakeStage{name: "match", err: boom}

	_, err := newController().RunSequence(context.Background(), []Stage{stage}, State{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "match:")
}

func TestRunRoutedFollowsTaskPlan(t *testing.T) {
	extract := &fakeStage{name: "extract_skills", writes: State{KeyTargetSkills: []string{"Go"}, KeySkillsSource: "llm"}}
	match := &fakeStage{name: "match", requires: []string{KeyTargetSkills}, writes: State{KeyScore: 70.0, KeyMissingSkills: []string{"Go"}}}
	recommend := &fakeStage{name: "recommend", requires: []string{KeyMissingSkills}, writes: State{KeyRecommendations: "resources"}}
	notify := &fakeStage{name: "notify"}

	initial := NewState("resume", "job", nil)
	initial[KeyTask] = "Learning Plan"

	report, err := newController().RunRouted(context.Background(), NewTaskRouter(), []Stage{extract, match, recommend, notify}, initial)
	require.NoError(t, err)

	assert.Equal(t, HaltEnd, report.Halt)
	assert.Equal(t, "end", report.State[KeyAction])
	require.Len(t, report.Steps, 3)
	assert.Equal(t, []string{"extract_skills", "match", "recommend"}, []string{report.Steps[0].Stage, report.Steps[1].Stage, report.Steps[2].Stage})
	assert.Zero(t, notify.calls)
}

func TestRunRoutedUnknownActionHaltsAfterOneStep(t *testing.T) {
	calls := 0
	router := RouterFunc(func(context.Context, State) (Action, error) {
		calls++
		return ParseAction("dance"), nil
	})
	match := &fakeStage{name: "match"}

	report, err := newController().RunRouted(context.Background(), router, []Stage{match}, State{})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, HaltUnknownAction, report.Halt)
	assert.Empty(t, report.Steps)
	assert.Zero(t, match.calls)
	assert.Equal(t, "unknown", report.State[KeyAction])
}

func TestRunRoutedStepCap(t *testing.T) {
	calls := 0
	router := RouterFunc(func(context.Context, State) (Action, error) {
		calls++
		return ActionMatch, nil
	})
	match := &fakeStage{name: "match", writes: State{}}

	report, err := newController(WithMaxSteps(3)).RunRouted(context.Background(), router, []Stage{match}, State{})
	require.NoError(t, err)

	assert.Equal(t, HaltMaxSteps, report.Halt)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, match.calls)
}

func TestRunRoutedStageUnavailable(t *testing.T) {
	router := RouterFunc(func(context.Context, State) (Action, error) { return ActionNotify, nil })
	notify := &fakeStage{name: "notify"}
	notify.Disable("mailer not configured")

	for name, stages := range map[string][]Stage{
		"not registered": {&fakeStage{name: "match"}},
		"disabled":       {notify},
	} {
		t.Run(name, func(t *testing.T) {
			report, err := newController().RunRouted(context.Background(), router, stages, State{})
			require.NoError(t, err)
			assert.Equal(t, HaltStageUnavailable, report.Halt)
		})
	}
	assert.Zero(t, notify.calls)
}

func TestRunRoutedRouterError(t *testing.T) {
	boom := errors.New("model unreachable")
	router := RouterFunc(func(context.Context, State) (Action, error) { return ActionUnknown, boom })

	_, err := newController().RunRouted(context.Background(), router, nil, State{})
	require.ErrorIs(t, err, boom)

	_, err = newController().RunRouted(context.Background(), nil, nil, State{})
	require.Error(t, err)
}

func TestRunRoutedHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	router := RouterFunc(func(context.Context, State) (Action, error) { return ActionMatch, nil })
	_, err := newController().RunRouted(ctx, router, []Stage{&fakeStage{name: "match"}}, State{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestControllerLogsRunID(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	controller := NewController(zap.New(core))
	controller.newRunID = func() string { return "run-42" }

	_, err := controller.RunSequence(context.Background(), []Stage{&fakeStage{name: "match"}}, State{})
	require.NoError(t, err)

	entries := observed.FilterMessage("pipeline step").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "run-42", entries[0].ContextMap()["run_id"])
	assert.Equal(t, "match", entries[0].ContextMap()["name"])
}

func TestTaskRouter(t *testing.T) {
	router := NewTaskRouter()
	ctx := context.Background()

	tests := []struct {
		name  string
		state State
		want  Action
	}{
		{name: "unknown task", state: State{KeyTask: "dance"}, want: ActionUnknown},
		{name: "no task", state: State{}, want: ActionUnknown},
		{name: "score starts with skills", state: State{KeyTask: "resume_score"}, want: ActionExtractSkills},
		{name: "score after skills", state: State{KeyTask: "Resume Score", KeySkillsSource: "request"}, want: ActionMatch},
		{name: "score done", state: State{KeyTask: "resume_score", KeySkillsSource: "request", KeyScore: 1.0}, want: ActionEnd},
		{name: "display name", state: State{KeyTask: "Q&A Generator"}, want: ActionInterviewQA},
		{name: "mail sender", state: State{KeyTask: "mail_sender", KeyCoverLetter: "letter"}, want: ActionInterviewQA},
		{name: "mail sender notify", state: State{KeyTask: "mail-sender", KeyCoverLetter: "l", KeyInterviewQA: "q"}, want: ActionNotify},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := router.Route(ctx, tt.state)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAction(t *testing.T) {
	tests := map[string]Action{
		"match":         ActionMatch,
		" Cover Letter": ActionCoverLetter,
		"interview-qa":  ActionInterviewQA,
		"END":           ActionEnd,
		"notify":        ActionNotify,
		"unknown":       ActionUnknown,
		"":              ActionUnknown,
		"delete_all":    ActionUnknown,
	}
	for input, want := range tests {
		assert.Equal(t, want, ParseAction(input), "input %q", input)
	}

	assert.True(t, ActionEnd.Terminal())
	assert.True(t, ActionUnknown.Terminal())
	assert.True(t, Action(99).Terminal())
	assert.False(t, ActionMatch.Terminal())
	assert.Equal(t, "unknown", Action(99).String())

	for _, a := range Actions() {
		assert.Equal(t, a, ParseAction(a.String()))
		assert.NotEmpty(t, OutputKey(a))
	}

	var a Action
	require.NoError(t, a.UnmarshalText([]byte("recommend")))
	assert.Equal(t, ActionRecommend, a)
}

func TestStateDecode(t *testing.T) {
	state := State{
		KeyResumeText:   "resume",
		KeyTargetSkills: []any{"Go", "SQL"},
		KeyScore:        "81.5",
		"ignored":       true,
	}

	var in struct {
		Resume string   `mapstructure:"resume_text"`
		Skills []string `mapstructure:"target_skills"`
		Score  float64  `mapstructure:"score"`
		Email  string   `mapstructure:"user_email"`
	}
	require.NoError(t, state.Decode(&in))

	assert.Equal(t, "resume", in.Resume)
	assert.Equal(t, []string{"Go", "SQL"}, in.Skills)
	assert.Equal(t, 81.5, in.Score)
	assert.Empty(t, in.Email)
}

func TestStateHelpers(t *testing.T) {
	state := State{"a": "x", "b": nil}
	assert.True(t, state.Has("a"))
	assert.False(t, state.Has("b"))
	assert.Equal(t, []string{"b", "c"}, state.Missing("a", "b", "c"))
	assert.Equal(t, []string{"a", "b"}, state.Keys())
	assert.Equal(t, "", state.String("missing"))

	merged := state.Merge(State{"c": 1})
	assert.Len(t, merged, 3)
	assert.Len(t, state, 2)

	summary := State{"text": "a   long\nvalue here"}.Summary(6)
	assert.Equal(t, "text: a long...\n", summary)
}
