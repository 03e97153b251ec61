package pipeline

import (
	"context"
	"strings"
)

// Task names accepted by TaskRouter.
const (
	TaskResumeScore  = "resume_score"
	TaskLearningPlan = "learning_plan"
	TaskCoverLetter  = "cover_letter"
	TaskQAGenerator  = "qa_generator"
	TaskMailSender   = "mail_sender"
)

// outputKeys is the key whose presence marks an action as done.
var outputKeys = map[Action]string{
	ActionExtractSkills: KeySkillsSource,
	ActionMatch:         KeyScore,
	ActionRecommend:     KeyRecommendations,
	ActionCoverLetter:   KeyCoverLetter,
	ActionInterviewQA:   KeyInterviewQA,
	ActionNotify:        KeyDeliveryStatus,
}

// OutputKey returns the state key an action writes when it completes.
func OutputKey(a Action) string {
	return outputKeys[a]
}

var defaultPlans = map[string][]Action{
	TaskResumeScore:  {ActionExtractSkills, ActionMatch},
	TaskLearningPlan: {ActionExtractSkills, ActionMatch, ActionRecommend},
	TaskCoverLetter:  {ActionCoverLetter},
	TaskQAGenerator:  {ActionInterviewQA},
	TaskMailSender:   {ActionCoverLetter, ActionInterviewQA, ActionNotify},
}

// TaskRouter routes by the "task" key: the task expands to a plan and the
// router picks the first planned action whose output key is not yet set.
// It returns End once the plan is done and Unknown for an unknown task.
type TaskRouter struct {
	plans map[string][]Action
}

func NewTaskRouter() *TaskRouter {
	plans := make(map[string][]Action, len(defaultPlans))
	for task, plan := range defaultPlans {
		plans[task] = plan
	}
	return &TaskRouter{plans: plans}
}

// Tasks lists the task names the router knows.
func (r *TaskRouter) Tasks() []string {
	return []string{TaskResumeScore, TaskLearningPlan, TaskCoverLetter, TaskQAGenerator, TaskMailSender}
}

// Plan returns the action plan of a task.
func (r *TaskRouter) Plan(task string) ([]Action, bool) {
	plan, ok := r.plans[NormalizeTask(task)]
	return plan, ok
}

func (r *TaskRouter) Route(_ context.Context, state State) (Action, error) {
	plan, ok := r.Plan(state.String(KeyTask))
	if !ok {
		return ActionUnknown, nil
	}

	for _, action := range plan {
		if !state.Has(outputKeys[action]) {
			return action, nil
		}
	}
	return ActionEnd, nil
}

// NormalizeTask maps display names like "Q&A Generator" or "Resume Score"
// to task names.
func NormalizeTask(task string) string {
	key := strings.ToLower(strings.TrimSpace(task))
	key = strings.NewReplacer(" ", "_", "-", "_", "&", "").Replace(key)
	return key
}
