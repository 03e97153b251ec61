package pipeline

import (
	"context"
	"time"
)

// Stage is a single unit of work in a pipeline.
type Stage interface {
	// Name is the action name the stage answers to ("match", "notify", ...).
	Name() string
	// Requires lists the state keys the stage cannot run without.
	Requires() []string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Run(ctx context.Context, state State) (State, error)
}

// Toggle implements the enable/disable part of Stage. The zero value is enabled.
type Toggle struct {
	disabled bool
	reason   string
}

func (t *Toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *Toggle) IsEnabled() bool { return !t.disabled }

// Reason returns why the stage was disabled.
func (t *Toggle) Reason() string { return t.reason }

// Step describes the execution of one stage.
type Step struct {
	Stage    string
	Written  []string
	Duration time.Duration
}

// Status represents runtime information about a stage.
type Status struct {
	Name     string
	Enabled  bool
	Reason   string
	Requires []string
	Details  map[string]string
}

// statusProvider is implemented by stages that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// DisableByName marks a stage with the provided name as disabled while keeping it in the list.
func DisableByName(stages []Stage, name, reason string) {
	for _, stage := range stages {
		if stage.Name() == name {
			stage.Disable(reason)
		}
	}
}

// Describe returns status entries for the provided stages.
func Describe(stages []Stage) []Status {
	statuses := make([]Status, 0, len(stages))
	for _, stage := range stages {
		if reporter, ok := stage.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		status := Status{
			Name:     stage.Name(),
			Enabled:  stage.IsEnabled(),
			Requires: stage.Requires(),
		}
		if r, ok := stage.(interface{ Reason() string }); ok {
			status.Reason = r.Reason()
		}
		statuses = append(statuses, status)
	}
	return statuses
}
