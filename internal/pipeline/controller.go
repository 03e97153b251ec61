// Package pipeline runs stages over a shared State, either in a fixed order
// or under the direction of a Router.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/logger"
)

// ErrMissingKey is returned when a stage is invoked without one of its required keys.
var ErrMissingKey = errors.New("missing required state key")

const DefaultMaxSteps = 16

// Router picks the next action of a routed run.
type Router interface {
	Route(ctx context.Context, state State) (Action, error)
}

// RouterFunc adapts a function to Router.
type RouterFunc func(ctx context.Context, state State) (Action, error)

func (f RouterFunc) Route(ctx context.Context, state State) (Action, error) { return f(ctx, state) }

// Halt names why a run stopped.
type Halt string

const (
	HaltCompleted        Halt = "completed"
	HaltEnd              Halt = "end"
	HaltUnknownAction    Halt = "unknown_action"
	HaltStageUnavailable Halt = "stage_unavailable"
	HaltMaxSteps         Halt = "max_steps"
)

// Report is the outcome of one run. On error it carries the state reached
// before the failing stage.
type Report struct {
	RunID string
	State State
	Steps []Step
	Halt  Halt
}

type Controller struct {
	logger   *zap.Logger
	maxSteps int
	newRunID func() string
}

type ControllerOption func(*Controller)

// WithMaxSteps caps the number of router decisions in a routed run.
func WithMaxSteps(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

func NewController(log *zap.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		logger:   logger.WithFields(log),
		maxSteps: DefaultMaxSteps,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunSequence executes the enabled stages in order.
func (c *Controller) RunSequence(ctx context.Context, stages []Stage, initial State) (*Report, error) {
	report := c.newReport(initial)
	log := c.logger.With(logger.PipelineFields(report.RunID, "")...)

	if err := validate(stages); err != nil {
		return report, err
	}

	log.Info("pipeline started", zap.String("mode", "sequence"), zap.Int("stages", len(stages)))

	for _, stage := range stages {
		if !stage.IsEnabled() {
			log.Info("stage disabled", zap.String("name", stage.Name()))
			continue
		}

		if err := c.runStage(ctx, log, stage, report); err != nil {
			return report, err
		}
	}

	report.Halt = HaltCompleted
	log.Info("pipeline finished", zap.String("halt", string(report.Halt)), zap.Int("steps", len(report.Steps)))
	return report, nil
}

// RunRouted asks the router for an action, runs the stage registered under
// that name, merges its output and asks again. End, an unknown action, a
// stage that is not registered or disabled, and the step cap all stop the
// run without an error.
func (c *Controller) RunRouted(ctx context.Context, router Router, stages []Stage, initial State) (*Report, error) {
	report := c.newReport(initial)
	log := c.logger.With(logger.PipelineFields(report.RunID, "")...)

	if router == nil {
		return report, fmt.Errorf("router is required")
	}
	if err := validate(stages); err != nil {
		return report, err
	}

	byName := make(map[string]Stage, len(stages))
	for _, stage := range stages {
		byName[stage.Name()] = stage
	}

	log.Info("pipeline started", zap.String("mode", "routed"), zap.Int("stages", len(stages)), zap.Int("max_steps", c.maxSteps))

	report.Halt = HaltMaxSteps
	for step := 0; step < c.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		action, err := router.Route(ctx, report.State.Clone())
		if err != nil {
			return report, fmt.Errorf("route: %w", err)
		}
		report.State[KeyAction] = action.String()

		log.Info("router decision", zap.Int("step", step), zap.String("action", action.String()))

		if action.Terminal() {
			report.Halt = HaltEnd
			if action == ActionUnknown {
				report.Halt = HaltUnknownAction
			}
			break
		}

		stage, ok := byName[action.String()]
		if !ok || !stage.IsEnabled() {
			log.Warn("routed stage is not available", zap.String("action", action.String()), zap.Bool("registered", ok))
			report.Halt = HaltStageUnavailable
			break
		}

		if err := c.runStage(ctx, log, stage, report); err != nil {
			return report, err
		}
	}

	log.Info("pipeline finished", zap.String("halt", string(report.Halt)), zap.Int("steps", len(report.Steps)))
	return report, nil
}

func (c *Controller) newReport(initial State) *Report {
	return &Report{
		RunID: c.newRunID(),
		State: initial.Clone(),
	}
}

func (c *Controller) runStage(ctx context.Context, log *zap.Logger, stage Stage, report *Report) error {
	if missing := report.State.Missing(stage.Requires()...); len(missing) > 0 {
		return fmt.Errorf("%s: %w: %v", stage.Name(), ErrMissingKey, missing)
	}

	started := time.Now()
	update, err := stage.Run(ctx, report.State.Clone())
	if err != nil {
		return fmt.Errorf("%s: %w", stage.Name(), err)
	}

	report.State = report.State.Merge(update)

	written := update.Keys()
	step := Step{Stage: stage.Name(), Written: written, Duration: time.Since(started)}
	report.Steps = append(report.Steps, step)

	log.Info("pipeline step",
		zap.String("name", step.Stage),
		zap.Strings("written", written),
		zap.Duration("duration", step.Duration),
	)
	return nil
}

func validate(stages []Stage) error {
	seen := make(map[string]struct{}, len(stages))
	for _, stage := range stages {
		if _, dup := seen[stage.Name()]; dup {
			return fmt.Errorf("duplicate stage %q", stage.Name())
		}
		seen[stage.Name()] = struct{}{}

		if !stage.IsEnabled() {
			continue
		}
		if err := stage.Validate(); err != nil {
			return fmt.Errorf("%s: %w", stage.Name(), err)
		}
	}
	return nil
}
