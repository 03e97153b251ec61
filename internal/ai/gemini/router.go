package gemini

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/pipeline"
	"github.com/spigell/skill-gap/internal/utils"
)

const (
	routerSystemPrompt = "You route a résumé assistant workflow and answer with JSON only."
	routerStatePreview = 160
)

// Router lets the model pick the next pipeline action. Output it cannot
// parse, or a name outside the action vocabulary, becomes ActionUnknown.
type Router struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewRouter(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Router {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{generator: generator, logger: logger, maxLogLen: maxLogLength}
}

func (r *Router) Route(ctx context.Context, state pipeline.State) (pipeline.Action, error) {
	names := make([]string, 0, len(pipeline.Actions())+1)
	for _, a := range pipeline.Actions() {
		names = append(names, a.String())
	}
	names = append(names, pipeline.ActionEnd.String())

	prompt := render(routerTemplate, map[string]string{
		"ACTIONS": strings.Join(names, ", "),
		"STATE":   state.Summary(routerStatePreview),
	})

	var (
		raw string
		err error
	)
	if g, ok := r.generator.(jsonGenerator); ok {
		raw, err = g.GenerateJSON(ctx, routerSystemPrompt, prompt)
	} else {
		raw, err = r.generator.GenerateContent(ctx, routerSystemPrompt, prompt)
	}
	if err != nil {
		return pipeline.ActionUnknown, err
	}

	action := parseAction(raw)
	r.logger.Debug("gemini router decision",
		zap.String("action", action.String()),
		zap.String("response_preview", utils.TruncateForLog(raw, r.maxLogLen)),
	)
	return action, nil
}

// parseAction accepts {"action": "name"} or a bare name.
func parseAction(raw string) pipeline.Action {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err == nil {
		return pipeline.ParseAction(coerceString(data["action"]))
	}
	return pipeline.ParseAction(strings.Trim(cleaned, `"'.`))
}
