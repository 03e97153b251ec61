package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured field keys shared by every component.
const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
	FieldRunID    = "run_id"
	FieldStage    = "stage"
)

// Fields builds string fields from alternating keys and values. Pairs with a
// blank key or value are skipped, as is a trailing key without a value.
func Fields(kv ...string) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key := strings.TrimSpace(kv[i])
		value := strings.TrimSpace(kv[i+1])
		if key == "" || value == "" {
			continue
		}
		fields = append(fields, zap.String(key, value))
	}
	return fields
}

// WithFields attaches fields to log. A nil log becomes a no-op logger.
func WithFields(log *zap.Logger, fields ...zap.Field) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

// AIFields describe the model provider behind a component.
func AIFields(provider, model string) []zap.Field {
	return Fields(FieldProvider, provider, FieldModel, model)
}

func WithAI(log *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(log, AIFields(provider, model)...)
}

// PipelineFields identify a pipeline run and, when set, its stage.
func PipelineFields(runID, stage string) []zap.Field {
	return Fields(FieldRunID, runID, FieldStage, stage)
}

func WithStage(log *zap.Logger, stage string) *zap.Logger {
	return WithFields(log, Fields(FieldStage, stage)...)
}
