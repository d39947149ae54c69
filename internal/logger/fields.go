package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldService names the running application.
	FieldService = "service"
	// FieldProvider is the structured log field key for the LLM provider name.
	FieldProvider = "llm_provider"
	// FieldModel is the structured log field key for the LLM model identifier.
	FieldModel = "llm_model"
	// FieldRunID identifies a single CV analysis.
	FieldRunID = "run_id"
	// FieldTargetRole is the role the candidate asked to be analyzed against.
	FieldTargetRole = "target_role"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// WithProvider attaches the LLM provider and model fields. Empty values are skipped.
func WithProvider(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)...)
}

// WithRun attaches the analysis run identifier and target role.
func WithRun(logger *zap.Logger, runID, targetRole string) *zap.Logger {
	return WithFields(logger, StringFields(
		StringField{Key: FieldRunID, Value: runID},
		StringField{Key: FieldTargetRole, Value: targetRole},
	)...)
}
