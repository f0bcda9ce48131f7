package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured field keys shared by every AI-related log entry.
const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
)

// WithCommonFields attaches the provider and model fields to the logger so
// every entry from an AI component carries them. Empty values are skipped and
// a nil logger degrades to a no-op one.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	fields := make([]zap.Field, 0, 2)
	if provider = strings.TrimSpace(provider); provider != "" {
		fields = append(fields, zap.String(FieldProvider, provider))
	}
	if model = strings.TrimSpace(model); model != "" {
		fields = append(fields, zap.String(FieldModel, model))
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}
