// Package logging centralizes zap construction and a couple of
// field-grouping helpers used across the engine's components.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Production builds want JSON; tests and the
// demo binary want readable console output.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}
	return zap.NewProduction()
}

// Values groups a set of zap.Fields under a single "values" object field, so
// a single log line can carry a table's worth of counters without spelling
// each one out as a top-level field.
func Values(fields ...zap.Field) zap.Field {
	return zap.Object("values", zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		for _, f := range fields {
			f.AddTo(enc)
		}
		return nil
	}))
}

// TableScope returns the fields every per-table log line carries.
func TableScope(schema, table string) []zap.Field {
	return []zap.Field{zap.String("schema", schema), zap.String("table", table)}
}
