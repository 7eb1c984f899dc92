package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"varweave/internal/metadata"
	"varweave/internal/weave"
)

// NewSink adapts a zap logger to the weaver's diagnostic sink. Event fields
// become structured zap fields; empty ones are omitted.
func NewSink(l *zap.Logger) weave.Sink {
	if l == nil {
		l = zap.NewNop()
	}
	return weave.SinkFunc(func(e weave.Event) {
		ce := l.Check(levelOf(e.Severity), e.Message)
		if ce == nil {
			return
		}
		ce.Write(eventFields(e)...)
	})
}

func levelOf(s weave.Severity) zapcore.Level {
	switch s {
	case weave.SeverityDebug:
		return zapcore.DebugLevel
	case weave.SeverityInfo:
		return zapcore.InfoLevel
	case weave.SeverityWarning:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func eventFields(e weave.Event) []zap.Field {
	fields := []zap.Field{zap.String("kind", string(e.Kind))}
	if e.TypeName != "" {
		fields = append(fields, zap.String("type", e.TypeName))
	}
	if e.ParameterName != "" {
		fields = append(fields, zap.String("parameter", e.ParameterName))
	}
	if e.Variance != metadata.NonVariant {
		fields = append(fields, zap.Stringer("variance", e.Variance))
	}
	if e.AttributeName != "" {
		fields = append(fields, zap.String("attribute", e.AttributeName))
	}
	return fields
}
