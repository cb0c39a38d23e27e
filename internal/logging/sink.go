package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atikulmunna/poplog/internal/model"
)

// Sink forwards job log entries to a zap logger at the entry's level.
type Sink struct {
	logger *zap.Logger
}

// NewSink returns a Sink writing to logger.
func NewSink(logger *zap.Logger) *Sink {
	return &Sink{logger: logger}
}

// Forward writes one entry.
func (s *Sink) Forward(e model.LogEntry) {
	ce := s.logger.Check(zapLevel(e.Level), e.Message)
	if ce == nil {
		return
	}
	ce.Write(
		zap.String("job", e.Job),
		zap.String("group", e.Group),
		zap.Int("index", e.Index),
		zap.String("severity", e.Level),
	)
}

// zapLevel maps a severity name to a zap level. CRITICAL is logged at
// error level so that forwarding never panics or exits the process.
func zapLevel(level string) zapcore.Level {
	switch level {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARNING":
		return zapcore.WarnLevel
	case "ERROR", "CRITICAL":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
