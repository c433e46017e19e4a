package observability

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger writes one JSON object per event. Fields are flattened into the
// top-level object next to level, time and message.
type Logger struct {
	base zerolog.Logger
}

func NewLogger() *Logger {
	return NewLoggerWithWriter(os.Stdout)
}

func NewLoggerWithWriter(w io.Writer) *Logger {
	return &Logger{base: zerolog.New(w).With().Timestamp().Logger()}
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.base.Info().Fields(fields).Msg(message)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.base.Error().Fields(fields).Msg(message)
}
