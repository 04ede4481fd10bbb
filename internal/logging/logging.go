// Package logging configures the structured logger shared by the decoder,
// the MCP server and the queue worker.
//
// Logs go to stderr by default: stdout carries the MCP protocol when the
// binary runs as a server.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// EnvLevel is the environment variable consulted by FromEnv.
const EnvLevel = "OCR_LOG_LEVEL"

// New creates a logger writing to out at the given level. Unknown levels
// fall back to info. A nil writer means stderr.
func New(level string, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stderr
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetLevel(ParseLevel(level))
	return log
}

// FromEnv creates a stderr logger using the level in OCR_LOG_LEVEL.
func FromEnv() *logrus.Logger {
	return New(os.Getenv(EnvLevel), nil)
}

// ParseLevel maps a level name to a logrus level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Discard returns a logger that drops everything. Components use it when the
// caller does not supply one.
func Discard() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return log
}

// OrDiscard returns log, or a discarding logger when log is nil.
func OrDiscard(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return Discard()
	}
	return log
}
