// Package logx provides the standard logger implementations for the camlink library.
package logx

import (
	"log"
	"os"

	"github.com/lensbridge/camlink/types"
)

// DefaultLogger provides a basic logger implementation using the standard log package.
type DefaultLogger struct {
	logger *log.Logger
}

// NewDefaultLogger creates a new logger writing to stderr with standard flags.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(os.Stderr, "[camlink] ", log.LstdFlags|log.Lmsgprefix),
	}
}

// NewLogger creates a logger with a custom prefix, writing to stderr.
func NewLogger(prefix string) *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(os.Stderr, prefix, log.LstdFlags|log.Lmsgprefix),
	}
}

func (l *DefaultLogger) Debug(msg string, args ...interface{}) {
	l.logger.Printf("DEBUG: "+msg, args...)
}
func (l *DefaultLogger) Info(msg string, args ...interface{}) { l.logger.Printf("INFO: "+msg, args...) }
func (l *DefaultLogger) Warn(msg string, args ...interface{}) { l.logger.Printf("WARN: "+msg, args...) }
func (l *DefaultLogger) Error(msg string, args ...interface{}) {
	l.logger.Printf("ERROR: "+msg, args...)
}

// Ensure interface compliance
var _ types.Logger = (*DefaultLogger)(nil)

// NilLogger discards everything. Useful in tests and as a fallback when no
// logger was configured.
type NilLogger struct{}

// NewNilLogger returns a logger that discards all output.
func NewNilLogger() *NilLogger { return &NilLogger{} }

func (n *NilLogger) Debug(msg string, args ...interface{}) {}
func (n *NilLogger) Info(msg string, args ...interface{})  {}
func (n *NilLogger) Warn(msg string, args ...interface{})  {}
func (n *NilLogger) Error(msg string, args ...interface{}) {}

var _ types.Logger = (*NilLogger)(nil)
