package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// Logs is the read side of an observer logger.
type Logs interface {
	Len() int
	All() []observer.LoggedEntry
	TakeAll() []observer.LoggedEntry
	FilterMessage(msg string) *observer.ObservedLogs
}

var _ Logs = (*observer.ObservedLogs)(nil)

// NewObserverLogger creates a logger that records entries in memory, for tests.
// An unparsable level records everything.
func NewObserverLogger(level string) (*ZapLogger, Logs) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	core, logs := observer.New(lvl)
	return &ZapLogger{zap.New(core)}, logs
}
