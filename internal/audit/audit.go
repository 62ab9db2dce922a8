// Package audit provides structured logging for the run/task/escalation
// lifecycle.
package audit

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger *zap.SugaredLogger
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	logger = l.Sugar()
}

// SetLogger overrides the package-level logger, letting a host process plug
// in its own zap configuration (e.g. development mode in tests).
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l.Sugar()
}

// Log emits a structured audit event. kvs must be an even-length list of
// alternating keys and values, matching zap's SugaredLogger convention.
func Log(event string, kvs ...interface{}) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Infow(event, kvs...)
}

// Warn emits a structured audit event at warn level.
func Warn(event string, kvs ...interface{}) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Warnw(event, kvs...)
}
