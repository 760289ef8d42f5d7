package interval

import "go.uber.org/zap"

var logger = zap.NewNop()

// SetLogger replaces the package logger. Passing nil restores the no-op
// logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l.Named("interval")
}
