package logger

// LeveledLogger adapts our Logger to the key/value logging interface
// expected by go-retryablehttp
type LeveledLogger struct {
	logger *Logger
}

// GetLeveledLogger returns a retryablehttp.LeveledLogger compatible logger
func (l *Logger) GetLeveledLogger() *LeveledLogger {
	return &LeveledLogger{logger: l}
}

func (t *LeveledLogger) Error(msg string, keyvals ...interface{}) {
	t.logger.Errorw(msg, keyvals...)
}

func (t *LeveledLogger) Info(msg string, keyvals ...interface{}) {
	t.logger.Infow(msg, keyvals...)
}

func (t *LeveledLogger) Debug(msg string, keyvals ...interface{}) {
	t.logger.Debugw(msg, keyvals...)
}

func (t *LeveledLogger) Warn(msg string, keyvals ...interface{}) {
	t.logger.Warnw(msg, keyvals...)
}
