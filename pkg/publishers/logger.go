package publishers

import "github.com/Adda-Baaj/arcadia/internal/logger"

// Logger is the renderer's structured logger; publishers log delivery
// outcomes through it.
type Logger = logger.Logger

func ensureLogger(log Logger) Logger {
	if log == nil {
		return logger.NopLogger{}
	}
	return log
}
