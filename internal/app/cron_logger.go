package app

import (
	"fmt"
	"strings"

	"github.com/DRSN-tech/taste-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// cronLogger пишет события планировщика в логгер сервиса.
type cronLogger struct {
	logger logger.Logger
}

var _ cron.Logger = cronLogger{}

func newCronLogger(logger logger.Logger) cronLogger {
	return cronLogger{logger: logger}
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugf("cron: %s%s", msg, formatKeysAndValues(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorf(err, "cron: %s%s", msg, formatKeysAndValues(keysAndValues))
}

func formatKeysAndValues(keysAndValues []any) string {
	if len(keysAndValues) == 0 {
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		b.WriteString(", ")
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, "%v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&b, "%v", keysAndValues[i])
		}
	}
	return b.String()
}
