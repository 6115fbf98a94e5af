package dbconn

import (
	"context"

	sqldblogger "github.com/simukti/sqldb-logger"
	"github.com/sirupsen/logrus"
)

type logrusAdapter struct {
	log *logrus.Logger
}

func (a logrusAdapter) Log(_ context.Context, level sqldblogger.Level, msg string, data map[string]interface{}) {
	entry := a.log.WithFields(data)

	switch level {
	case sqldblogger.LevelError:
		entry.Error(msg)
	case sqldblogger.LevelInfo:
		entry.Info(msg)
	case sqldblogger.LevelDebug:
		entry.Debug(msg)
	default:
		entry.Trace(msg)
	}
}
