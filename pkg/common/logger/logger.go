package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

func Init() {
	Log = logrus.New()
	Log.SetOutput(os.Stdout)
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	Log.SetLevel(logLevel)
}

func get() *logrus.Logger {
	if Log == nil {
		Init()
	}
	return Log
}

func WithField(key string, value interface{}) *logrus.Entry {
	return get().WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return get().WithFields(fields)
}

// ForRun tags entries with the run id and strategy. Identifying values and
// key material never go into log fields.
func ForRun(runID, strategy string) *logrus.Entry {
	return get().WithFields(logrus.Fields{
		"run_id":   runID,
		"strategy": strategy,
	})
}
