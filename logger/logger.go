package logger

import (
	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger. It is usable before Init with logrus defaults.
var Logger = logrus.New()

// Init configures Logger with a full-timestamp text formatter and the given level.
// Unknown levels fall back to info.
func Init(level string) {
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		Logger.Warnf("Unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Logger.WithField("component", name)
}
