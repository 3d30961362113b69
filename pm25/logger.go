package pm25

import "github.com/sirupsen/logrus"

// Logger is the injectable logging sink threaded through Config and every
// stage. Only the small subset of logrus.FieldLogger that the engine
// actually uses is required; because WithFields takes logrus.Fields and
// returns *logrus.Entry, an implementation still depends on logrus types.
type Logger interface {
	WithFields(fields logrus.Fields) *logrus.Entry
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// defaultLogger returns a logrus.Logger configured the way the rest of the
// engine expects: text output, info level.
func defaultLogger() Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return l
}

// logOrDefault returns c.Logger if set, otherwise a fresh default logger.
// Config is passed by value, so this never mutates the caller's Config.
func (c Config) logOrDefault() Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return defaultLogger()
}
