package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log глобальный логгер приложения. До вызова Init пишет в stderr с уровнем Info.
var Log = logrus.New()

// Init инициализирует структурированный логгер.
// В development используется текстовый формат, в остальных окружениях JSON.
func Init(level, env string) {
	Log = logrus.New()
	Log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if env == "development" {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// WithComponent возвращает запись лога с полем component.
func WithComponent(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
