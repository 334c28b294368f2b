package utils

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	InfoLogger  *logrus.Logger
	ErrorLogger *logrus.Logger

	loggerOnce sync.Once
)

// InitLogger -> menyiapkan InfoLogger (stdout) dan ErrorLogger (stderr). Aman dipanggil berulang kali.
func InitLogger() {
	loggerOnce.Do(func() {
		InfoLogger = logrus.New()
		ErrorLogger = logrus.New()

		// Set output untuk InfoLogger ke stdout
		InfoLogger.SetOutput(os.Stdout)
		InfoLogger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})

		// Set output untuk ErrorLogger ke stderr
		ErrorLogger.SetOutput(os.Stderr)
		ErrorLogger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})

		InfoLogger.SetLevel(logrus.InfoLevel)
		ErrorLogger.SetLevel(logrus.ErrorLevel)

		if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
			InfoLogger.SetLevel(lvl)
		}
	})
}

// Log -> logger default untuk komponen yang tidak diberi logger sendiri
func Log() logrus.FieldLogger {
	InitLogger()
	return InfoLogger
}
