// Package logging sets up the process logger. The terminal UI owns stdout,
// so entries always go to a file.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// Setup opens logFilePath for appending and configures level by env.
// The returned closer releases the file.
func Setup(env, logFilePath string) (*logrus.Entry, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err != nil {
		return nil, nil, err
	}
	logFile, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	return New(env, logFile), logFile, nil
}

// New builds a logger writing to w.
func New(env string, w io.Writer) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})

	switch env {
	case envLocal:
		log.SetLevel(logrus.DebugLevel)
	case envDev:
		log.SetLevel(logrus.InfoLevel)
	case envProd:
		log.SetLevel(logrus.WarnLevel)
	default:
		log.SetLevel(logrus.WarnLevel)
	}

	return logrus.NewEntry(log)
}

// Discard is a logger for tests and callers that pass nil.
func Discard() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}
