package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// NewLogger creates a JSON logger at the level configured under log.level
func NewLogger() *logrus.Logger {
	viper.SetDefault("log.level", "info")

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(ParseLevel(viper.GetString("log.level")))
	return logger
}

// ParseLevel falls back to info for unknown names
func ParseLevel(name string) logrus.Level {
	level, err := logrus.ParseLevel(strings.TrimSpace(name))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewNop returns a logger that discards everything; handy in tests
func NewNop() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
