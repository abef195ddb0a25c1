// Package logging wires the process logger from configuration.
package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/variantdb-pipeline/internal/config"
)

// New builds a logrus logger from the logging configuration. Unknown levels
// fall back to info rather than failing startup.
func New(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}
