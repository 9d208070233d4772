package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/revolverobotics/gokubi/pkg/config"
)

// configureLogger creates a logger from the --log-level flag, falling back to
// the config file's level, and finally to near-silence so command output
// stays clean.
func configureLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, error) {
	logLevel := logrus.PanicLevel

	logLevelStr, _ := cmd.Flags().GetString("log-level")
	switch {
	case logLevelStr != "":
		level, err := logrus.ParseLevel(logLevelStr)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevelStr)
		}
		logLevel = level
	case cfg != nil && cfg.LogLevel != "":
		// A level from a config file the user supplied explicitly.
		if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
			level, err := logrus.ParseLevel(cfg.LogLevel)
			if err == nil {
				logLevel = level
			}
		}
	}

	logger := logrus.New()
	logger.SetLevel(logLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger, nil
}
