package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/producthub/producthub/internal/config"
	"github.com/producthub/producthub/internal/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "producthub",
	Short:         "Product Hub upload page",
	Long:          "Serves the Product Hub page: sign in with the identity provider and upload product spreadsheets to the upload API.",
	Version:       version.GetFullVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "path to the YAML configuration file (env CONFIG_PATH)")

	rootCmd.AddCommand(serveCmd, checkCmd, keygenCmd, versionCmd)
}

// loadConfig reads the configuration and builds the logger it describes
func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, newLogger(cfg.Log), nil
}

func newLogger(c config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if c.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("producthub failed")
		os.Exit(1)
	}
}
