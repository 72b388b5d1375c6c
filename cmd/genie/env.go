package main

import (
	"fmt"
	"log/slog"

	"github.com/ashureev/genie/internal/config"
	"github.com/ashureev/genie/internal/logging"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

// loadEnv reads the .env file, process configuration and installs the
// default logger. A missing .env file is not an error.
func loadEnv(cmd *cli.Command) (*config.Config, *slog.Logger, error) {
	envFile := cmd.Root().String("env-file")
	envErr := godotenv.Load(envFile)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables", "path", envFile)
	}
	return cfg, logger, nil
}

func exitf(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), 1)
}
