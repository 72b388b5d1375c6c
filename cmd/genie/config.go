package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ashureev/genie/internal/appconfig"
	"github.com/urfave/cli/v3"
)

var configCmd = &cli.Command{
	Name:  "config",
	Usage: "Inspect the application config file",
	Commands: []*cli.Command{
		{
			Name:   "show",
			Usage:  "Print the configuration the server would use, fallbacks included",
			Action: configShowAction,
		},
		{
			Name:      "validate",
			Aliases:   []string{"lint"},
			Usage:     "Strictly validate a configuration file",
			ArgsUsage: "[path]",
			Action:    configValidateAction,
		},
	},
}

func configShowAction(_ context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadEnv(cmd)
	if err != nil {
		return exitf("failed to load configuration: %v", err)
	}

	s := appconfig.NewStore(appconfig.Options{
		Path:             cfg.AppConfig.Path,
		FallbackEndpoint: cfg.AppConfig.FallbackEndpoint,
		Logger:           logger,
	})
	data, err := json.MarshalIndent(s.Get(), "", "  ")
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "# %s (source: %s)\n", s.Path(), s.Source())
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func configValidateAction(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().Get(0)
	if path == "" {
		cfg, _, err := loadEnv(cmd)
		if err != nil {
			return exitf("failed to load configuration: %v", err)
		}
		path = cfg.AppConfig.Path
	}

	c, err := appconfig.ReadFile(path)
	if err != nil {
		return exitf("validation failed: %v", err)
	}

	var problems []string
	if c.AppName == "" {
		problems = append(problems, "appName is empty")
	}
	if c.APIEndpoint == "" {
		problems = append(problems, "apiEndpoint is empty; the fallback endpoint will be used")
	} else if u, err := url.Parse(c.APIEndpoint); err != nil || !u.IsAbs() {
		return exitf("validation failed: apiEndpoint %q is not an absolute URL", c.APIEndpoint)
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "Configuration file %s is valid\n", path)
	fmt.Fprintf(w, "- App name: %s\n", c.AppName)
	fmt.Fprintf(w, "- API endpoint: %s\n", c.APIEndpoint)
	fmt.Fprintf(w, "- Features: %d\n", len(c.Features))
	if len(problems) > 0 {
		fmt.Fprintf(w, "Warnings:\n- %s\n", strings.Join(problems, "\n- "))
	}
	return nil
}
