// Genie - a minimal chat front end for a configurable JSON endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// Version is set during build using ldflags
var Version = "dev"

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "genie",
		Version: Version,
		Usage:   "Chat with a configurable JSON endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file with process settings",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			serveCmd,
			configCmd,
			userCmd,
			versionCmd,
		},
		// Running without a subcommand starts the server.
		Action: serveAction,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
