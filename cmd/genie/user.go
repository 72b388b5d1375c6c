package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/genie/internal/identity"
	"github.com/ashureev/genie/internal/store"
	"github.com/urfave/cli/v3"
)

var userCmd = &cli.Command{
	Name:  "user",
	Usage: "Manage local accounts",
	Commands: []*cli.Command{
		{
			Name:  "add",
			Usage: "Create an account",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Account email", Required: true},
				&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Account password", Required: true},
			},
			Action: userAddAction,
		},
	},
}

func userAddAction(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := loadEnv(cmd)
	if err != nil {
		return exitf("failed to load configuration: %v", err)
	}

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return exitf("failed to open database: %v", err)
	}
	defer func() { _ = repo.Close() }()

	svc := identity.NewService(repo, identity.Options{
		AdminEmail:     cfg.Admin.Email,
		HashIterations: cfg.Admin.HashIterations,
	})
	user, err := svc.Register(ctx, cmd.String("email"), cmd.String("password"))
	switch {
	case errors.Is(err, identity.ErrEmailTaken),
		errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrWeakPassword):
		return exitf("%v", err)
	case err != nil:
		return exitf("failed to create user: %v", err)
	}

	role := "user"
	if svc.IsAdmin(user) {
		role = "admin"
	}
	_, err = fmt.Fprintf(cmd.Root().Writer, "Created %s %s (%s)\n", role, user.Email, user.UserID)
	return err
}
