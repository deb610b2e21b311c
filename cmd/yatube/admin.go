package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/UkralStul/yatube/internal/auth"
	"github.com/UkralStul/yatube/internal/config"
	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/storage"
	"github.com/spf13/cobra"
)

var (
	tokenCmd = &cobra.Command{
		Use:   "token <username>",
		Short: "Print a signed bearer token for development",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			token, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL).Issue(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Storage != config.StoragePostgres {
				return fmt.Errorf("migrate needs postgres storage, got %q", cfg.Storage)
			}
			// New мигрирует схему при подключении
			_, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			closeStore()
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}

	userCmd = &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	userAddCmd = &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store storage.Storage) error {
				u, err := store.CreateUser(ctx, &domain.User{Username: args[0]})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.Username, u.ID)
				return nil
			})
		},
	}

	groupCmd = &cobra.Command{
		Use:   "group",
		Short: "Manage groups",
	}
	groupAddCmd = &cobra.Command{
		Use:   "add <slug> <title> [description]",
		Short: "Create a group",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := &domain.Group{Slug: args[0], Title: args[1]}
			if len(args) == 3 {
				g.Description = args[2]
			}
			if strings.ContainsAny(g.Slug, " /") {
				return fmt.Errorf("slug %q must be URL-safe", g.Slug)
			}
			return withStore(cmd, func(ctx context.Context, store storage.Storage) error {
				created, err := store.CreateGroup(ctx, g)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created group %s (%s)\n", created, created.ID)
				return nil
			})
		},
	}
)

func init() {
	userCmd.AddCommand(userAddCmd)
	groupCmd.AddCommand(groupAddCmd)
}
