package main

import (
	"fmt"
	"strconv"
	"time"

	"ritual/internal/auth"
	"ritual/internal/catalog"
	"ritual/internal/config"
	"ritual/internal/db"
	"ritual/internal/logger"

	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Init(cfg.LogLevel, cfg.LogFormat)

			gdb, err := db.Connect(cfg.DatabaseURL, db.Options{})
			if err != nil {
				return err
			}
			if err := db.AutoMigrateAndIndexes(gdb); err != nil {
				return err
			}
			logger.Log.Info("migrations applied")
			return nil
		},
	}
}

// newTokenCommand issues a bearer token for local testing. Real tokens come
// from the session service.
func newTokenCommand() *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Print a signed bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || uid == 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			if role != auth.RoleUser && role != auth.RoleAdmin {
				return fmt.Errorf("invalid role %q: must be %s or %s", role, auth.RoleUser, auth.RoleAdmin)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tok, err := auth.NewJWT(cfg.JWTSecret).WithTTL(ttl).Sign(uid, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", auth.RoleUser, "token role (user|admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newCatalogCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate a catalog file and print the effective catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(path)
			if err != nil {
				return err
			}
			out, err := cat.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "catalog YAML (default: built-in)")
	return cmd
}
