/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/emlakhub/apiserver/config"
	"github.com/emlakhub/apiserver/internal/db"
	"github.com/emlakhub/apiserver/internal/services"
	"github.com/emlakhub/apiserver/internal/store"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed initial data",
}

var seedAdminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Create the admin account from ADMIN_* settings if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		users := services.NewUserService(store.NewUserRepository(conn))
		admin, created, err := users.EnsureAdmin(cmd.Context(), services.RegisterInput{
			Email:     cfg.Admin.Email,
			Password:  cfg.Admin.Password,
			FirstName: cfg.Admin.FirstName,
			LastName:  cfg.Admin.LastName,
		})
		if err != nil {
			return fmt.Errorf("seed admin failed: %w", err)
		}
		if created {
			slog.Info("admin account created", "email", admin.Email, "name", admin.FullName(), "id", admin.ID)
		} else {
			slog.Info("admin account already exists", "email", admin.Email, "id", admin.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.AddCommand(seedAdminCmd)
}
