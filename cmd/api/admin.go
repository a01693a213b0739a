package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var adminFlags struct {
	name     string
	email    string
	password string
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create the bootstrap administrator if the email is not taken",
	RunE:  runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&adminFlags.name, "name", "Administrator", "display name")
	createAdminCmd.Flags().StringVar(&adminFlags.email, "email", "", "login email")
	createAdminCmd.Flags().StringVar(&adminFlags.password, "password", "", "initial password")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	c, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()
	if !c.postgres.Enabled() {
		return errors.New("POSTGRES_DSN is required; an in-memory admin would not outlive this command")
	}

	user, created, err := c.staff.EnsureAdmin(cmd.Context(), adminFlags.name, adminFlags.email, adminFlags.password)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	if created {
		c.logger.Info("admin created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	} else {
		c.logger.Info("admin already exists", zap.String("user_id", user.ID))
	}
	return nil
}
