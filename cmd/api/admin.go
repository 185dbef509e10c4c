package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joshua-takyi/campus-events/internal/config"
	"github.com/joshua-takyi/campus-events/internal/connect"
	"github.com/joshua-takyi/campus-events/internal/models"
	"github.com/joshua-takyi/campus-events/internal/services"
	"github.com/spf13/cobra"
)

var (
	promoteEmail  string
	promoteRevoke bool
)

var promoteAdminCmd = &cobra.Command{
	Use:   "promote-admin",
	Short: "Grant or revoke administrator access for a user",
	Example: `  api promote-admin --email dean@campus.edu
  api promote-admin --email dean@campus.edu --revoke`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.StoreDriver != config.StoreMongo {
			return fmt.Errorf("promote-admin needs STORE_DRIVER=%s", config.StoreMongo)
		}

		client, err := connect.MongoDBConnect(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = connect.MongoDBDisconnect() }()

		repo := models.MongodbNewRepo(client, cfg.MongoDBDatabase)
		admin := services.NewAdminService(repo, repo, logger)

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		user, err := admin.SetAdminByEmail(ctx, promoteEmail, !promoteRevoke)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is_admin=%t\n", user.Email, user.IsAdmin)
		return nil
	},
}

func init() {
	promoteAdminCmd.Flags().StringVar(&promoteEmail, "email", "", "email of the user to update")
	promoteAdminCmd.Flags().BoolVar(&promoteRevoke, "revoke", false, "remove administrator access instead of granting it")
	_ = promoteAdminCmd.MarkFlagRequired("email")
}
