package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fieldline/fieldline/internal/access"
	"github.com/fieldline/fieldline/internal/role"
	rolePostgres "github.com/fieldline/fieldline/internal/role/postgres"
	"github.com/fieldline/fieldline/internal/user"
	userPostgres "github.com/fieldline/fieldline/internal/user/postgres"
	"github.com/fieldline/fieldline/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	seedAdminEmail    string
	seedAdminName     string
	seedAdminPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed roles and the first admin user",
	Long:  `Insert the default roles and create an admin account if it does not exist yet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := setup()
		if err != nil {
			return err
		}
		log := logger.LoggerWrapper()

		db, err := initDB(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		roles := role.NewService(rolePostgres.NewRoleRepository(db.ORM), log)
		if err := roles.InsertRoles(ctx); err != nil {
			return fmt.Errorf("failed to insert roles: %w", err)
		}

		userRepo := userPostgres.NewUserRepository(db.ORM)
		email := strings.ToLower(strings.TrimSpace(seedAdminEmail))
		if _, err := userRepo.GetByEmail(ctx, email); err == nil {
			fmt.Println("admin user already exists:", email)
			return nil
		} else if !errors.Is(err, user.ErrNotFound) {
			return fmt.Errorf("failed to look up admin user: %w", err)
		}

		users := user.NewService(userRepo, roles, nil, cfg.Security.BCryptCost, log)
		admin, err := users.Create(ctx, user.CreateUserDTO{
			Email:    email,
			Name:     seedAdminName,
			Password: seedAdminPassword,
			Role:     access.RoleAdmin,
		})
		if err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		fmt.Println("Seeded admin user:", admin.Email)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "admin@fieldline.local", "email of the seeded admin user")
	seedCmd.Flags().StringVar(&seedAdminName, "admin-name", "Administrator", "name of the seeded admin user")
	seedCmd.Flags().StringVar(&seedAdminPassword, "admin-password", "changeme123", "password of the seeded admin user")
}
