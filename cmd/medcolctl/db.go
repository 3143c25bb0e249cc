package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/internal/repository/postgres"
	userService "github.com/jwalitptl/dispensing-api/internal/service/user"
	apperrors "github.com/jwalitptl/dispensing-api/pkg/errors"
	"github.com/jwalitptl/dispensing-api/pkg/security"
	"github.com/jwalitptl/dispensing-api/pkg/validator"
)

// seedPassword is the password of every demo account.
const seedPassword = "password"

var seedUsers = []model.CreateUserRequest{
	{Name: "Usuario Administrador", Email: "admin@medcol.com", Role: model.RoleAdmin, Position: "Administrador del Sistema", Status: model.UserStatusActive},
	{Name: "Usuario Regular", Email: "user@medcol.com", Role: model.RoleUser, Position: "Personal Médico", Status: model.UserStatusActive},
	{Name: "Juan Pérez", Email: "juan@medcol.com", Role: model.RoleUser, Position: "Doctor", Status: model.UserStatusActive},
	{Name: "María García", Email: "maria@medcol.com", Role: model.RoleUser, Position: "Enfermera", Status: model.UserStatusInactive},
	{Name: "Usuario Externo", Email: "externo@medcol.com", Role: model.RoleExternal, Position: "Consultor Externo", Status: model.UserStatusActive},
}

func migrateCmd(load loader) *cobra.Command {
	var withSeed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := load()
			if err != nil {
				return err
			}
			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(cmd.Context(), db, withSeed); err != nil {
				return err
			}
			l.Info("database migrated", "seed", withSeed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withSeed, "seed", false, "also load the demo documents and medications")
	return cmd
}

func seedCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo accounts, skipping those that exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := load()
			if err != nil {
				return err
			}
			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := userService.NewService(
				postgres.NewUserRepository(postgres.NewBaseRepository(db)),
				security.NewBcryptHasher(cfg.Session.BcryptCost),
				validator.New(),
				l,
			)

			for _, u := range seedUsers {
				req := u
				req.Password = seedPassword
				if _, err := svc.CreateUser(cmd.Context(), &req); err != nil {
					var appErr *apperrors.AppError
					if errors.As(err, &appErr) && appErr.Code == apperrors.ErrConflict {
						l.Info("account exists, skipped", "email", u.Email)
						continue
					}
					return fmt.Errorf("failed to seed %s: %w", u.Email, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", u.Email, u.Role)
			}
			return nil
		},
	}
}

func userCmd(load loader) *cobra.Command {
	var req model.CreateUserRequest
	var role string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a dashboard account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := load()
			if err != nil {
				return err
			}
			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := userService.NewService(
				postgres.NewUserRepository(postgres.NewBaseRepository(db)),
				security.NewBcryptHasher(cfg.Session.BcryptCost),
				validator.New(),
				l,
			)

			req.Role = model.Role(role)
			user, err := svc.CreateUser(cmd.Context(), &req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "login email")
	cmd.Flags().StringVar(&req.Password, "password", "", "initial password, at least 6 characters")
	cmd.Flags().StringVar(&role, "role", string(model.RoleUser), "admin, user or externo")
	cmd.Flags().StringVar(&req.Position, "position", "", "job title")
	cmd.Flags().StringVar(&req.Status, "status", model.UserStatusActive, "active or inactive")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func hashPasswordCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			hash, err := security.NewBcryptHasher(cfg.Session.BcryptCost).Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
