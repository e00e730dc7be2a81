package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/francislegacy/legacy/internal/config"
	"github.com/francislegacy/legacy/internal/model"
	"github.com/francislegacy/legacy/internal/password"
	"github.com/francislegacy/legacy/internal/service"
	"github.com/francislegacy/legacy/internal/store"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
		Long:  "Create and list accounts that can sign in to the administrator console, and mint bearer tokens for scripts.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminTokenCmd())

	return cmd
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var (
		email     string
		pw        string
		firstName string
		lastName  string
		role      string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new administrator",
		Example: `  legacy admin create --email grace@example.com --first-name Grace --last-name Francis
  legacy admin create --email cousin@example.com --first-name Sam --last-name Francis --role member`,
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.ToLower(strings.TrimSpace(email))
			if !strings.Contains(email, "@") {
				return fmt.Errorf("invalid email address: %q", email)
			}
			if role != model.RoleAdmin && role != model.RoleMember {
				return fmt.Errorf("role must be %q or %q", model.RoleAdmin, model.RoleMember)
			}

			if pw == "" {
				var err error
				if pw, err = promptPassword(); err != nil {
					return err
				}
			}
			if len(pw) < password.MinLength {
				return fmt.Errorf("password must be at least %d characters", password.MinLength)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer st.Close()

			hash, err := newHasher(cfg).Hash(pw)
			if err != nil {
				return err
			}
			admin := &model.Admin{
				Email:           email,
				PasswordHash:    hash,
				FirstName:       firstName,
				LastName:        lastName,
				Role:            role,
				IsActive:        true,
				PasswordChanged: true,
			}
			if err := st.CreateAdmin(cmd.Context(), admin); err != nil {
				if errors.Is(err, store.ErrConflict) {
					return fmt.Errorf("an account with email %q already exists", email)
				}
				return err
			}

			fmt.Printf("Created %s %q (id %s)\n", role, email, admin.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&pw, "password", "", "Password (prompted if omitted)")
	cmd.Flags().StringVar(&firstName, "first-name", "", "First name (required)")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name (required)")
	cmd.Flags().StringVar(&role, "role", model.RoleAdmin, "Role: admin or member")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("first-name")
	cmd.MarkFlagRequired("last-name")

	return cmd
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List administrator accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer st.Close()

			admins, err := st.ListAdmins(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(admins)
			}

			if len(admins) == 0 {
				fmt.Println("No accounts configured. Use 'legacy admin create' to create one.")
				return nil
			}

			fmt.Printf("%-32s %-24s %-8s %-8s\n", "EMAIL", "NAME", "ROLE", "ACTIVE")
			fmt.Printf("%-32s %-24s %-8s %-8s\n", "-----", "----", "----", "------")
			for _, a := range admins {
				active := "yes"
				if !a.IsActive {
					active = "no"
				}
				fmt.Printf("%-32s %-24s %-8s %-8s\n", a.Email, a.FirstName+" "+a.LastName, a.Role, active)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// ---------- admin token ----------

func newAdminTokenCmd() *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an administrator",
		Long: `Issue a signed bearer token for scripted access to the API. The token is
accepted in the Authorization header only when the request carries no
session cookie.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret must be set to issue tokens")
			}
			st, err := openStore(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer st.Close()

			admin, err := st.GetAdminByEmail(cmd.Context(), strings.ToLower(strings.TrimSpace(email)))
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no account with email %q", email)
			}
			if err != nil {
				return err
			}
			if !admin.IsActive {
				return fmt.Errorf("account %q is deactivated", email)
			}

			auth := service.NewAuthService(st, newHasher(cfg), nil, service.AuthOptions{
				JWTSecret: cfg.Auth.JWTSecret,
				Logger:    newLogger(os.Stderr, config.LoggingConfig{Level: "warn"}, false),
			})
			token, err := auth.IssueJWT(cmd.Context(), admin.ID, admin.Email, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Administrator email (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("email")

	return cmd
}
