package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/francislegacy/legacy/internal/mail"
	"github.com/francislegacy/legacy/internal/service"
	"github.com/francislegacy/legacy/internal/store"
)

func newMemberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage family member logins",
	}

	cmd.AddCommand(newMemberCreateCmd())

	return cmd
}

// ---------- member create ----------

func newMemberCreateCmd() *cobra.Command {
	var (
		firstName string
		lastName  string
		username  string
		memberID  string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a family member with login credentials",
		Long: `Add a family member to the tree and give them a login, or give an existing
member (--id) a login. The initial password equals the username and must be
changed at first sign-in.`,
		Example: `  legacy member create --first-name Ruth --last-name Francis
  legacy member create --id 0190c4d2-... --username ruthie`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if memberID == "" && (strings.TrimSpace(firstName) == "" || strings.TrimSpace(lastName) == "") {
				return fmt.Errorf("either --id or both --first-name and --last-name are required")
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

			logger := newLogger(os.Stderr, cfg.Logging, false)
			auditor := service.NewAuditor(st, logger)
			accounts := service.NewAccountService(st, newHasher(cfg), mail.LogSender{Logger: logger}, auditor,
				service.AccountOptions{Environment: cfg.Environment, Logger: logger})

			if memberID == "" {
				m, err := st.CreateFamilyMember(cmd.Context(), store.FamilyMemberInput{
					FirstName: strings.TrimSpace(firstName),
					LastName:  strings.TrimSpace(lastName),
				})
				if err != nil {
					return err
				}
				memberID = m.ID
			}

			res, err := accounts.ProvisionMemberLogin(cmd.Context(), service.Actor{}, memberID, username)
			switch {
			case errors.Is(err, service.ErrNotFound):
				return fmt.Errorf("no family member with id %q", memberID)
			case errors.Is(err, service.ErrDuplicate):
				return fmt.Errorf("username %q is already taken", username)
			case err != nil:
				return err
			}

			fmt.Printf("Member %s can sign in as %q\n", memberID, res.Username)
			fmt.Printf("  initial password: %s (must be changed at first login)\n", res.InitialPassword)
			return nil
		},
	}

	cmd.Flags().StringVar(&firstName, "first-name", "", "First name of a new member")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name of a new member")
	cmd.Flags().StringVar(&username, "username", "", "Login username (default first.last)")
	cmd.Flags().StringVar(&memberID, "id", "", "Existing family member id")

	return cmd
}
