package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  "Apply the embedded schema migrations or report which of them have been applied.",
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateStatusCmd())

	return cmd
}

// ---------- migrate up ----------

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
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

			fmt.Printf("Database %s is up to date\n", cfg.Database.Driver)
			return nil
		},
	}
}

// ---------- migrate status ----------

func newMigrateStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer st.Close()

			statuses, err := st.MigrationStatuses(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(statuses)
			}

			fmt.Printf("%-10s %-40s %-8s %s\n", "VERSION", "SOURCE", "APPLIED", "AT")
			fmt.Printf("%-10s %-40s %-8s %s\n", "-------", "------", "-------", "--")
			for _, s := range statuses {
				applied, at := "no", ""
				if s.Applied {
					applied = "yes"
					at = s.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%-10d %-40s %-8s %s\n", s.Version, filepath.Base(s.Source), applied, at)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
