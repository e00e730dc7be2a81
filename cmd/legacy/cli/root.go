package cli

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/francislegacy/legacy/internal/config"
)

var (
	cfgFile    string
	envFile    string
	appVersion string // set in Execute, printed by serve
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "legacy",
		Short: "Francis family legacy site backend",
		Long: `legacy serves the Francis family site API: the family tree, blog and news,
the photo and document archive, the timeline, member submissions and the
administrator console.

Configuration is read from legacy.yaml (in . or $HOME/.legacy), a .env file,
and LEGACY_* environment variables, in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./legacy.yaml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newMemberCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	// A missing .env file is normal outside development.
	_ = godotenv.Load(envFile)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("legacy")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.legacy")
	}

	config.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix("LEGACY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}

// loadConfig returns the effective configuration.
func loadConfig() (*config.YAMLConfig, error) {
	return config.FromViper(viper.GetViper())
}
