// Root command for the sone CLI.
package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/sone/internal/paths"
	"github.com/mesh-intelligence/sone/pkg/sone"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagJSON      bool
)

// settings holds config.yaml as loaded by PersistentPreRunE.
var settings *viper.Viper

var rootCmd = &cobra.Command{
	Use:     "sone",
	Short:   "Sone synchronizes identities and their content documents",
	Version: sone.Version,
	// Do not print usage on errors returned by subcommands.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		v, err := loadConfig(configDir)
		if err != nil {
			return err
		}
		settings = v
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/sone)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/sone)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
}

// resolveDataDir follows --data-dir > config.yaml data_dir > SONE_DATA_DIR >
// platform default.
func resolveDataDir() (string, error) {
	var configured string
	if settings != nil {
		configured = settings.GetString(cfgKeyDataDir)
	}
	return paths.ResolveDataDir(flagDataDir, configured)
}

// resolveConfigDir follows --config-dir > SONE_CONFIG_DIR > platform default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}
