// Package commands implements the avdeccctl command line.
package commands

import (
	"github.com/opd-ai/avdecc/config"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile       string
	transportKind string
	ifaceName     string
	logLevel      string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "avdeccctl",
	Short: "avdeccctl - IEEE 1722.1 command tool",
	Long: `avdeccctl sends ACMP, AEM and Milan vendor-unique commands to AVDECC
entities and waits for their responses. It can also act as a responding
entity for testing controllers.

Use "avdeccctl [command] --help" for more information about a command.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./avdecc.yaml)")
	flags.StringVar(&transportKind, "transport", "", "transport kind: udp, raw or sim")
	flags.StringVar(&ifaceName, "interface", "", "network interface for the raw transport")
	flags.StringVar(&logLevel, "log-level", "", "log level: TRACE, DEBUG, INFO, WARN or ERROR")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(respondCmd)
	rootCmd.AddCommand(acmpCmd)
	rootCmd.AddCommand(aemCmd)
	rootCmd.AddCommand(mvuCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("transport") {
		loaded.Transport.Kind = transportKind
	}
	if flags.Changed("interface") {
		loaded.Transport.Interface = ifaceName
	}
	if flags.Changed("log-level") {
		loaded.Logging.Level = logLevel
	}
	config.ApplyDefaults(loaded)
	if err := config.Validate(loaded); err != nil {
		return err
	}

	cfg = loaded
	return initLogger(cfg)
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}
