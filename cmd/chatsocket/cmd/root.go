package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	verbose     bool
	debug       bool
	logLevel    string
	configPath  string
	dialTimeout time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatsocket",
	Short: "Chat event socket client",
	Long: `chatsocket connects to a chat server over a WebSocket and reports
participants joining and leaving, or sends raw frames to it.

Connection settings can be given on the command line or in an HCL
configuration file (--config), which may also define announce blocks:
messages sent on a cron schedule while listening.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug output")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "HCL configuration file or directory")
	rootCmd.PersistentFlags().DurationVar(&dialTimeout, "dial-timeout", 0, "WebSocket dial timeout (default 30s)")
}
