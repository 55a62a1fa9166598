// Package cli provides the command-line interface for talenthub.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xlsmart/talenthub/internal/client"
	"github.com/xlsmart/talenthub/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string
	userID    string
	timeout   time.Duration

	cfg       config.Config
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "talenthub",
	Short: "XLSMART HR talent pipeline",
	Long: `talenthub uploads employee and role spreadsheets from the merging
companies, standardizes roles against a shared catalog, assigns employees to
standard roles with an AI classifier and tracks every bulk run as a session.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if serverURL == "" {
			serverURL = cfg.ServerURL
		}
		if userID == "" {
			userID = defaultUser()
		}
		apiClient = client.New(serverURL, userID)
		return nil
	},
}

// defaultUser picks the creator id sent with mutating requests.
func defaultUser() string {
	if u := os.Getenv("TALENTHUB_USER"); u != "" {
		return u
	}
	return os.Getenv("USER")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default from TALENTHUB_SERVER_URL)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user id recorded as session creator (default $TALENTHUB_USER or $USER)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "timeout for a single request")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(employeesCmd)
	rootCmd.AddCommand(rolesCmd)
}
