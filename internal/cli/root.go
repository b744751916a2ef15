package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dynis",
	Short: "Dynamic item sets for Omeka S catalogs",
	Long: `dynis keeps dynamic item sets in sync with their saved search query.

Each dynamic item set stores a query. A run searches the items matching it,
attaches the new matches and detaches the items that no longer match.

Configuration is read from dynis.yaml (see --config), then overridden by
DYNIS_* environment variables and finally by flags. A .env file in the
working directory is loaded first.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration
  11 - Database or Redis connection failed
  12 - Another run holds the job lock
  15 - Run stopped before every item set was processed`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo(os.Stdout)
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
	rootCmd.PersistentFlags().StringP("config", "c", "",
		"Path to dynis.yaml or to the directory holding it (default: current directory)")
	rootCmd.PersistentFlags().String("database-url", "",
		"Database URL, overrides database.url and $DYNIS_DATABASE_URL\n"+
			"Examples: postgres://user@localhost/omeka, mysql://user@localhost/omeka")
	rootCmd.PersistentFlags().String("driver", "",
		"Database driver: postgres|mysql (default: detected from the URL)")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
