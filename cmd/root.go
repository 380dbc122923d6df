package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the drivedesk application
var rootCmd = &cobra.Command{
	Use:   "drivedesk",
	Short: "A web file manager for your Google Drive",
	Long: `drivedesk serves a browser UI for Google Drive. After signing in with
Google you can list, search, upload, download and delete your Drive files.

Run "drivedesk serve" to start the server.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "drivedesk version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
