// Package cmd implements the command-line interface for drivedesk.
//
// This package provides the following commands:
//   - serve: Start the Drive file manager web server
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
// Its flags, the DRIVEDESK_* environment variables and an optional YAML file
// are merged by the config package.
package cmd
