// Package config loads the server configuration with viper.
//
// Values come from, in order of precedence: command-line flags, DRIVEDESK_*
// environment variables (GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are also
// accepted), an optional YAML config file, and the defaults below.
package config
