// Package config loads the authd service configuration from an optional
// .env file and environment variables.
package config
