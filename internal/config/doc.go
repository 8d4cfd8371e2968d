// Package config loads and validates application configuration.
//
// Configuration comes from environment variables (with an optional .env file
// for development). BACKEND_URL and SESSION_SECRET are required; DATA_DIR is
// optional and gates offline support.
package config
