// Package config loads, validates, and defaults pressline's TOML
// configuration.
package config
