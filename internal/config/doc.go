// Package config loads the application configuration from environment
// variables (LUMEN_ prefix) and an optional YAML file, into typed,
// validated sections. Components receive only the section they need;
// nothing reads the environment directly.
package config
