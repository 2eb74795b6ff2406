// Package config handles configuration loading for the companion client.
//
// Configuration is YAML with ${ENV_VAR} expansion and sensible defaults.
// Default file locations (in order):
//
//  1. Path from COMPANION_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/companion/companion.yaml
//  3. ~/.config/companion/companion.yaml
//
// Only gateway.url is strictly required; everything else defaults.
package config
