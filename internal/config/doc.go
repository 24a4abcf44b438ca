// Package config loads, normalizes, and validates tabcap's TOML
// configuration.
//
// A single Config struct covers the daemon and the CLI: paths and socket
// locations, upload API settings, capture engine intervals and microphone
// constraints, cross-context command timeouts, and the page bridge binding.
// Load resolves the config file (explicit flag, then the default user
// location), applies defaults for everything unset, expands ~ in paths, and
// rejects configs the daemon could not run with.
//
// The embedded sample_config.toml is the documented reference for every
// knob; WriteSample materializes it for new installs.
package config
