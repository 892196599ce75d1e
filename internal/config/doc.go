// SPDX-License-Identifier: MPL-2.0

// Package config handles launcher configuration using Viper with CUE as the
// file format.
//
// Configuration is loaded from config.cue in the launchkit configuration
// directory ($XDG_CONFIG_HOME/launchkit on Linux, ~/Library/Application
// Support/launchkit on macOS, %APPDATA%\launchkit on Windows), falling back
// to ./config.cue. The file is validated against the embedded
// config_schema.cue, merged over defaults, and LAUNCHKIT_* environment
// variables override both (tracking.api_key reads LAUNCHKIT_API_KEY).
package config
