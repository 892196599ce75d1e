// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the launchkit command line interface.
//
// Command handlers receive an *App and delegate launches, configuration
// loading and error rendering through its service interfaces.
package cmd
