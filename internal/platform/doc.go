// SPDX-License-Identifier: MPL-2.0

// Package platform holds host-environment helpers: OS name constants and
// detection of application sandboxes (Flatpak, Snap) from which host tools
// such as the container engine must be reached through a spawn helper.
package platform
