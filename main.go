// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/invowk/launchkit/cmd/launchkit"

func main() {
	cmd.Execute()
}
