// SPDX-License-Identifier: MPL-2.0

// Command convoy is a modular pipeline runner: it chains single-purpose
// modules into a sequential pipeline where modules exchange data through
// published capabilities.
package main

import cmd "convoy-cli/cmd/convoy"

func main() {
	cmd.Execute()
}
