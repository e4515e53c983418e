// SPDX-License-Identifier: MPL-2.0

package main

import cmd "appgen-cli/cmd/appgen"

func main() {
	cmd.Execute()
}
