// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/modctl/modctl/cmd/modctl"

func main() {
	cmd.Execute()
}
