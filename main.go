// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"

	cmd "github.com/phylorun/phylorun/cmd/phylorun"
)

func main() {
	os.Exit(cmd.Execute())
}
