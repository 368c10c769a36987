// The main package for the magazine executable.
package main

import (
	"github.com/JakeFAU/magazine-cms/cmd"
)

func main() {
	cmd.Execute()
}
