// The main package for the jobalert executable.
package main

import (
	"github.com/JakeFAU/jobalert-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
