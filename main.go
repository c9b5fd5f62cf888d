// The main package for the docscribe executable.
package main

import (
	"github.com/docscribe/docscribe/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
