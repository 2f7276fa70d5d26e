// citescope is the command line client for the citation analytics API.
package main

import "github.com/citescope/citescope/internal/interfaces/cli"

func main() {
	cli.Execute()
}
