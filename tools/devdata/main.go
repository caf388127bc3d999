// Command devdata generates legacy datasets for development.
package main

import (
	"os"

	"github.com/sessionvault/legacymigrate/tools/devdata/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
