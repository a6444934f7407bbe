// Command lazabot is the single binary that drives flash-sale monitoring
// and instant checkout: see internal/cli for the subcommand tree.
package main

import (
	"fmt"
	"os"

	"github.com/relaysix/lazabot/internal/cli"
)

var (
	Version = "dev"
)

func main() {
	cli.Version = Version
	if err := cli.RootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
