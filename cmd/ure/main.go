// Command ure searches and replaces text across content records.
package main

import (
	"fmt"
	"os"

	"github.com/kilupskalvis/ure/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.ExitError)
	}
}
