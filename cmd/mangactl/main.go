// Command mangactl deploys the MangaNFT contracts and runs the day to day
// operations against them.
package main

import (
	"fmt"
	"os"

	"manga/offchain/internal/errs"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if h := hint(err); h != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", h)
		}
		os.Exit(errs.ExitCode(err))
	}
}
