// Command reim runs store scenarios, inspects state documents and hosts
// the time-travel debugger hub.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/IniZio/reim/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "reim: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
