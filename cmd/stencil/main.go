// Command stencil applies project templates to existing applications.
package main

import (
	"os"

	"github.com/NielsdaWheelz/stencil/internal/cli"
	"github.com/NielsdaWheelz/stencil/internal/errors"
)

func main() {
	err := cli.Run(os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(errors.ExitCode(err))
	}
}
