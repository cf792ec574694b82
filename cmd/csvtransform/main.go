// Command csvtransform re-shapes CSV files with the rules of a JSON job file.
package main

import (
	"os"

	"csvtransform/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
