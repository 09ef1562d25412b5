// Command formualizer is a CLI front-end over the workbook façade: load a
// spreadsheet file, evaluate it, inspect cells, and convert between the
// xlsx/JSON-IR formats xlio supports.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
