package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var evalCmd = &cobra.Command{
	Use:   "eval <path>",
	Short: "Load a workbook and evaluate every formula in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		wb, loadResult, err := openWorkbook(path)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		evalResult, err := wb.EvaluateAll(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("loaded %s: %d sheet(s), %d value(s), %d formula(s) (%d failed)\n",
			path, loadResult.Sheets, loadResult.ValuesInstalled, loadResult.FormulasInstalled, loadResult.FormulasFailed)
		fmt.Printf("evaluated %d cell(s) in %s (%d cycle error(s))\n",
			evalResult.ComputedVertices, evalResult.Elapsed, evalResult.CycleErrors)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evalCmd)
}
