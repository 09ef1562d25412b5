package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <path> <cell>",
	Short: "Load a workbook, evaluate it, and print one cell's value",
	Long: `get loads path, evaluates every formula, then prints the value at
cell (e.g. "Sheet1!B7", or bare "B7" to use the first sheet).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, cellSpec := args[0], args[1]

		wb, _, err := openWorkbook(path)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()
		if _, err := wb.EvaluateAll(ctx); err != nil {
			return err
		}

		ref, err := parseCellRef(wb, cellSpec)
		if err != nil {
			return err
		}
		v := wb.GetCellValue(ref)
		fmt.Println(v.ToText())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
