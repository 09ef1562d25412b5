package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PSU3D0/formualizer-sub003/internal/xlio"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Convert a workbook between xlsx and the engine's JSON IR",
	Long: `convert loads <in> (by its extension) and writes it back out as
<out> (by its extension) — e.g. "formualizer convert book.xlsx book.json"
or "formualizer convert book.json book.xlsx".`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, out := args[0], args[1]

		wb, loadResult, err := openWorkbook(in)
		if err != nil {
			return err
		}

		switch ext := strings.ToLower(filepath.Ext(out)); ext {
		case ".xlsx", ".xlsm":
			if err := xlio.SaveXLSX(wb, out); err != nil {
				return err
			}
		case ".json":
			if err := xlio.SaveIR(wb, out); err != nil {
				return err
			}
		default:
			return fmt.Errorf("formualizer: unsupported output extension %q", ext)
		}

		fmt.Printf("converted %s -> %s (%d sheet(s), %d value(s), %d formula(s))\n",
			in, out, loadResult.Sheets, loadResult.ValuesInstalled, loadResult.FormulasInstalled)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
}
