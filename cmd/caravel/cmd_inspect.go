package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var headRows int

// schemaCmd prints the inferred schema of a tabular file
var schemaCmd = &cobra.Command{
	Use:   "schema [input]",
	Short: "Print the inferred schema of a tabular file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		df, err := readFrame(args[0])
		if err != nil {
			return err
		}
		schema, err := df.Schema()
		if err != nil {
			return err
		}
		fmt.Println(schema)
		return nil
	},
}

// headCmd previews the first rows of a tabular file
var headCmd = &cobra.Command{
	Use:   "head [input]",
	Short: "Preview the first rows of a tabular file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		df, err := readFrame(args[0])
		if err != nil {
			return err
		}
		logger.Debug("loaded input", zap.Int("rows", df.Height()))
		fmt.Println(df.Head(headRows))
		return nil
	},
}

func init() {
	headCmd.Flags().IntVarP(&headRows, "rows", "n", 10, "number of rows to show")
}
