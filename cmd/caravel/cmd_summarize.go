package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/caravel-data/caravel"
)

var summarizeOutput string

// summarizeCmd runs a YAML pipeline description against a tabular file
var summarizeCmd = &cobra.Command{
	Use:   "summarize [input] [spec.yaml]",
	Short: "Run a filter/group/aggregate pipeline from a YAML description",
	Long: `Reads a tabular input file, runs the pipeline described in the YAML
file against it and prints the result, or writes it when --output is set.

The YAML description has three sections:

  filters:          # optional, combined with AND
    - column: group
      op: eq        # eq, neq, gt, gte, lt, lte, contains
      value: A
  group_by: [group] # optional
  aggs:
    - fn: mean      # sum, mean, min, max, count, first, last, std, var, median
      column: value
      as: avg_value # optional, defaults to <column>_<fn>`,
	Args: cobra.ExactArgs(2),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().StringVarP(&summarizeOutput, "output", "o", "", "output file (.csv, .json, .ndjson or .parquet); prints when empty")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	inputPath, specPath := args[0], args[1]

	specData, err := os.ReadFile(specPath)
	if err != nil {
		return fmt.Errorf("failed to read pipeline description: %w", err)
	}
	var spec caravel.SummarySpec
	if err := yaml.Unmarshal(specData, &spec); err != nil {
		return fmt.Errorf("failed to parse pipeline description: %w", err)
	}

	df, err := readFrame(inputPath)
	if err != nil {
		return err
	}
	logger.Debug("loaded input",
		zap.String("path", inputPath),
		zap.Int("rows", df.Height()),
		zap.Int("cols", df.Width()))

	result, err := caravel.Summarize(df, spec)
	if err != nil {
		return err
	}
	logger.Debug("pipeline complete", zap.Int("rows", result.Height()))

	if summarizeOutput == "" {
		fmt.Println(result)
		return nil
	}
	if err := writeFrame(result, summarizeOutput); err != nil {
		return err
	}
	logger.Info("wrote result", zap.String("path", summarizeOutput), zap.Int("rows", result.Height()))
	return nil
}
