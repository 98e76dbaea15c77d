package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caravel-data/caravel"
)

// readFrame loads a tabular file, picking the format from the extension.
func readFrame(path string) (*caravel.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return caravel.ReadCSV(path)
	case ".json":
		return caravel.ReadJSON(path)
	case ".ndjson", ".jsonl":
		opt := caravel.DefaultJSONReadOptions()
		opt.Format = caravel.JSONLines
		return caravel.ReadJSON(path, opt)
	case ".parquet":
		return caravel.ReadParquet(path)
	default:
		return nil, fmt.Errorf("unsupported input format %q (want .csv, .json, .ndjson or .parquet)", filepath.Ext(path))
	}
}

// writeFrame stores a frame, picking the format from the extension.
func writeFrame(df *caravel.DataFrame, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return df.WriteCSV(path)
	case ".json":
		return df.WriteJSON(path)
	case ".ndjson", ".jsonl":
		opt := caravel.DefaultJSONWriteOptions()
		opt.Format = caravel.JSONLines
		return df.WriteJSON(path, opt)
	case ".parquet":
		return df.WriteParquet(path)
	default:
		return fmt.Errorf("unsupported output format %q (want .csv, .json, .ndjson or .parquet)", filepath.Ext(path))
	}
}
