package caravel

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// JSONFormat specifies the JSON layout
type JSONFormat int

const (
	// JSONRecords is an array of row objects: [{"a":1,"b":2}, {"a":3,"b":4}]
	JSONRecords JSONFormat = iota
	// JSONColumns is an object of column arrays: {"a":[1,3],"b":[2,4]}
	JSONColumns
	// JSONLines is newline-delimited row objects (NDJSON)
	JSONLines
)

// JSONReadOptions configures JSON reading behavior
type JSONReadOptions struct {
	Format      JSONFormat       // Expected format
	ColumnTypes map[string]DType // Force column types
}

// DefaultJSONReadOptions returns default JSON reading options
func DefaultJSONReadOptions() JSONReadOptions {
	return JSONReadOptions{
		Format: JSONRecords,
	}
}

// ReadJSON reads a JSON file into a DataFrame
func ReadJSON(path string, opts ...JSONReadOptions) (*DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return ReadJSONFromReader(f, opts...)
}

// ReadJSONFromReader reads JSON data from an io.Reader into a DataFrame
func ReadJSONFromReader(r io.Reader, opts ...JSONReadOptions) (*DataFrame, error) {
	opt := DefaultJSONReadOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	if opt.Format == JSONLines {
		return readJSONLines(data, opt)
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON document")
	}
	parsed := gjson.ParseBytes(data)

	switch opt.Format {
	case JSONRecords:
		if !parsed.IsArray() {
			return nil, fmt.Errorf("expected a JSON array of objects")
		}
		return readJSONRecords(parsed.Array(), opt)

	case JSONColumns:
		if !parsed.IsObject() {
			return nil, fmt.Errorf("expected a JSON object of column arrays")
		}
		return readJSONColumns(parsed, opt)
	}
	return nil, fmt.Errorf("unknown JSON format: %d", opt.Format)
}

func readJSONLines(data []byte, opt JSONReadOptions) (*DataFrame, error) {
	var records []gjson.Result
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !gjson.Valid(line) {
			return nil, fmt.Errorf("line %d: invalid JSON", lineNo)
		}
		parsed := gjson.Parse(line)
		if !parsed.IsObject() {
			return nil, fmt.Errorf("line %d: expected a JSON object", lineNo)
		}
		records = append(records, parsed)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan lines: %w", err)
	}
	return readJSONRecords(records, opt)
}

func readJSONRecords(records []gjson.Result, opt JSONReadOptions) (*DataFrame, error) {
	if len(records) == 0 {
		return NewDataFrame()
	}

	// Column names in first-appearance order
	var colNames []string
	colSet := make(map[string]bool)
	for _, record := range records {
		record.ForEach(func(key, _ gjson.Result) bool {
			if !colSet[key.String()] {
				colNames = append(colNames, key.String())
				colSet[key.String()] = true
			}
			return true
		})
	}

	columns := make([]*Series, len(colNames))
	buildErrs := make([]error, len(colNames))
	forEachColumn(len(records), len(colNames), func(i int) {
		name := colNames[i]
		field := func(row int) gjson.Result { return records[row].Get(name) }
		dtype, ok := opt.ColumnTypes[name]
		if !ok {
			dtype = inferJSONDType(len(records), field)
		}
		columns[i], buildErrs[i] = buildJSONSeries(name, dtype, len(records), field)
	})
	for i, err := range buildErrs {
		if err != nil {
			return nil, fmt.Errorf("failed to build column '%s': %w", colNames[i], err)
		}
	}

	return NewDataFrame(columns...)
}

func readJSONColumns(parsed gjson.Result, opt JSONReadOptions) (*DataFrame, error) {
	var colNames []string
	colValues := make(map[string][]gjson.Result)
	height := 0

	var iterErr error
	parsed.ForEach(func(key, value gjson.Result) bool {
		if !value.IsArray() {
			iterErr = fmt.Errorf("column '%s' is not an array", key.String())
			return false
		}
		name := key.String()
		colNames = append(colNames, name)
		colValues[name] = value.Array()
		if n := len(colValues[name]); n > height {
			height = n
		}
		return true
	})
	if iterErr != nil {
		return nil, iterErr
	}
	if len(colNames) == 0 {
		return NewDataFrame()
	}

	columns := make([]*Series, len(colNames))
	for i, name := range colNames {
		values := colValues[name]
		// ragged columns are padded with nulls
		for len(values) < height {
			values = append(values, gjson.Result{Type: gjson.Null})
		}
		at := func(row int) gjson.Result { return values[row] }

		dtype, ok := opt.ColumnTypes[name]
		if !ok {
			dtype = inferJSONDType(height, at)
		}

		col, err := buildJSONSeries(name, dtype, height, at)
		if err != nil {
			return nil, fmt.Errorf("failed to build column '%s': %w", name, err)
		}
		columns[i] = col
	}

	return NewDataFrame(columns...)
}

func jsonMissing(v gjson.Result) bool {
	return !v.Exists() || v.Type == gjson.Null
}

// inferJSONDType picks the dtype from the first non-null value. Whole
// numbers read as Int64; any other JSON value reads as String.
func inferJSONDType(n int, get func(int) gjson.Result) DType {
	for i := 0; i < n; i++ {
		v := get(i)
		if jsonMissing(v) {
			continue
		}
		switch v.Type {
		case gjson.True, gjson.False:
			return Bool
		case gjson.Number:
			f := v.Float()
			if f == float64(int64(f)) {
				return Int64
			}
			return Float64
		default:
			return String
		}
	}
	return String
}

// jsonCells converts one column's values into a typed series, tracking
// validity for missing and null cells.
func jsonCells[T any](name string, n int, get func(int) gjson.Result,
	conv func(gjson.Result) (T, error), mk func(string, []T) *Series) (*Series, error) {

	data := make([]T, n)
	valid := make([]bool, n)
	hasNull := false
	for i := 0; i < n; i++ {
		v := get(i)
		if jsonMissing(v) {
			hasNull = true
			continue
		}
		valid[i] = true
		val, err := conv(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		data[i] = val
	}

	s := mk(name, data)
	if hasNull {
		s.valid = valid
	}
	return s, nil
}

func jsonNumber[T int64 | float64](v gjson.Result, cast func(gjson.Result) T) (T, error) {
	if v.Type != gjson.Number {
		var zero T
		return zero, fmt.Errorf("%s is not a number", v.Raw)
	}
	return cast(v), nil
}

func buildJSONSeries(name string, dtype DType, n int, get func(int) gjson.Result) (*Series, error) {
	switch dtype {
	case Float64:
		return jsonCells(name, n, get, func(v gjson.Result) (float64, error) {
			return jsonNumber(v, gjson.Result.Float)
		}, NewSeriesFloat64)

	case Int64:
		return jsonCells(name, n, get, func(v gjson.Result) (int64, error) {
			return jsonNumber(v, gjson.Result.Int)
		}, NewSeriesInt64)

	case Bool:
		return jsonCells(name, n, get, func(v gjson.Result) (bool, error) {
			return v.Bool(), nil
		}, NewSeriesBool)

	case String:
		return jsonCells(name, n, get, func(v gjson.Result) (string, error) {
			return v.String(), nil
		}, NewSeriesString)

	case Categorical:
		data := make([]string, n)
		for i := 0; i < n; i++ {
			if v := get(i); !jsonMissing(v) {
				data[i] = v.String()
			}
		}
		return NewSeriesCategorical(name, data), nil
	}
	return nil, fmt.Errorf("unsupported dtype: %s", dtype)
}

// JSONWriteOptions configures JSON writing behavior
type JSONWriteOptions struct {
	Format JSONFormat // Output layout
	Indent string     // Indent string (default "", no indent)
}

// DefaultJSONWriteOptions returns default JSON writing options
func DefaultJSONWriteOptions() JSONWriteOptions {
	return JSONWriteOptions{
		Format: JSONRecords,
		Indent: "",
	}
}

// WriteJSON writes a DataFrame to a JSON file
func (df *DataFrame) WriteJSON(path string, opts ...JSONWriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return df.WriteJSONToWriter(f, opts...)
}

// WriteJSONToWriter writes a DataFrame to an io.Writer
func (df *DataFrame) WriteJSONToWriter(w io.Writer, opts ...JSONWriteOptions) error {
	opt := DefaultJSONWriteOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	height := df.Height()

	buildRecord := func(i int) map[string]interface{} {
		record := make(map[string]interface{}, df.Width())
		for _, col := range df.columns {
			record[col.Name()] = col.Get(i)
		}
		return record
	}

	var data interface{}

	switch opt.Format {
	case JSONRecords:
		data = ParallelMap(height, buildRecord)

	case JSONLines:
		records := ParallelMap(height, buildRecord)
		encoder := json.NewEncoder(w)
		for i, record := range records {
			if err := encoder.Encode(record); err != nil {
				return fmt.Errorf("failed to write line %d: %w", i, err)
			}
		}
		return nil

	case JSONColumns:
		colData := make(map[string]interface{}, df.Width())
		for _, col := range df.columns {
			colData[col.Name()] = jsonColumnValues(col)
		}
		data = colData

	default:
		return fmt.Errorf("unknown JSON format: %d", opt.Format)
	}

	encoder := json.NewEncoder(w)
	if opt.Indent != "" {
		encoder.SetIndent("", opt.Indent)
	}

	return encoder.Encode(data)
}

// jsonColumnValues exposes a column as a plain slice for encoding.
// Nullable and exotic columns go through boxed values so nulls encode
// as JSON null.
func jsonColumnValues(col *Series) interface{} {
	if !col.HasNulls() {
		switch col.DType() {
		case Float64:
			return col.Float64()
		case Float32:
			return col.Float32()
		case Int64:
			return col.Int64()
		case Int32:
			return col.Int32()
		case Bool:
			return col.Bool()
		case String, Categorical:
			return col.Strings()
		}
	}
	vals := make([]interface{}, col.Len())
	for i := range vals {
		vals[i] = col.Get(i)
	}
	return vals
}
