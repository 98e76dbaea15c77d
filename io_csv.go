package caravel

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// CSVReadOptions configures CSV reading behavior
type CSVReadOptions struct {
	Delimiter    rune             // Field delimiter (default ',')
	HasHeader    bool             // First row is header (default true)
	ColumnNames  []string         // Override column names
	ColumnTypes  map[string]DType // Force column types
	InferTypes   bool             // Auto-detect types (default true)
	NullValues   []string         // Strings to treat as null
	SkipRows     int              // Skip first N rows
	MaxRows      int              // Max rows to read (0 = unlimited)
	TrimSpace    bool             // Trim whitespace from values
	Comment      rune             // Comment character (skip lines starting with this)
	DecimalComma bool             // Treat ',' as the decimal separator (e.g. "3,14")
}

// DefaultCSVReadOptions returns default CSV reading options
func DefaultCSVReadOptions() CSVReadOptions {
	return CSVReadOptions{
		Delimiter:  ',',
		HasHeader:  true,
		InferTypes: true,
		NullValues: []string{"", "null", "NULL", "NA", "N/A", "nan", "NaN"},
		TrimSpace:  true,
	}
}

// ReadCSV reads a CSV file into a DataFrame
func ReadCSV(path string, opts ...CSVReadOptions) (*DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return ReadCSVFromReader(f, opts...)
}

// ReadCSVFromReader reads CSV data from an io.Reader into a DataFrame
func ReadCSVFromReader(r io.Reader, opts ...CSVReadOptions) (*DataFrame, error) {
	opt := DefaultCSVReadOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.DecimalComma && opt.Delimiter == ',' {
		return nil, fmt.Errorf("decimal comma requires a field delimiter other than ','")
	}

	headers, records, err := readCSVRecords(r, opt)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		cols := make([]*Series, len(headers))
		for i, name := range headers {
			cols[i] = NewSeriesString(name, nil)
		}
		return NewDataFrame(cols...)
	}

	colTypes := resolveColumnTypes(headers, records, opt)

	columns := make([]*Series, len(headers))
	buildErrs := make([]error, len(headers))
	forEachColumn(len(records), len(headers), func(i int) {
		columns[i], buildErrs[i] = buildColumn(headers[i], colTypes[i], records, i, opt)
	})
	for _, err := range buildErrs {
		if err != nil {
			return nil, err
		}
	}
	return NewDataFrame(columns...)
}

// newCSVReader builds a csv.Reader configured per opt, consuming any
// skipped leading rows.
func newCSVReader(r io.Reader, opt CSVReadOptions) (*csv.Reader, error) {
	reader := csv.NewReader(r)
	reader.Comma = opt.Delimiter
	if opt.Comment != 0 {
		reader.Comment = opt.Comment
	}
	reader.TrimLeadingSpace = opt.TrimSpace

	if opt.SkipRows > 0 {
		// Skipped rows may have any width; don't let them lock in the
		// reader's expected field count.
		reader.FieldsPerRecord = -1
		for i := 0; i < opt.SkipRows; i++ {
			if _, err := reader.Read(); err != nil {
				return nil, fmt.Errorf("failed to skip row %d: %w", i, err)
			}
		}
		reader.FieldsPerRecord = 0
	}
	return reader, nil
}

// readCSVHeader resolves column names from the header row and the
// ColumnNames override. The result is nil when names must come from
// the first data row.
func readCSVHeader(reader *csv.Reader, opt CSVReadOptions) ([]string, error) {
	if !opt.HasHeader {
		return opt.ColumnNames, nil
	}
	row, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(opt.ColumnNames) > 0 {
		if len(opt.ColumnNames) != len(row) {
			return nil, fmt.Errorf("%d column names given for %d columns", len(opt.ColumnNames), len(row))
		}
		return opt.ColumnNames, nil
	}
	return row, nil
}

// positionalHeaders names columns by index for headerless input
func positionalHeaders(n int) []string {
	headers := make([]string, n)
	for i := range headers {
		headers[i] = fmt.Sprintf("column_%d", i)
	}
	return headers
}

// readCSVRecords consumes the reader into header names and raw rows,
// honoring SkipRows, MaxRows and header settings.
func readCSVRecords(r io.Reader, opt CSVReadOptions) ([]string, [][]string, error) {
	reader, err := newCSVReader(r, opt)
	if err != nil {
		return nil, nil, err
	}
	headers, err := readCSVHeader(reader, opt)
	if err != nil {
		return nil, nil, err
	}

	var records [][]string
	for opt.MaxRows == 0 || len(records) < opt.MaxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read row %d: %w", len(records), err)
		}
		if headers == nil {
			headers = positionalHeaders(len(record))
		}
		records = append(records, record)
	}
	return headers, records, nil
}

// resolveColumnTypes infers (or defaults) a dtype per column, then
// applies explicit ColumnTypes overrides.
func resolveColumnTypes(headers []string, records [][]string, opt CSVReadOptions) []DType {
	colTypes := make([]DType, len(headers))
	if opt.InferTypes {
		forEachColumn(len(records), len(headers), func(i int) {
			colTypes[i] = inferColumnType(records, i, opt)
		})
	} else {
		for i := range colTypes {
			colTypes[i] = String
		}
	}
	for name, dtype := range opt.ColumnTypes {
		for i, h := range headers {
			if h == name {
				colTypes[i] = dtype
				break
			}
		}
	}
	return colTypes
}

// forEachColumn runs fn per column, concurrently when the row count
// warrants it.
func forEachColumn(nrows, ncols int, fn func(col int)) {
	if !globalConfig.shouldParallelize(nrows) || ncols <= 1 {
		for c := 0; c < ncols; c++ {
			fn(c)
		}
		return
	}
	var wg sync.WaitGroup
	for c := 0; c < ncols; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			fn(c)
		}(c)
	}
	wg.Wait()
}

// csvCell extracts one trimmed cell; the bool is false for missing or
// null cells.
func csvCell(records [][]string, row, col int, opt CSVReadOptions) (string, bool) {
	if col >= len(records[row]) {
		return "", false
	}
	val := strings.TrimSpace(records[row][col])
	if isNullValue(val, opt.NullValues) {
		return "", false
	}
	return val, true
}

// parseFloatValue parses a float honoring the decimal separator option
func parseFloatValue(val string, decimalComma bool) (float64, error) {
	if decimalComma {
		val = strings.Replace(val, ",", ".", 1)
	}
	return strconv.ParseFloat(val, 64)
}

// Value ranks order type generality: a column takes the widest rank
// seen across its non-null cells.
const (
	rankBool = iota
	rankInt
	rankFloat
	rankString
)

func csvValueRank(val string, decimalComma bool) int {
	switch strings.ToLower(val) {
	case "true", "false":
		return rankBool
	}
	if _, err := strconv.ParseInt(val, 10, 64); err == nil {
		return rankInt
	}
	if _, err := parseFloatValue(val, decimalComma); err == nil {
		return rankFloat
	}
	return rankString
}

func inferColumnType(records [][]string, colIdx int, opt CSVReadOptions) DType {
	rank := -1
	for row := range records {
		val, ok := csvCell(records, row, colIdx, opt)
		if !ok {
			continue
		}
		if r := csvValueRank(val, opt.DecimalComma); r > rank {
			rank = r
		}
		if rank == rankString {
			break
		}
	}

	switch rank {
	case rankBool:
		return Bool
	case rankInt:
		return Int64
	case rankFloat:
		return Float64
	}
	// all-null columns default to string
	return String
}

// parseCells parses one column's cells into a typed series. Null and
// missing cells become null rows.
func parseCells[T any](name, what string, records [][]string, col int, opt CSVReadOptions,
	parse func(string) (T, error), mk func(string, []T) *Series) (*Series, error) {

	n := len(records)
	data := make([]T, n)
	valid := make([]bool, n)
	hasNull := false
	for i := 0; i < n; i++ {
		val, ok := csvCell(records, i, col, opt)
		valid[i] = ok
		if !ok {
			hasNull = true
			continue
		}
		v, err := parse(val)
		if err != nil {
			return nil, fmt.Errorf("column '%s' row %d: cannot parse %q as %s", name, i, val, what)
		}
		data[i] = v
	}

	s := mk(name, data)
	if hasNull {
		s.valid = valid
	}
	return s, nil
}

func parseBoolCell(val string) (bool, error) {
	switch strings.ToLower(val) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("not a bool")
}

func buildColumn(name string, dtype DType, records [][]string, colIdx int, opt CSVReadOptions) (*Series, error) {
	switch dtype {
	case Float64:
		return parseCells(name, "float64", records, colIdx, opt, func(v string) (float64, error) {
			return parseFloatValue(v, opt.DecimalComma)
		}, NewSeriesFloat64)

	case Int64:
		return parseCells(name, "int64", records, colIdx, opt, func(v string) (int64, error) {
			return strconv.ParseInt(v, 10, 64)
		}, NewSeriesInt64)

	case Bool:
		return parseCells(name, "bool", records, colIdx, opt, parseBoolCell, NewSeriesBool)

	case String:
		return parseCells(name, "string", records, colIdx, opt, func(v string) (string, error) {
			return v, nil
		}, NewSeriesString)

	case Categorical:
		data := make([]string, len(records))
		for i := range records {
			data[i], _ = csvCell(records, i, colIdx, opt)
		}
		return NewSeriesCategorical(name, data), nil
	}
	return nil, fmt.Errorf("column '%s': unsupported dtype %s", name, dtype)
}

func isNullValue(val string, nullValues []string) bool {
	for _, nv := range nullValues {
		if val == nv {
			return true
		}
	}
	return false
}

// CSVWriteOptions configures CSV writing behavior
type CSVWriteOptions struct {
	Delimiter    rune   // Field delimiter (default ',')
	WriteHeader  bool   // Write header row (default true)
	NullString   string // String to write for null values (default "")
	DecimalComma bool   // Format floats with ',' as the decimal separator
}

// DefaultCSVWriteOptions returns default CSV writing options
func DefaultCSVWriteOptions() CSVWriteOptions {
	return CSVWriteOptions{
		Delimiter:   ',',
		WriteHeader: true,
		NullString:  "",
	}
}

// WriteCSV writes a DataFrame to a CSV file
func (df *DataFrame) WriteCSV(path string, opts ...CSVWriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	return df.WriteCSVToWriter(w, opts...)
}

// WriteCSVToWriter writes a DataFrame to an io.Writer
func (df *DataFrame) WriteCSVToWriter(w io.Writer, opts ...CSVWriteOptions) error {
	opt := DefaultCSVWriteOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.DecimalComma && opt.Delimiter == ',' {
		return fmt.Errorf("decimal comma requires a field delimiter other than ','")
	}

	writer := csv.NewWriter(w)
	writer.Comma = opt.Delimiter

	if opt.WriteHeader {
		if err := writer.Write(df.Columns()); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	height := df.Height()
	formatRow := func(i int, row []string) {
		for j, col := range df.columns {
			if val := col.Get(i); val != nil {
				row[j] = formatValue(val, opt.DecimalComma)
			} else {
				row[j] = opt.NullString
			}
		}
	}

	emit := func(i int, row []string) error {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
		return nil
	}

	if globalConfig.shouldParallelize(height) {
		// format in parallel, then write in row order
		rows := make([][]string, height)
		ParallelFor(height, func(start, end int) {
			for i := start; i < end; i++ {
				rows[i] = make([]string, df.Width())
				formatRow(i, rows[i])
			}
		})
		for i, row := range rows {
			if err := emit(i, row); err != nil {
				return err
			}
		}
	} else {
		row := make([]string, df.Width())
		for i := 0; i < height; i++ {
			formatRow(i, row)
			if err := emit(i, row); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatValue(v interface{}, decimalComma bool) string {
	switch val := v.(type) {
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		if decimalComma {
			s = strings.Replace(s, ".", ",", 1)
		}
		return s
	case float32:
		s := strconv.FormatFloat(float64(val), 'f', -1, 32)
		if decimalComma {
			s = strings.Replace(s, ".", ",", 1)
		}
		return s
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case bool:
		return strconv.FormatBool(val)
	case string:
		return val
	}
	return fmt.Sprintf("%v", v)
}
