package caravel

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/parquet-go/parquet-go"
)

// ParquetReadOptions configures Parquet reading behavior
type ParquetReadOptions struct {
	Columns []string // Only read these columns (nil = all)
	MaxRows int      // Max rows to read (0 = unlimited)
}

// DefaultParquetReadOptions returns default Parquet reading options
func DefaultParquetReadOptions() ParquetReadOptions {
	return ParquetReadOptions{}
}

// ReadParquet reads a Parquet file into a DataFrame
func ReadParquet(path string, opts ...ParquetReadOptions) (*DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return ReadParquetFromReader(f, stat.Size(), opts...)
}

// parquetColumn accumulates one column's cells while reading. Cells
// are cloned because row buffers are reused between ReadRows calls.
type parquetColumn struct {
	dtype DType
	cells []parquet.Value
}

func (c *parquetColumn) append(v parquet.Value) {
	c.cells = append(c.cells, v.Clone())
}

func (c *parquetColumn) appendNull() {
	c.cells = append(c.cells, parquet.Value{})
}

func (c *parquetColumn) merge(other *parquetColumn) {
	c.cells = append(c.cells, other.cells...)
}

func (c *parquetColumn) truncate(maxRows int) {
	if len(c.cells) > maxRows {
		c.cells = c.cells[:maxRows]
	}
}

// parquetSeries decodes accumulated cells into a typed series.
func parquetSeries[T any](name string, cells []parquet.Value, conv func(parquet.Value) T, mk func(string, []T) *Series) *Series {
	data := make([]T, len(cells))
	valid := make([]bool, len(cells))
	hasNull := false
	for i, v := range cells {
		if v.IsNull() {
			hasNull = true
			continue
		}
		valid[i] = true
		data[i] = conv(v)
	}
	s := mk(name, data)
	if hasNull {
		s.valid = valid
	}
	return s
}

func (c *parquetColumn) build(name string) *Series {
	switch c.dtype {
	case Float64:
		return parquetSeries(name, c.cells, parquet.Value.Double, NewSeriesFloat64)
	case Float32:
		return parquetSeries(name, c.cells, parquet.Value.Float, NewSeriesFloat32)
	case Int64:
		return parquetSeries(name, c.cells, parquet.Value.Int64, NewSeriesInt64)
	case Int32:
		return parquetSeries(name, c.cells, parquet.Value.Int32, NewSeriesInt32)
	case Bool:
		return parquetSeries(name, c.cells, parquet.Value.Boolean, NewSeriesBool)
	}
	return parquetSeries(name, c.cells, func(v parquet.Value) string {
		return string(v.ByteArray())
	}, NewSeriesString)
}

// ReadParquetFromReader reads Parquet data from an io.ReaderAt into a DataFrame
func ReadParquetFromReader(r io.ReaderAt, size int64, opts ...ParquetReadOptions) (*DataFrame, error) {
	opt := DefaultParquetReadOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	schema := pf.Schema()

	var colNames []string
	if len(opt.Columns) > 0 {
		colNames = opt.Columns
	} else {
		fields := schema.Fields()
		colNames = make([]string, len(fields))
		for i, f := range fields {
			colNames[i] = f.Name()
		}
	}

	leafIndex := make(map[string]int)
	for i, col := range schema.Columns() {
		if len(col) > 0 {
			leafIndex[col[0]] = i
		}
	}

	colIndices := make([]int, len(colNames))
	dtypes := make([]DType, len(colNames))
	for i, name := range colNames {
		idx, ok := leafIndex[name]
		if !ok {
			return nil, fmt.Errorf("column '%s' not found in parquet file", name)
		}
		colIndices[i] = idx
		dtypes[i] = parquetLeafToDType(schema, schema.Columns()[idx])
	}

	rowGroups := pf.RowGroups()

	var merged []parquetColumn
	if globalConfig.shouldParallelize(int(pf.NumRows())) && len(rowGroups) > 1 {
		merged, err = readRowGroupsParallel(rowGroups, colIndices, dtypes)
	} else {
		merged, err = readRowGroupsSerial(rowGroups, colIndices, dtypes, opt.MaxRows)
	}
	if err != nil {
		return nil, err
	}

	columns := make([]*Series, len(colNames))
	for i, name := range colNames {
		if opt.MaxRows > 0 {
			merged[i].truncate(opt.MaxRows)
		}
		columns[i] = merged[i].build(name)
	}

	return NewDataFrame(columns...)
}

// readRowGroup accumulates one row group's rows into per-column cells.
// limit bounds the number of rows taken (0 = all).
func readRowGroup(rg parquet.RowGroup, colIndices []int, dtypes []DType, limit int) ([]parquetColumn, error) {
	cols := make([]parquetColumn, len(colIndices))
	for i := range cols {
		cols[i].dtype = dtypes[i]
	}

	rows := rg.Rows()
	defer rows.Close()

	buf := make([]parquet.Row, 1000)
	taken := 0
	for {
		n, err := rows.ReadRows(buf)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read rows: %w", err)
		}
		if n == 0 {
			return cols, nil
		}
		for _, row := range buf[:n] {
			if limit > 0 && taken >= limit {
				return cols, nil
			}
			for i, colIdx := range colIndices {
				if colIdx < len(row) {
					cols[i].append(row[colIdx])
				} else {
					cols[i].appendNull()
				}
			}
			taken++
		}
	}
}

func readRowGroupsSerial(rowGroups []parquet.RowGroup, colIndices []int, dtypes []DType, maxRows int) ([]parquetColumn, error) {
	acc := make([]parquetColumn, len(colIndices))
	for i := range acc {
		acc[i].dtype = dtypes[i]
	}

	remaining := maxRows
	for _, rg := range rowGroups {
		cols, err := readRowGroup(rg, colIndices, dtypes, remaining)
		if err != nil {
			return nil, err
		}
		taken := 0
		for i := range acc {
			acc[i].merge(&cols[i])
			taken = len(cols[i].cells)
		}
		if maxRows > 0 {
			remaining -= taken
			if remaining <= 0 {
				break
			}
		}
	}
	return acc, nil
}

// readRowGroupsParallel reads each row group concurrently and merges
// the results in row-group order.
func readRowGroupsParallel(rowGroups []parquet.RowGroup, colIndices []int, dtypes []DType) ([]parquetColumn, error) {
	perGroup := make([][]parquetColumn, len(rowGroups))
	errs := make([]error, len(rowGroups))

	var wg sync.WaitGroup
	for idx := range rowGroups {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			perGroup[idx], errs[idx] = readRowGroup(rowGroups[idx], colIndices, dtypes, 0)
		}(idx)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("row group %d: %w", i, err)
		}
	}

	acc := make([]parquetColumn, len(colIndices))
	for i := range acc {
		acc[i].dtype = dtypes[i]
		for _, cols := range perGroup {
			acc[i].merge(&cols[i])
		}
	}
	return acc, nil
}

var parquetKindDTypes = map[parquet.Kind]DType{
	parquet.Boolean: Bool,
	parquet.Int32:   Int32,
	parquet.Int64:   Int64,
	parquet.Float:   Float32,
	parquet.Double:  Float64,
}

func parquetLeafToDType(schema *parquet.Schema, leaf []string) DType {
	if len(leaf) == 0 {
		return String
	}
	for _, col := range schema.Fields() {
		if col.Name() != leaf[0] {
			continue
		}
		t := col.Type()
		if t == nil {
			break
		}
		if dtype, ok := parquetKindDTypes[t.Kind()]; ok {
			return dtype
		}
		break
	}
	// byte arrays and anything unrecognized read as strings
	return String
}

// ParquetWriteOptions configures Parquet writing behavior
type ParquetWriteOptions struct {
	Compression  string // "snappy", "gzip", "zstd", "none" (default "snappy")
	RowGroupSize int    // Rows per row group (default 1000000)
}

// DefaultParquetWriteOptions returns default Parquet writing options
func DefaultParquetWriteOptions() ParquetWriteOptions {
	return ParquetWriteOptions{
		Compression:  "snappy",
		RowGroupSize: 1000000,
	}
}

// WriteParquet writes a DataFrame to a Parquet file
func (df *DataFrame) WriteParquet(path string, opts ...ParquetWriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return df.WriteParquetToWriter(f, opts...)
}

var parquetCompressionCodecs = map[string]parquet.WriterOption{
	"snappy": parquet.Compression(&parquet.Snappy),
	"gzip":   parquet.Compression(&parquet.Gzip),
	"zstd":   parquet.Compression(&parquet.Zstd),
}

// WriteParquetToWriter writes a DataFrame to an io.Writer.
// Categorical columns are written as plain strings.
func (df *DataFrame) WriteParquetToWriter(w io.Writer, opts ...ParquetWriteOptions) error {
	opt := DefaultParquetWriteOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	if df.Width() == 0 || df.Height() == 0 {
		return nil
	}

	// Every column is written as an optional leaf
	group := make(parquet.Group)
	for _, col := range df.columns {
		group[col.Name()] = parquet.Optional(dtypeToParquetNode(col.DType()))
	}
	schema := parquet.NewSchema("dataframe", group)

	writerOpts := []parquet.WriterOption{schema}
	if codec, ok := parquetCompressionCodecs[opt.Compression]; ok {
		writerOpts = append(writerOpts, codec)
	}

	pw := parquet.NewWriter(w, writerOpts...)
	defer pw.Close()

	// Row cells must follow the sorted schema field order
	encoders := make([]func(row int) parquet.Value, df.Width())
	for j, field := range schema.Fields() {
		encoders[j] = parquetEncoder(df.ColumnByName(field.Name()), j)
	}

	// Write in batches to bound memory on large string columns
	height := df.Height()
	batchSize := 1000
	rows := make([]parquet.Row, 0, batchSize)
	for i := 0; i < height; i++ {
		row := make(parquet.Row, len(encoders))
		for j, encode := range encoders {
			row[j] = encode(i)
		}
		rows = append(rows, row)

		if len(rows) >= batchSize {
			if _, err := pw.WriteRows(rows); err != nil {
				return fmt.Errorf("failed to write rows at %d: %w", i-len(rows)+1, err)
			}
			rows = rows[:0]
		}
	}

	if len(rows) > 0 {
		if _, err := pw.WriteRows(rows); err != nil {
			return fmt.Errorf("failed to write final rows: %w", err)
		}
	}

	return pw.Close()
}

func dtypeToParquetNode(dtype DType) parquet.Node {
	switch dtype {
	case Float64:
		return parquet.Leaf(parquet.DoubleType)
	case Float32:
		return parquet.Leaf(parquet.FloatType)
	case Int64:
		return parquet.Leaf(parquet.Int64Type)
	case Int32:
		return parquet.Leaf(parquet.Int32Type)
	case Bool:
		return parquet.Leaf(parquet.BooleanType)
	}
	return parquet.Leaf(parquet.ByteArrayType)
}

// parquetEncoder returns a per-row cell encoder bound to one column.
// The dtype dispatch happens once per column, not once per cell.
func parquetEncoder(col *Series, colIdx int) func(row int) parquet.Value {
	null := parquet.NullValue().Level(0, 0, colIdx)
	cell := func(pv parquet.Value) parquet.Value {
		return pv.Level(0, 1, colIdx)
	}

	switch col.DType() {
	case Float64:
		data := col.Float64()
		return func(i int) parquet.Value {
			if !col.IsValid(i) {
				return null
			}
			return cell(parquet.DoubleValue(data[i]))
		}
	case Float32:
		data := col.Float32()
		return func(i int) parquet.Value {
			if !col.IsValid(i) {
				return null
			}
			return cell(parquet.FloatValue(data[i]))
		}
	case Int64:
		data := col.Int64()
		return func(i int) parquet.Value {
			if !col.IsValid(i) {
				return null
			}
			return cell(parquet.Int64Value(data[i]))
		}
	case Int32:
		data := col.Int32()
		return func(i int) parquet.Value {
			if !col.IsValid(i) {
				return null
			}
			return cell(parquet.Int32Value(data[i]))
		}
	case Bool:
		data := col.Bool()
		return func(i int) parquet.Value {
			if !col.IsValid(i) {
				return null
			}
			return cell(parquet.BooleanValue(data[i]))
		}
	case String, Categorical:
		data := col.Strings()
		return func(i int) parquet.Value {
			if !col.IsValid(i) {
				return null
			}
			return cell(parquet.ByteArrayValue([]byte(data[i])))
		}
	}
	return func(i int) parquet.Value {
		v := col.Get(i)
		if v == nil {
			return null
		}
		return cell(parquet.ByteArrayValue([]byte(fmt.Sprintf("%v", v))))
	}
}
