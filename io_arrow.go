package caravel

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ============================================================================
// Arrow Export
// ============================================================================

// ToArrow exports a DataFrame to an Arrow Record.
// The caller is responsible for calling Release() on the returned Record.
func (df *DataFrame) ToArrow(mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	fields := make([]arrow.Field, 0, df.Width())
	arrays := make([]arrow.Array, 0, df.Width())
	release := func() {
		for _, arr := range arrays {
			arr.Release()
		}
	}

	for _, col := range df.columns {
		arrowType, err := dtypeToArrowType(col.DType())
		if err != nil {
			release()
			return nil, fmt.Errorf("column %s: %w", col.Name(), err)
		}
		arr, err := seriesToArrowArray(col, mem)
		if err != nil {
			release()
			return nil, fmt.Errorf("column %s: %w", col.Name(), err)
		}
		fields = append(fields, arrow.Field{Name: col.Name(), Type: arrowType, Nullable: true})
		arrays = append(arrays, arr)
	}

	record := array.NewRecord(arrow.NewSchema(fields, nil), arrays, int64(df.Height()))

	// Record retains the arrays
	release()

	return record, nil
}

// ToArrowTable exports a DataFrame to an Arrow Table.
// The caller is responsible for calling Release() on the returned Table.
func (df *DataFrame) ToArrowTable(mem memory.Allocator) (arrow.Table, error) {
	record, err := df.ToArrow(mem)
	if err != nil {
		return nil, err
	}
	defer record.Release()

	return array.NewTableFromRecords(record.Schema(), []arrow.Record{record}), nil
}

func arrowDictType() *arrow.DictionaryType {
	return &arrow.DictionaryType{
		IndexType: arrow.PrimitiveTypes.Int32,
		ValueType: arrow.BinaryTypes.String,
	}
}

// dtypeToArrowType maps a column dtype to the Arrow DataType it exports as
func dtypeToArrowType(dtype DType) (arrow.DataType, error) {
	switch dtype {
	case Float64:
		return arrow.PrimitiveTypes.Float64, nil
	case Float32:
		return arrow.PrimitiveTypes.Float32, nil
	case Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case Int32:
		return arrow.PrimitiveTypes.Int32, nil
	case Bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case String:
		return arrow.BinaryTypes.String, nil
	case Categorical:
		return arrowDictType(), nil
	}
	return nil, fmt.Errorf("unsupported dtype: %s", dtype)
}

// arrowAppender is the slice of the builder API shared by the typed
// Arrow builders this package exports through.
type arrowAppender[T any] interface {
	AppendValues(values []T, valid []bool)
	NewArray() arrow.Array
	Release()
}

func buildArrowArray[T any](b arrowAppender[T], values []T, valid []bool) arrow.Array {
	defer b.Release()
	b.AppendValues(values, valid)
	return b.NewArray()
}

// seriesToArrowArray converts a Series to an Arrow Array, preserving nulls
func seriesToArrowArray(s *Series, mem memory.Allocator) (arrow.Array, error) {
	valid := s.validitySlice()

	switch s.DType() {
	case Float64:
		return buildArrowArray[float64](array.NewFloat64Builder(mem), s.Float64(), valid), nil
	case Float32:
		return buildArrowArray[float32](array.NewFloat32Builder(mem), s.Float32(), valid), nil
	case Int64:
		return buildArrowArray[int64](array.NewInt64Builder(mem), s.Int64(), valid), nil
	case Int32:
		return buildArrowArray[int32](array.NewInt32Builder(mem), s.Int32(), valid), nil
	case Bool:
		return buildArrowArray[bool](array.NewBooleanBuilder(mem), s.Bool(), valid), nil
	case String:
		return buildArrowArray[string](array.NewStringBuilder(mem), s.Strings(), valid), nil
	case Categorical:
		return categoricalToArrow(s, mem)
	}
	return nil, fmt.Errorf("unsupported dtype for Arrow export: %s", s.DType())
}

func categoricalToArrow(s *Series, mem memory.Allocator) (arrow.Array, error) {
	builder := array.NewDictionaryBuilder(mem, arrowDictType())
	defer builder.Release()

	dictBuilder := builder.(*array.BinaryDictionaryBuilder)
	labels := s.cat.labels
	for _, code := range s.cat.codes {
		if code < 0 || int(code) >= len(labels) {
			dictBuilder.AppendNull()
			continue
		}
		if err := dictBuilder.AppendString(labels[code]); err != nil {
			return nil, err
		}
	}
	return builder.NewArray(), nil
}

// ============================================================================
// Arrow Import
// ============================================================================

// NewDataFrameFromArrow creates a DataFrame from an Arrow Record.
func NewDataFrameFromArrow(record arrow.Record) (*DataFrame, error) {
	if record == nil {
		return nil, fmt.Errorf("record is nil")
	}

	schema := record.Schema()
	numCols := int(record.NumCols())
	series := make([]*Series, numCols)

	for i := 0; i < numCols; i++ {
		field := schema.Field(i)
		s, err := arrowArrayToSeries(field.Name, record.Column(i))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", field.Name, err)
		}
		series[i] = s
	}

	return NewDataFrame(series...)
}

// NewDataFrameFromArrowTable creates a DataFrame from an Arrow Table.
// Chunked columns are converted per chunk and stacked.
func NewDataFrameFromArrowTable(table arrow.Table) (*DataFrame, error) {
	if table == nil {
		return nil, fmt.Errorf("table is nil")
	}

	schema := table.Schema()
	numCols := int(table.NumCols())
	series := make([]*Series, numCols)

	for i := 0; i < numCols; i++ {
		field := schema.Field(i)
		chunked := table.Column(i).Data()

		var combined *Series
		for j := 0; j < len(chunked.Chunks()); j++ {
			part, err := arrowArrayToSeries(field.Name, chunked.Chunk(j))
			if err != nil {
				return nil, fmt.Errorf("column %s chunk %d: %w", field.Name, j, err)
			}
			if combined == nil {
				combined = part
				continue
			}
			combined, err = concatSeries(combined, part)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", field.Name, err)
			}
		}
		if combined == nil {
			combined = NewSeriesString(field.Name, nil)
		}
		series[i] = combined
	}

	return NewDataFrame(series...)
}

// arrowReader is a typed Arrow array exposing per-index access.
type arrowReader[T any] interface {
	arrow.Array
	Value(i int) T
}

func seriesFromArrow[T any](name string, a arrowReader[T], mk func(string, []T) *Series) *Series {
	n := a.Len()
	data := make([]T, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		if a.IsValid(i) {
			valid[i] = true
			data[i] = a.Value(i)
		}
	}
	s := mk(name, data)
	if a.NullN() > 0 {
		s.valid = valid
	}
	return s
}

// arrowArrayToSeries converts an Arrow Array to a Series, preserving nulls
func arrowArrayToSeries(name string, arr arrow.Array) (*Series, error) {
	switch a := arr.(type) {
	case *array.Float64:
		return seriesFromArrow[float64](name, a, NewSeriesFloat64), nil
	case *array.Float32:
		return seriesFromArrow[float32](name, a, NewSeriesFloat32), nil
	case *array.Int64:
		return seriesFromArrow[int64](name, a, NewSeriesInt64), nil
	case *array.Int32:
		return seriesFromArrow[int32](name, a, NewSeriesInt32), nil
	case *array.Boolean:
		return seriesFromArrow[bool](name, a, NewSeriesBool), nil
	case *array.String:
		return seriesFromArrow[string](name, a, NewSeriesString), nil
	case *array.Dictionary:
		return dictionaryToSeries(name, a)
	}
	return nil, fmt.Errorf("unsupported Arrow array type: %T", arr)
}

func dictionaryToSeries(name string, a *array.Dictionary) (*Series, error) {
	strDict, ok := a.Dictionary().(*array.String)
	if !ok {
		return nil, fmt.Errorf("unsupported dictionary value type: %T", a.Dictionary())
	}
	labels := make([]string, strDict.Len())
	for i := range labels {
		labels[i] = strDict.Value(i)
	}

	codes := make([]int32, a.Len())
	for i := range codes {
		if a.IsNull(i) {
			codes[i] = -1
			continue
		}
		codes[i] = int32(a.GetValueIndex(i))
	}
	return newSeriesCategoricalFromCodes(name, labels, codes), nil
}
