package caravel

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

func TestArrowRoundTrip(t *testing.T) {
	df, err := NewDataFrame(
		NewSeriesInt64("id", []int64{1, 2, 3}),
		NewSeriesFloat64("score", []float64{0.1, 0.2, 0.3}),
		NewSeriesString("name", []string{"a", "b", "c"}),
		NewSeriesBool("ok", []bool{true, false, true}),
	)
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}

	record, err := df.ToArrow(memory.DefaultAllocator)
	if err != nil {
		t.Fatalf("ToArrow failed: %v", err)
	}
	defer record.Release()

	if record.NumRows() != 3 || record.NumCols() != 4 {
		t.Fatalf("record shape = (%d, %d), want (3, 4)", record.NumRows(), record.NumCols())
	}

	back, err := NewDataFrameFromArrow(record)
	if err != nil {
		t.Fatalf("NewDataFrameFromArrow failed: %v", err)
	}
	if !reflect.DeepEqual(back.ColumnByName("id").Int64(), []int64{1, 2, 3}) {
		t.Errorf("id = %v", back.ColumnByName("id").Int64())
	}
	if !reflect.DeepEqual(back.ColumnByName("name").Strings(), []string{"a", "b", "c"}) {
		t.Errorf("name = %v", back.ColumnByName("name").Strings())
	}
	if !reflect.DeepEqual(back.ColumnByName("ok").Bool(), []bool{true, false, true}) {
		t.Errorf("ok = %v", back.ColumnByName("ok").Bool())
	}
}

func TestArrowRoundTripNulls(t *testing.T) {
	df, err := NewDataFrame(
		NewSeriesFloat64WithNulls("v", []float64{1.5, 0, 2.5}, []bool{true, false, true}),
	)
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}

	record, err := df.ToArrow(nil)
	if err != nil {
		t.Fatalf("ToArrow failed: %v", err)
	}
	defer record.Release()

	back, err := NewDataFrameFromArrow(record)
	if err != nil {
		t.Fatalf("NewDataFrameFromArrow failed: %v", err)
	}
	v := back.ColumnByName("v")
	if v.IsValid(1) {
		t.Error("v[1] should be null after the round trip")
	}
	if !v.IsValid(0) || v.Float64()[0] != 1.5 {
		t.Errorf("v[0] = %v, want 1.5", v.Get(0))
	}
	if v.NullCount() != 1 {
		t.Errorf("NullCount = %d, want 1", v.NullCount())
	}
}

// Categorical columns cross Arrow as dictionary arrays and come back
// Categorical, not String.
func TestArrowRoundTripCategorical(t *testing.T) {
	df, err := NewDataFrame(
		NewSeriesCategorical("fruit", []string{"banana", "apple", "banana"}),
	)
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}

	record, err := df.ToArrow(memory.DefaultAllocator)
	if err != nil {
		t.Fatalf("ToArrow failed: %v", err)
	}
	defer record.Release()

	back, err := NewDataFrameFromArrow(record)
	if err != nil {
		t.Fatalf("NewDataFrameFromArrow failed: %v", err)
	}
	fruit := back.ColumnByName("fruit")
	if fruit.DType() != Categorical {
		t.Errorf("dtype = %s, want Categorical", fruit.DType())
	}
	if got := fruit.Strings(); !reflect.DeepEqual(got, []string{"banana", "apple", "banana"}) {
		t.Errorf("fruit = %v", got)
	}
}

func TestArrowTableRoundTrip(t *testing.T) {
	df, err := NewDataFrame(
		NewSeriesInt64("n", []int64{1, 2, 3, 4}),
	)
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}

	table, err := df.ToArrowTable(memory.DefaultAllocator)
	if err != nil {
		t.Fatalf("ToArrowTable failed: %v", err)
	}
	defer table.Release()

	back, err := NewDataFrameFromArrowTable(table)
	if err != nil {
		t.Fatalf("NewDataFrameFromArrowTable failed: %v", err)
	}
	if !reflect.DeepEqual(back.ColumnByName("n").Int64(), []int64{1, 2, 3, 4}) {
		t.Errorf("n = %v, want [1 2 3 4]", back.ColumnByName("n").Int64())
	}
}

func TestArrowNilRecord(t *testing.T) {
	if _, err := NewDataFrameFromArrow(nil); err == nil {
		t.Error("nil record should fail")
	}
}

func TestParquetRoundTrip(t *testing.T) {
	df, err := NewDataFrame(
		NewSeriesInt64("id", []int64{1, 2, 3}),
		NewSeriesFloat64("score", []float64{0.5, 1.5, 2.5}),
		NewSeriesString("name", []string{"a", "b", "c"}),
		NewSeriesBool("ok", []bool{true, true, false}),
	)
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}

	var buf bytes.Buffer
	if err := df.WriteParquetToWriter(&buf); err != nil {
		t.Fatalf("WriteParquetToWriter failed: %v", err)
	}

	back, err := ReadParquetFromReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("ReadParquetFromReader failed: %v", err)
	}
	if back.Height() != 3 || back.Width() != 4 {
		t.Fatalf("shape = (%d, %d), want (3, 4)", back.Height(), back.Width())
	}
	if !reflect.DeepEqual(back.ColumnByName("id").Int64(), []int64{1, 2, 3}) {
		t.Errorf("id = %v", back.ColumnByName("id").Int64())
	}
	if !reflect.DeepEqual(back.ColumnByName("name").Strings(), []string{"a", "b", "c"}) {
		t.Errorf("name = %v", back.ColumnByName("name").Strings())
	}
}

func TestParquetRoundTripNulls(t *testing.T) {
	df, err := NewDataFrame(
		NewSeriesInt64WithNulls("id", []int64{1, 0, 3}, []bool{true, false, true}),
	)
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}

	var buf bytes.Buffer
	if err := df.WriteParquetToWriter(&buf); err != nil {
		t.Fatalf("WriteParquetToWriter failed: %v", err)
	}
	back, err := ReadParquetFromReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("ReadParquetFromReader failed: %v", err)
	}

	id := back.ColumnByName("id")
	if id.IsValid(1) {
		t.Error("id[1] should be null after the round trip")
	}
	if id.Int64()[2] != 3 {
		t.Errorf("id[2] = %d, want 3", id.Int64()[2])
	}
}

func TestParquetFileRoundTrip(t *testing.T) {
	path := t.TempDir() + "/frame.parquet"

	df, err := NewDataFrame(
		NewSeriesFloat64("v", []float64{1, 2, 3}),
	)
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}
	if err := df.WriteParquet(path); err != nil {
		t.Fatalf("WriteParquet failed: %v", err)
	}

	back, err := ReadParquet(path)
	if err != nil {
		t.Fatalf("ReadParquet failed: %v", err)
	}
	if !reflect.DeepEqual(back.ColumnByName("v").Float64(), []float64{1, 2, 3}) {
		t.Errorf("v = %v, want [1 2 3]", back.ColumnByName("v").Float64())
	}
}
