package caravel

import (
	"bytes"
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestReadCSVBasic(t *testing.T) {
	csv := "id,name,score\n1,alice,0.5\n2,bob,0.75\n"

	df, err := ReadCSVFromReader(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadCSVFromReader failed: %v", err)
	}
	if df.Height() != 2 || df.Width() != 3 {
		t.Fatalf("shape = (%d, %d), want (2, 3)", df.Height(), df.Width())
	}
	if got := df.ColumnByName("id").DType(); got != Int64 {
		t.Errorf("id dtype = %s, want Int64", got)
	}
	if got := df.ColumnByName("score").DType(); got != Float64 {
		t.Errorf("score dtype = %s, want Float64", got)
	}
	if got := df.ColumnByName("name").Strings(); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Errorf("names = %v", got)
	}
}

func TestReadCSVNullValues(t *testing.T) {
	csv := "a,b\n1,x\nNA,y\n3,\n"

	df, err := ReadCSVFromReader(strings.NewReader(csv), CSVReadOptions{
		Delimiter:  ',',
		HasHeader:  true,
		InferTypes: true,
		NullValues: []string{"", "NA"},
	})
	if err != nil {
		t.Fatalf("ReadCSVFromReader failed: %v", err)
	}

	a := df.ColumnByName("a")
	if a.IsValid(1) {
		t.Error("a[1] should be null")
	}
	if a.DType() != Int64 {
		t.Errorf("a dtype = %s, want Int64 (nulls do not force String)", a.DType())
	}
	if df.ColumnByName("b").IsValid(2) {
		t.Error("b[2] should be null")
	}
}

func TestReadCSVSkipRowsAndMaxRows(t *testing.T) {
	csv := "junk line 1\na,b\n1,2\n3,4\n5,6\n"

	df, err := ReadCSVFromReader(strings.NewReader(csv), CSVReadOptions{
		Delimiter:  ',',
		HasHeader:  true,
		InferTypes: true,
		SkipRows:   1,
		MaxRows:    2,
	})
	if err != nil {
		t.Fatalf("ReadCSVFromReader failed: %v", err)
	}
	if df.Height() != 2 {
		t.Errorf("Height = %d, want 2", df.Height())
	}
	if got := df.ColumnByName("a").Int64(); !reflect.DeepEqual(got, []int64{1, 3}) {
		t.Errorf("a = %v, want [1 3]", got)
	}
}

func TestReadCSVColumnNamesAndTypes(t *testing.T) {
	csv := "1,2\n3,4\n"

	df, err := ReadCSVFromReader(strings.NewReader(csv), CSVReadOptions{
		Delimiter:   ',',
		HasHeader:   false,
		InferTypes:  true,
		ColumnNames: []string{"x", "y"},
		ColumnTypes: map[string]DType{"y": Float64},
	})
	if err != nil {
		t.Fatalf("ReadCSVFromReader failed: %v", err)
	}
	if got := df.Columns(); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("columns = %v, want [x y]", got)
	}
	if got := df.ColumnByName("y").DType(); got != Float64 {
		t.Errorf("y dtype = %s, want Float64 (forced)", got)
	}
}

func TestReadCSVDecimalComma(t *testing.T) {
	csv := "a;b\n3,14;x\n2,5;y\n"

	df, err := ReadCSVFromReader(strings.NewReader(csv), CSVReadOptions{
		Delimiter:    ';',
		HasHeader:    true,
		InferTypes:   true,
		DecimalComma: true,
	})
	if err != nil {
		t.Fatalf("ReadCSVFromReader failed: %v", err)
	}
	if got := df.ColumnByName("a").Float64(); !reflect.DeepEqual(got, []float64{3.14, 2.5}) {
		t.Errorf("a = %v, want [3.14 2.5]", got)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	df, err := NewDataFrame(
		NewSeriesInt64WithNulls("id", []int64{1, 0, 3}, []bool{true, false, true}),
		NewSeriesString("name", []string{"a", "b", "c"}),
	)
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}

	var buf bytes.Buffer
	if err := df.WriteCSVToWriter(&buf, CSVWriteOptions{
		Delimiter:   ',',
		WriteHeader: true,
		NullString:  "NA",
	}); err != nil {
		t.Fatalf("WriteCSVToWriter failed: %v", err)
	}

	back, err := ReadCSVFromReader(&buf, CSVReadOptions{
		Delimiter:  ',',
		HasHeader:  true,
		InferTypes: true,
		NullValues: []string{"NA"},
	})
	if err != nil {
		t.Fatalf("ReadCSVFromReader failed: %v", err)
	}
	if back.Height() != 3 {
		t.Fatalf("Height = %d, want 3", back.Height())
	}
	if back.ColumnByName("id").IsValid(1) {
		t.Error("id[1] should come back null")
	}
	if got := back.ColumnByName("id").Int64()[2]; got != 3 {
		t.Errorf("id[2] = %d, want 3", got)
	}
}

func TestCSVFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.csv")

	df, err := NewDataFrame(
		NewSeriesInt64("n", []int64{1, 2}),
	)
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}
	if err := df.WriteCSV(path); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	back, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if !reflect.DeepEqual(back.ColumnByName("n").Int64(), []int64{1, 2}) {
		t.Errorf("n = %v, want [1 2]", back.ColumnByName("n").Int64())
	}
}

func TestReadJSONRecords(t *testing.T) {
	src := `[{"id":1,"name":"a"},{"id":2,"name":"b"},{"id":3}]`

	df, err := ReadJSONFromReader(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadJSONFromReader failed: %v", err)
	}
	if df.Height() != 3 {
		t.Fatalf("Height = %d, want 3", df.Height())
	}
	if got := df.ColumnByName("id").DType(); got != Int64 {
		t.Errorf("id dtype = %s, want Int64", got)
	}
	if df.ColumnByName("name").IsValid(2) {
		t.Error("missing field should read as null")
	}
}

func TestReadJSONColumns(t *testing.T) {
	src := `{"a":[1,2,3],"b":["x","y","z"]}`

	df, err := ReadJSONFromReader(strings.NewReader(src), JSONReadOptions{Format: JSONColumns})
	if err != nil {
		t.Fatalf("ReadJSONFromReader failed: %v", err)
	}
	if df.Height() != 3 || df.Width() != 2 {
		t.Fatalf("shape = (%d, %d), want (3, 2)", df.Height(), df.Width())
	}
	if got := df.ColumnByName("b").Strings(); !reflect.DeepEqual(got, []string{"x", "y", "z"}) {
		t.Errorf("b = %v", got)
	}
}

func TestReadJSONLines(t *testing.T) {
	src := "{\"v\":1.5}\n{\"v\":2.5}\n\n{\"v\":null}\n"

	df, err := ReadJSONFromReader(strings.NewReader(src), JSONReadOptions{Format: JSONLines})
	if err != nil {
		t.Fatalf("ReadJSONFromReader failed: %v", err)
	}
	if df.Height() != 3 {
		t.Fatalf("Height = %d, want 3 (blank lines skipped)", df.Height())
	}
	if df.ColumnByName("v").IsValid(2) {
		t.Error("JSON null should read as null")
	}
}

func TestReadJSONBadInput(t *testing.T) {
	if _, err := ReadJSONFromReader(strings.NewReader(`{"not":"an array"}`)); err == nil {
		t.Error("records format should reject a bare object")
	}
	if _, err := ReadJSONFromReader(strings.NewReader("{bad json\n"), JSONReadOptions{Format: JSONLines}); err == nil {
		t.Error("invalid NDJSON line should fail")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	df, err := NewDataFrame(
		NewSeriesInt64("id", []int64{1, 2}),
		NewSeriesFloat64WithNulls("v", []float64{0.5, 0}, []bool{true, false}),
	)
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}

	var buf bytes.Buffer
	if err := df.WriteJSONToWriter(&buf, JSONWriteOptions{Format: JSONLines}); err != nil {
		t.Fatalf("WriteJSONToWriter failed: %v", err)
	}

	back, err := ReadJSONFromReader(&buf, JSONReadOptions{Format: JSONLines})
	if err != nil {
		t.Fatalf("ReadJSONFromReader failed: %v", err)
	}
	if back.Height() != 2 {
		t.Fatalf("Height = %d, want 2", back.Height())
	}
	if back.ColumnByName("v").IsValid(1) {
		t.Error("null should survive the round trip")
	}
}

func TestLinesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	lines := []string{"banana", "apple", "cherry"}

	if err := WriteLines(path, lines); err != nil {
		t.Fatalf("WriteLines failed: %v", err)
	}
	back, err := ReadLines(path)
	if err != nil {
		t.Fatalf("ReadLines failed: %v", err)
	}
	if !reflect.DeepEqual(back, lines) {
		t.Errorf("lines = %v, want %v", back, lines)
	}
}

func TestReadLinesFromReader(t *testing.T) {
	got, err := ReadLinesFromReader(strings.NewReader("one\ntwo\n"))
	if err != nil {
		t.Fatalf("ReadLinesFromReader failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Errorf("lines = %v, want [one two]", got)
	}
}

func TestCSVBatchReader(t *testing.T) {
	csv := "id,v\n1,10\n2,20\n3,30\n4,40\n5,50\n"

	reader, err := NewCSVBatchReader(strings.NewReader(csv), CSVBatchOptions{
		BatchSize: 2,
		Read:      DefaultCSVReadOptions(),
	})
	if err != nil {
		t.Fatalf("NewCSVBatchReader failed: %v", err)
	}
	defer reader.Close()

	ctx := context.Background()
	var heights []int
	total := 0
	for {
		batch, err := reader.Next(ctx)
		if err != nil {
			break
		}
		heights = append(heights, batch.Height())
		total += batch.Height()
		if got := batch.ColumnByName("v").DType(); got != Int64 {
			t.Errorf("v dtype = %s, want Int64 in every batch", got)
		}
	}
	if total != 5 {
		t.Errorf("total rows = %d, want 5", total)
	}
	if !reflect.DeepEqual(heights, []int{2, 2, 1}) {
		t.Errorf("batch heights = %v, want [2 2 1]", heights)
	}

	schema := reader.Schema()
	if schema == nil || schema.Len() != 2 {
		t.Fatalf("schema = %v, want 2 columns", schema)
	}
}

func TestCSVBatchReaderDecimalCommaConflict(t *testing.T) {
	opts := DefaultCSVBatchOptions()
	opts.Read.DecimalComma = true

	if _, err := NewCSVBatchReader(strings.NewReader("a\n1\n"), opts); err == nil {
		t.Error("decimal comma with ',' delimiter should fail")
	}
}

func TestBatchPipelineCollect(t *testing.T) {
	csv := "id,v\n1,10\n2,20\n3,30\n4,40\n"

	reader, err := NewCSVBatchReader(strings.NewReader(csv), CSVBatchOptions{
		BatchSize: 2,
		Read:      DefaultCSVReadOptions(),
	})
	if err != nil {
		t.Fatalf("NewCSVBatchReader failed: %v", err)
	}

	out, err := NewBatchPipeline(reader).
		Filter(Col("v").Gt(Lit(15.0))).
		Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if got := out.ColumnByName("id").Int64(); !reflect.DeepEqual(got, []int64{2, 3, 4}) {
		t.Errorf("ids = %v, want [2 3 4]", got)
	}
}

func TestBatchPipelineTransformAndLimit(t *testing.T) {
	csv := "v\n1\n2\n3\n4\n5\n"

	reader, err := NewCSVBatchReader(strings.NewReader(csv), CSVBatchOptions{
		BatchSize: 2,
		Read:      DefaultCSVReadOptions(),
	})
	if err != nil {
		t.Fatalf("NewCSVBatchReader failed: %v", err)
	}

	out, err := NewBatchPipeline(reader).
		Transform(func(df *DataFrame) (*DataFrame, error) {
			return df.Lazy().WithColumn("double", Col("v").Mul(Lit(2.0))).Collect()
		}).
		Limit(3).
		Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if out.Height() != 3 {
		t.Fatalf("Height = %d, want 3", out.Height())
	}
	if got := out.ColumnByName("double").Float64(); !reflect.DeepEqual(got, []float64{2, 4, 6}) {
		t.Errorf("double = %v, want [2 4 6]", got)
	}
}

func TestBatchPipelineForEach(t *testing.T) {
	csv := "v\n1\n2\n3\n"

	reader, err := NewCSVBatchReader(strings.NewReader(csv), CSVBatchOptions{
		BatchSize: 2,
		Read:      DefaultCSVReadOptions(),
	})
	if err != nil {
		t.Fatalf("NewCSVBatchReader failed: %v", err)
	}

	batches := 0
	err = NewBatchPipeline(reader).ForEach(context.Background(), func(df *DataFrame) error {
		batches++
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach failed: %v", err)
	}
	if batches != 2 {
		t.Errorf("batches = %d, want 2", batches)
	}
}

func TestBatchPipelineCancellation(t *testing.T) {
	csv := "v\n1\n2\n"

	reader, err := NewCSVBatchReader(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("NewCSVBatchReader failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewBatchPipeline(reader).Collect(ctx); err == nil {
		t.Error("collect with a cancelled context should fail")
	}
}

func TestConcatFrames(t *testing.T) {
	a, err := NewDataFrame(NewSeriesInt64("n", []int64{1, 2}))
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}
	b, err := NewDataFrame(NewSeriesInt64("n", []int64{3}))
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}

	out, err := ConcatFrames(a, b)
	if err != nil {
		t.Fatalf("ConcatFrames failed: %v", err)
	}
	if got := out.ColumnByName("n").Int64(); !reflect.DeepEqual(got, []int64{1, 2, 3}) {
		t.Errorf("n = %v, want [1 2 3]", got)
	}
}
