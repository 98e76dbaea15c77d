package caravel

import (
	"reflect"
	"strings"
	"testing"
)

func TestPivotBasic(t *testing.T) {
	df, _ := NewDataFrame(
		NewSeriesInt64("id", []int64{1, 1, 2, 2}),
		NewSeriesString("key", []string{"x", "y", "x", "y"}),
		NewSeriesFloat64("val", []float64{10, 20, 30, 40}),
	)

	wide, err := df.Pivot(PivotOptions{Index: []string{"id"}, Column: "key", Values: "val"})
	if err != nil {
		t.Fatalf("Pivot failed: %v", err)
	}
	if got := wide.Columns(); !reflect.DeepEqual(got, []string{"id", "x", "y"}) {
		t.Fatalf("columns = %v, want [id x y]", got)
	}
	if wide.Height() != 2 {
		t.Fatalf("Height = %d, want 2", wide.Height())
	}
	if got := wide.ColumnByName("y").Float64(); got[1] != 40 {
		t.Errorf("y[1] = %v, want 40", got[1])
	}
}

func TestPivotMissingCellIsNull(t *testing.T) {
	df, _ := NewDataFrame(
		NewSeriesInt64("id", []int64{1, 1, 2}),
		NewSeriesString("key", []string{"x", "y", "x"}),
		NewSeriesFloat64("val", []float64{10, 20, 30}),
	)

	wide, err := df.Pivot(PivotOptions{Index: []string{"id"}, Column: "key", Values: "val"})
	if err != nil {
		t.Fatalf("Pivot failed: %v", err)
	}
	y := wide.ColumnByName("y")
	if y.IsValid(1) {
		t.Error("cell (id=2, y) has no source row and should be null")
	}
}

func TestPivotCollisionWithoutAggFails(t *testing.T) {
	df, _ := NewDataFrame(
		NewSeriesInt64("id", []int64{1, 1}),
		NewSeriesString("key", []string{"x", "x"}),
		NewSeriesFloat64("val", []float64{10, 20}),
	)

	_, err := df.Pivot(PivotOptions{Index: []string{"id"}, Column: "key", Values: "val"})
	if err == nil {
		t.Fatal("pivot with colliding cells and no aggregation should fail")
	}
	if !strings.Contains(err.Error(), "aggregation") {
		t.Errorf("error %q should suggest passing an aggregation", err)
	}
}

func TestPivotCollisionWithAgg(t *testing.T) {
	df, _ := NewDataFrame(
		NewSeriesInt64("id", []int64{1, 1}),
		NewSeriesString("key", []string{"x", "x"}),
		NewSeriesFloat64("val", []float64{10, 20}),
	)

	wide, err := df.Pivot(PivotOptions{Index: []string{"id"}, Column: "key", Values: "val", Agg: AggTypeMean})
	if err != nil {
		t.Fatalf("Pivot with aggregation failed: %v", err)
	}
	if got := wide.ColumnByName("x").Float64()[0]; got != 15 {
		t.Errorf("x[0] = %v, want 15", got)
	}
}

func TestPivotUnknownColumns(t *testing.T) {
	df, _ := NewDataFrame(
		NewSeriesInt64("id", []int64{1}),
		NewSeriesString("key", []string{"x"}),
		NewSeriesFloat64("val", []float64{1}),
	)

	cases := []PivotOptions{
		{Index: []string{"zzz"}, Column: "key", Values: "val"},
		{Index: []string{"id"}, Column: "zzz", Values: "val"},
		{Index: []string{"id"}, Column: "key", Values: "zzz"},
	}
	for i, opts := range cases {
		_, err := df.Pivot(opts)
		if err == nil {
			t.Errorf("case %d: pivot with unknown column should fail", i)
			continue
		}
		if !strings.Contains(err.Error(), "zzz") {
			t.Errorf("case %d: error %q should name the missing column", i, err)
		}
	}
}

func TestMeltDefaults(t *testing.T) {
	df, _ := NewDataFrame(
		NewSeriesInt64("id", []int64{1, 2}),
		NewSeriesFloat64("x", []float64{10, 20}),
		NewSeriesFloat64("y", []float64{30, 40}),
	)

	long, err := df.Melt(MeltOptions{IDVars: []string{"id"}})
	if err != nil {
		t.Fatalf("Melt failed: %v", err)
	}
	if got := long.Columns(); !reflect.DeepEqual(got, []string{"id", "variable", "value"}) {
		t.Fatalf("columns = %v, want [id variable value]", got)
	}
	if long.Height() != 4 {
		t.Errorf("Height = %d, want 4", long.Height())
	}

	vars := long.ColumnByName("variable").Strings()
	vals := long.ColumnByName("value").Float64()
	if vars[0] != "x" || vals[0] != 10 {
		t.Errorf("row 0 = (%s, %v), want (x, 10)", vars[0], vals[0])
	}
	if vars[3] != "y" || vals[3] != 40 {
		t.Errorf("row 3 = (%s, %v), want (y, 40)", vars[3], vals[3])
	}
}

func TestMeltCustomNames(t *testing.T) {
	df, _ := NewDataFrame(
		NewSeriesInt64("id", []int64{1}),
		NewSeriesFloat64("x", []float64{10}),
	)

	long, err := df.Melt(MeltOptions{IDVars: []string{"id"}, VarName: "measure", ValueName: "reading"})
	if err != nil {
		t.Fatalf("Melt failed: %v", err)
	}
	if !long.HasColumn("measure") || !long.HasColumn("reading") {
		t.Errorf("columns = %v, want [id measure reading]", long.Columns())
	}
}

// Melting then pivoting with the same columns restores the original
// shape: columns [id, group, x, y] and the original row count.
func TestMeltPivotRoundTrip(t *testing.T) {
	df, _ := NewDataFrame(
		NewSeriesInt64("id", []int64{1, 2, 3}),
		NewSeriesString("group", []string{"A", "A", "B"}),
		NewSeriesFloat64("x", []float64{1, 2, 3}),
		NewSeriesFloat64("y", []float64{4, 5, 6}),
	)

	long, err := df.Melt(MeltOptions{IDVars: []string{"id", "group"}})
	if err != nil {
		t.Fatalf("Melt failed: %v", err)
	}
	if long.Height() != 6 {
		t.Fatalf("melted Height = %d, want 6", long.Height())
	}

	back, err := long.Pivot(PivotOptions{Index: []string{"id", "group"}, Column: "variable", Values: "value"})
	if err != nil {
		t.Fatalf("Pivot failed: %v", err)
	}
	if got := back.Columns(); !reflect.DeepEqual(got, []string{"id", "group", "x", "y"}) {
		t.Fatalf("columns = %v, want [id group x y]", got)
	}
	if back.Height() != df.Height() {
		t.Errorf("Height = %d, want %d", back.Height(), df.Height())
	}

	// Values survive the round trip
	for i := 0; i < back.Height(); i++ {
		if back.ColumnByName("x").Float64()[i] != df.ColumnByName("x").Float64()[i] {
			t.Errorf("x[%d] = %v, want %v", i, back.ColumnByName("x").Float64()[i], df.ColumnByName("x").Float64()[i])
		}
	}
}

func TestPivotMeltRoundTrip(t *testing.T) {
	wide, _ := NewDataFrame(
		NewSeriesInt64("id", []int64{1, 2}),
		NewSeriesFloat64("x", []float64{10, 20}),
		NewSeriesFloat64("y", []float64{30, 40}),
	)

	long, err := wide.Melt(MeltOptions{IDVars: []string{"id"}})
	if err != nil {
		t.Fatalf("Melt failed: %v", err)
	}
	back, err := long.Pivot(PivotOptions{Index: []string{"id"}, Column: "variable", Values: "value"})
	if err != nil {
		t.Fatalf("Pivot failed: %v", err)
	}

	for _, name := range []string{"x", "y"} {
		got := back.ColumnByName(name).Float64()
		want := wide.ColumnByName(name).Float64()
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
}

func TestMeltStringValues(t *testing.T) {
	df, _ := NewDataFrame(
		NewSeriesInt64("id", []int64{1}),
		NewSeriesString("a", []string{"p"}),
		NewSeriesFloat64("b", []float64{2}),
	)

	// Mixed value dtypes fall back to strings
	long, err := df.Melt(MeltOptions{IDVars: []string{"id"}})
	if err != nil {
		t.Fatalf("Melt failed: %v", err)
	}
	if long.ColumnByName("value").DType() != String {
		t.Errorf("value dtype = %s, want String", long.ColumnByName("value").DType())
	}
}

func TestMeltNoValueColumns(t *testing.T) {
	df, _ := NewDataFrame(NewSeriesInt64("id", []int64{1}))

	if _, err := df.Melt(MeltOptions{IDVars: []string{"id"}}); err == nil {
		t.Error("melt with nothing to unpivot should fail")
	}
}
