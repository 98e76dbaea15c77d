package caravel

import (
	"strings"
	"testing"
)

func TestGroupByMean(t *testing.T) {
	df, _ := NewDataFrame(
		NewSeriesInt64("id", []int64{1, 2, 3, 4}),
		NewSeriesString("group", []string{"A", "A", "B", "B"}),
		NewSeriesFloat64("value", []float64{10, 20, 30, 40}),
	)

	out, err := df.GroupBy("group").Agg(AggMean("value"))
	if err != nil {
		t.Fatalf("GroupBy Agg failed: %v", err)
	}
	if out.Height() != 2 {
		t.Fatalf("Height = %d, want 2", out.Height())
	}

	means := make(map[string]float64)
	keys := out.ColumnByName("group").Strings()
	vals := out.ColumnByName("value_mean").Float64()
	for i := range keys {
		means[keys[i]] = vals[i]
	}
	if means["A"] != 15 || means["B"] != 35 {
		t.Errorf("group means = %v, want map[A:15 B:35]", means)
	}
}

func TestGroupByNoKeys(t *testing.T) {
	df, _ := NewDataFrame(NewSeriesFloat64("v", []float64{1, 2, 3}))

	out, err := df.GroupBy().Agg(AggSum("v"))
	if err != nil {
		t.Fatalf("Agg with no keys failed: %v", err)
	}
	if out.Height() != 1 {
		t.Errorf("Height = %d, want 1", out.Height())
	}
	if got := out.ColumnByName("v_sum").Float64()[0]; got != 6 {
		t.Errorf("v_sum = %v, want 6", got)
	}
}

func TestGroupByMultipleKeys(t *testing.T) {
	df, _ := NewDataFrame(
		NewSeriesString("a", []string{"x", "x", "y", "x"}),
		NewSeriesInt64("b", []int64{1, 1, 1, 2}),
		NewSeriesFloat64("v", []float64{10, 20, 30, 40}),
	)

	out, err := df.GroupBy("a", "b").Agg(AggSum("v"))
	if err != nil {
		t.Fatalf("Agg failed: %v", err)
	}
	if out.Height() != 3 {
		t.Errorf("Height = %d, want 3 distinct (a, b) pairs", out.Height())
	}

	// First-appearance order: (x,1), (y,1), (x,2)
	sums := out.ColumnByName("v_sum").Float64()
	if sums[0] != 30 || sums[1] != 30 || sums[2] != 40 {
		t.Errorf("v_sum = %v, want [30 30 40]", sums)
	}
}

func TestGroupByMultipleAggs(t *testing.T) {
	df, _ := NewDataFrame(
		NewSeriesString("g", []string{"a", "a", "b"}),
		NewSeriesFloat64("v", []float64{1, 3, 5}),
	)

	out, err := df.GroupBy("g").Agg(AggMin("v"), AggMax("v"), AggCount())
	if err != nil {
		t.Fatalf("Agg failed: %v", err)
	}
	for _, name := range []string{"g", "v_min", "v_max", "count"} {
		if !out.HasColumn(name) {
			t.Errorf("missing output column %q (have %v)", name, out.Columns())
		}
	}
	if got := out.ColumnByName("v_max").Float64()[0]; got != 3 {
		t.Errorf("v_max[a] = %v, want 3", got)
	}
	if got := out.ColumnByName("count").Int64()[1]; got != 1 {
		t.Errorf("count[b] = %v, want 1", got)
	}
}

func TestGroupByAlias(t *testing.T) {
	df, _ := NewDataFrame(
		NewSeriesString("g", []string{"a", "b"}),
		NewSeriesFloat64("v", []float64{1, 2}),
	)

	out, err := df.GroupBy("g").Agg(AggSum("v").Alias("total"))
	if err != nil {
		t.Fatalf("Agg failed: %v", err)
	}
	if !out.HasColumn("total") {
		t.Errorf("columns = %v, want alias 'total'", out.Columns())
	}
}

func TestGroupByUnknownColumn(t *testing.T) {
	df, _ := NewDataFrame(NewSeriesFloat64("v", []float64{1}))

	_, err := df.GroupBy("missing").Agg(AggSum("v"))
	if err == nil {
		t.Fatal("grouping by an unknown column should fail")
	}
	if !strings.Contains(err.Error(), "missing") || !strings.Contains(err.Error(), "v") {
		t.Errorf("error %q should name the column and list the available ones", err)
	}

	_, err = df.GroupBy().Agg(AggSum("nope"))
	if err == nil {
		t.Error("aggregating an unknown column should fail")
	}
}

func TestGroupByNullKeysFormOneGroup(t *testing.T) {
	g := NewSeriesStringWithNulls("g", []string{"a", "", "a", ""}, []bool{true, false, true, false})
	df, _ := NewDataFrame(g, NewSeriesFloat64("v", []float64{1, 2, 3, 4}))

	out, err := df.GroupBy("g").Agg(AggSum("v"))
	if err != nil {
		t.Fatalf("GroupBy Agg failed: %v", err)
	}
	if out.Height() != 2 {
		t.Fatalf("Height = %d, want 2 (null keys group together)", out.Height())
	}

	sums := out.ColumnByName("v_sum").Float64()
	if sums[0] != 4 || sums[1] != 6 {
		t.Errorf("v_sum = %v, want [4 6]", sums)
	}
}

func TestGroupByCategoricalKey(t *testing.T) {
	df, _ := NewDataFrame(
		NewSeriesCategorical("g", []string{"hi", "lo", "hi"}),
		NewSeriesFloat64("v", []float64{1, 2, 3}),
	)

	out, err := df.GroupBy("g").Sum("v")
	if err != nil {
		t.Fatalf("GroupBy Sum failed: %v", err)
	}
	if out.Height() != 2 {
		t.Errorf("Height = %d, want 2", out.Height())
	}
	if out.ColumnByName("g").DType() != Categorical {
		t.Errorf("key dtype = %s, want Categorical", out.ColumnByName("g").DType())
	}
}

func TestGroupByNest(t *testing.T) {
	df, _ := NewDataFrame(
		NewSeriesString("g", []string{"a", "b", "a"}),
		NewSeriesFloat64("v", []float64{1, 2, 3}),
	)

	nested, err := df.GroupBy("g").Nest()
	if err != nil {
		t.Fatalf("Nest failed: %v", err)
	}
	if nested.Height() != 2 {
		t.Fatalf("Nest Height = %d, want 2", nested.Height())
	}
	data := nested.ColumnByName("data")
	if data == nil || data.DType() != Frame {
		t.Fatalf("Nest should produce a frame-valued 'data' column, got %v", nested.Columns())
	}

	sub := data.Get(0).(*DataFrame)
	if sub.Height() != 2 {
		t.Errorf("group a sub-frame Height = %d, want 2", sub.Height())
	}

	// Unnest restores the rows (grouped order)
	flat, err := nested.Unnest("data")
	if err != nil {
		t.Fatalf("Unnest failed: %v", err)
	}
	if flat.Height() != 3 {
		t.Errorf("Unnest Height = %d, want 3", flat.Height())
	}
}

func TestGroupByNestRequiresKeys(t *testing.T) {
	df, _ := NewDataFrame(NewSeriesFloat64("v", []float64{1}))

	if _, err := df.GroupBy().Nest(); err == nil {
		t.Error("Nest without keys should fail")
	}
}
