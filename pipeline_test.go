package caravel

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func pipelineFrame(t *testing.T) *DataFrame {
	t.Helper()
	df, err := NewDataFrame(
		NewSeriesInt64("id", []int64{1, 2, 3, 4}),
		NewSeriesString("group", []string{"A", "A", "B", "B"}),
		NewSeriesFloat64("value", []float64{10, 20, 30, 40}),
	)
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}
	return df
}

func TestSummarizeGroupedMean(t *testing.T) {
	df := pipelineFrame(t)

	out, err := Summarize(df, SummarySpec{
		GroupBy: []string{"group"},
		Aggs:    []AggSpec{{Fn: "mean", Column: "value"}},
	})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if out.Height() != 2 {
		t.Fatalf("Height = %d, want 2", out.Height())
	}

	means := map[string]float64{}
	keys := out.ColumnByName("group").Strings()
	vals := out.ColumnByName("value_mean").Float64()
	for i, k := range keys {
		means[k] = vals[i]
	}
	if means["A"] != 15 || means["B"] != 35 {
		t.Errorf("means = %v, want A:15 B:35", means)
	}
}

func TestSummarizeFilterThenAgg(t *testing.T) {
	df := pipelineFrame(t)

	out, err := Summarize(df, SummarySpec{
		Filters: []FilterSpec{{Column: "value", Op: "gt", Value: 15}},
		Aggs:    []AggSpec{{Fn: "sum", Column: "value", As: "total"}},
	})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if out.Height() != 1 {
		t.Fatalf("Height = %d, want 1", out.Height())
	}
	if got := out.ColumnByName("total").Float64()[0]; got != 90 {
		t.Errorf("total = %v, want 90 (20+30+40)", got)
	}
}

func TestSummarizeContainsFilter(t *testing.T) {
	df, err := NewDataFrame(
		NewSeriesString("word", []string{"banana", "apple", "bandana"}),
		NewSeriesFloat64("n", []float64{1, 2, 4}),
	)
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}

	out, err := Summarize(df, SummarySpec{
		Filters: []FilterSpec{{Column: "word", Op: "contains", Value: "ban"}},
		Aggs:    []AggSpec{{Fn: "sum", Column: "n", As: "total"}},
	})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if got := out.ColumnByName("total").Float64()[0]; got != 5 {
		t.Errorf("total = %v, want 5 (banana + bandana)", got)
	}
}

func TestSummarizeCountWithoutColumn(t *testing.T) {
	df := pipelineFrame(t)

	out, err := Summarize(df, SummarySpec{
		GroupBy: []string{"group"},
		Aggs:    []AggSpec{{Fn: "count", As: "rows"}},
	})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	counts := out.ColumnByName("rows")
	if counts == nil {
		t.Fatalf("missing 'rows' column, have %v", out.Columns())
	}
	if counts.Int64()[0] != 2 || counts.Int64()[1] != 2 {
		t.Errorf("counts = %v, want [2 2]", counts.Int64())
	}
}

func TestSummarySpecValidateReportsEverything(t *testing.T) {
	df := pipelineFrame(t)

	spec := SummarySpec{
		Filters: []FilterSpec{{Column: "missing", Op: "wat", Value: 1}},
		GroupBy: []string{"nope"},
		Aggs:    []AggSpec{{Fn: "frobnicate", Column: "value"}},
	}
	err := spec.Validate(df)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, frag := range []string{"missing", "wat", "nope", "frobnicate"} {
		if !strings.Contains(msg, frag) {
			t.Errorf("error %q should mention %q", msg, frag)
		}
	}
}

func TestSummarySpecValidateAggNeedsColumn(t *testing.T) {
	df := pipelineFrame(t)

	err := (&SummarySpec{Aggs: []AggSpec{{Fn: "sum"}}}).Validate(df)
	if err == nil {
		t.Error("sum without a column should fail validation")
	}
	if err := (&SummarySpec{Aggs: []AggSpec{{Fn: "count"}}}).Validate(df); err != nil {
		t.Errorf("bare count should validate: %v", err)
	}
}

func TestSummarySpecValidateNoAggs(t *testing.T) {
	df := pipelineFrame(t)

	if err := (&SummarySpec{}).Validate(df); err == nil {
		t.Error("a spec without aggregations should fail validation")
	}
}

func TestSummarySpecFromYAML(t *testing.T) {
	src := `
filters:
  - column: value
    op: gte
    value: 20
group_by: [group]
aggs:
  - fn: sum
    column: value
    as: total
`
	var spec SummarySpec
	if err := yaml.Unmarshal([]byte(src), &spec); err != nil {
		t.Fatalf("yaml.Unmarshal failed: %v", err)
	}

	out, err := Summarize(pipelineFrame(t), spec)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	totals := map[string]float64{}
	keys := out.ColumnByName("group").Strings()
	vals := out.ColumnByName("total").Float64()
	for i, k := range keys {
		totals[k] = vals[i]
	}
	if totals["A"] != 20 || totals["B"] != 70 {
		t.Errorf("totals = %v, want A:20 B:70", totals)
	}
}

func TestParseAggType(t *testing.T) {
	cases := []struct {
		name string
		want AggType
	}{
		{"sum", AggTypeSum},
		{"mean", AggTypeMean},
		{"avg", AggTypeMean},
		{"min", AggTypeMin},
		{"max", AggTypeMax},
		{"count", AggTypeCount},
		{"median", AggTypeMedian},
	}
	for _, c := range cases {
		got, err := ParseAggType(c.name)
		if err != nil {
			t.Errorf("ParseAggType(%q) failed: %v", c.name, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseAggType(%q) = %v, want %v", c.name, got, c.want)
		}
	}

	if _, err := ParseAggType("bogus"); err == nil {
		t.Error("ParseAggType of an unknown function should fail")
	}
}
