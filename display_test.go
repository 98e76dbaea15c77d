package caravel

import (
	"fmt"
	"strings"
	"testing"
)

func displayFrame(t *testing.T) *DataFrame {
	t.Helper()
	df, err := NewDataFrame(
		NewSeriesInt64("id", []int64{1, 2, 3}),
		NewSeriesString("name", []string{"alice", "bob", "carol"}),
		NewSeriesFloat64("score", []float64{0.5, 0.75, 0.9}),
	)
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}
	return df
}

func TestDataFrameString(t *testing.T) {
	s := displayFrame(t).String()

	if !strings.Contains(s, "shape: (3, 3)") {
		t.Errorf("output should contain the shape header:\n%s", s)
	}
	for _, frag := range []string{"id", "name", "score", "alice", "carol"} {
		if !strings.Contains(s, frag) {
			t.Errorf("output should contain %q:\n%s", frag, s)
		}
	}
	if !strings.Contains(s, "Int64") || !strings.Contains(s, "String") {
		t.Errorf("output should contain dtype rows:\n%s", s)
	}
}

func TestDataFrameStringEmpty(t *testing.T) {
	df, err := NewDataFrame()
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}
	if got := df.String(); got != "DataFrame(empty)" {
		t.Errorf("String = %q, want DataFrame(empty)", got)
	}
}

func TestDataFrameStringRowTruncation(t *testing.T) {
	n := 100
	data := make([]int64, n)
	for i := range data {
		data[i] = int64(i + 1)
	}
	df, err := NewDataFrame(NewSeriesInt64("n", data))
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}

	s := df.StringWithConfig(DefaultDisplayConfig())
	if !strings.Contains(s, "shape: (100, 1)") {
		t.Errorf("output should contain the shape header:\n%s", s)
	}
	if !strings.Contains(s, "…") {
		t.Errorf("truncated output should contain an ellipsis:\n%s", s)
	}
	if !strings.Contains(s, "100") {
		t.Errorf("tail rows should still show:\n%s", s)
	}
}

func TestDataFrameStringColTruncation(t *testing.T) {
	cols := make([]*Series, 15)
	for i := range cols {
		cols[i] = NewSeriesInt64(fmt.Sprintf("c%d", i), []int64{1})
	}
	df, err := NewDataFrame(cols...)
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}

	s := df.StringWithConfig(DefaultDisplayConfig())
	if !strings.Contains(s, "shape: (1, 15)") {
		t.Errorf("output should contain the shape header:\n%s", s)
	}
	if !strings.Contains(s, "…") {
		t.Errorf("hidden middle columns should show an ellipsis:\n%s", s)
	}
}

func TestDisplayFloatPrecision(t *testing.T) {
	df, err := NewDataFrame(NewSeriesFloat64("pi", []float64{3.14159265}))
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}

	cfg := DefaultDisplayConfig()
	cfg.FloatPrecision = 2
	if s := df.StringWithConfig(cfg); !strings.Contains(s, "3.14") {
		t.Errorf("output should round to 2 decimals:\n%s", s)
	}

	cfg.FloatPrecision = 6
	if s := df.StringWithConfig(cfg); !strings.Contains(s, "3.141593") {
		t.Errorf("output should round to 6 decimals:\n%s", s)
	}
}

func TestDisplayNulls(t *testing.T) {
	df, err := NewDataFrame(
		NewSeriesFloat64WithNulls("v", []float64{1.5, 0}, []bool{true, false}),
	)
	if err != nil {
		t.Fatalf("NewDataFrame failed: %v", err)
	}
	if s := df.StringWithConfig(DefaultDisplayConfig()); !strings.Contains(s, "null") {
		t.Errorf("null cells should render as null:\n%s", s)
	}
}

func TestDisplayTableStyles(t *testing.T) {
	df := displayFrame(t)
	cfg := DefaultDisplayConfig()

	cfg.TableStyle = "rounded"
	if s := df.StringWithConfig(cfg); !strings.Contains(s, "╭") {
		t.Errorf("rounded style should use rounded corners:\n%s", s)
	}

	cfg.TableStyle = "sharp"
	if s := df.StringWithConfig(cfg); !strings.Contains(s, "┌") {
		t.Errorf("sharp style should use sharp corners:\n%s", s)
	}

	cfg.TableStyle = "ascii"
	if s := df.StringWithConfig(cfg); !strings.Contains(s, "+") {
		t.Errorf("ascii style should use + corners:\n%s", s)
	}
}

func TestDisplayUnknownStyleFallsBack(t *testing.T) {
	cfg := DefaultDisplayConfig()
	cfg.TableStyle = "nonexistent"

	if s := displayFrame(t).StringWithConfig(cfg); !strings.Contains(s, "╭") {
		t.Errorf("unknown style should fall back to rounded:\n%s", s)
	}
}

func TestSeriesString(t *testing.T) {
	s := NewSeriesInt64("numbers", []int64{1, 2, 3, 4, 5})
	str := s.String()

	if !strings.Contains(str, "numbers") {
		t.Errorf("output should contain the series name:\n%s", str)
	}
	if !strings.Contains(str, "Int64") {
		t.Errorf("output should contain the dtype:\n%s", str)
	}
	if !strings.Contains(str, "length: 5") {
		t.Errorf("output should contain the length:\n%s", str)
	}
}

func TestSeriesStringEmpty(t *testing.T) {
	s := NewSeriesFloat64("empty", nil)
	str := SeriesStringWithConfig(s, DefaultDisplayConfig())
	if !strings.Contains(str, "length: 0") {
		t.Errorf("output = %q, want a length: 0 header", str)
	}
}

func TestSetDisplayConfigRoundTrip(t *testing.T) {
	old := GetDisplayConfig()
	defer SetDisplayConfig(old)

	SetMaxDisplayRows(4)
	if got := GetDisplayConfig().MaxRows; got != 4 {
		t.Errorf("MaxRows = %d, want 4", got)
	}
	SetFloatPrecision(2)
	if got := GetDisplayConfig().FloatPrecision; got != 2 {
		t.Errorf("FloatPrecision = %d, want 2", got)
	}
	SetTableStyle("ascii")
	if got := GetDisplayConfig().TableStyle; got != "ascii" {
		t.Errorf("TableStyle = %q, want ascii", got)
	}
	SetTableStyle("bogus")
	if got := GetDisplayConfig().TableStyle; got != "ascii" {
		t.Errorf("TableStyle = %q, unknown styles should be ignored", got)
	}
}
