package caravel

import (
	"fmt"
)

// DataFrame is an ordered collection of equal-length named columns.
// Operations return new frames; an existing frame is never mutated.
type DataFrame struct {
	columns []*Series
	height  int
}

// NewDataFrame creates a DataFrame from the given columns.
// Columns must have unique names and equal lengths.
func NewDataFrame(cols ...*Series) (*DataFrame, error) {
	df := &DataFrame{columns: cols}
	if len(cols) == 0 {
		return df, nil
	}

	df.height = cols[0].Len()
	seen := make(map[string]bool, len(cols))
	for _, col := range cols {
		if col == nil {
			return nil, fmt.Errorf("nil column")
		}
		if seen[col.Name()] {
			return nil, fmt.Errorf("duplicate column name: %s", col.Name())
		}
		seen[col.Name()] = true
		if col.Len() != df.height {
			return nil, fmt.Errorf("column '%s' has length %d, expected %d", col.Name(), col.Len(), df.height)
		}
	}
	return df, nil
}

// ============================================================================
// Accessors
// ============================================================================

// Height returns the number of rows
func (df *DataFrame) Height() int { return df.height }

// Width returns the number of columns
func (df *DataFrame) Width() int { return len(df.columns) }

// Shape returns (rows, columns)
func (df *DataFrame) Shape() (int, int) { return df.height, len(df.columns) }

// Columns returns the column names in order
func (df *DataFrame) Columns() []string {
	names := make([]string, len(df.columns))
	for i, col := range df.columns {
		names[i] = col.Name()
	}
	return names
}

// Column returns the column at index i, or nil if out of range
func (df *DataFrame) Column(i int) *Series {
	if i < 0 || i >= len(df.columns) {
		return nil
	}
	return df.columns[i]
}

// ColumnByName returns the column with the given name, or nil if absent
func (df *DataFrame) ColumnByName(name string) *Series {
	for _, col := range df.columns {
		if col.Name() == name {
			return col
		}
	}
	return nil
}

// HasColumn returns true if a column with the given name exists
func (df *DataFrame) HasColumn(name string) bool {
	return df.ColumnByName(name) != nil
}

// Schema returns the frame's schema
func (df *DataFrame) Schema() (*Schema, error) {
	names := make([]string, len(df.columns))
	dtypes := make([]DType, len(df.columns))
	for i, col := range df.columns {
		names[i] = col.Name()
		dtypes[i] = col.DType()
	}
	return NewSchema(names, dtypes)
}

// Clone returns a deep copy of the frame
func (df *DataFrame) Clone() *DataFrame {
	cols := make([]*Series, len(df.columns))
	for i, col := range df.columns {
		cols[i] = col.Clone()
	}
	return &DataFrame{columns: cols, height: df.height}
}

// ============================================================================
// Column Operations
// ============================================================================

// Select evaluates the given expressions against the frame and returns
// a frame with the resulting columns.
func (df *DataFrame) Select(exprs ...Expr) (*DataFrame, error) {
	cols := make([]*Series, 0, len(exprs))
	for _, expr := range exprs {
		if _, ok := expr.(*allColsExpr); ok {
			cols = append(cols, df.columns...)
			continue
		}
		col, err := evaluateExpr(expr, df)
		if err != nil {
			return nil, fmt.Errorf("select: %w", err)
		}
		cols = append(cols, col)
	}
	return NewDataFrame(cols...)
}

// SelectColumns returns a frame containing only the named columns, in
// the given order.
func (df *DataFrame) SelectColumns(names ...string) (*DataFrame, error) {
	cols := make([]*Series, len(names))
	for i, name := range names {
		col := df.ColumnByName(name)
		if col == nil {
			return nil, fmt.Errorf("unknown column '%s' (available: %v)", name, df.Columns())
		}
		cols[i] = col
	}
	return NewDataFrame(cols...)
}

// Drop returns a frame without the named columns
func (df *DataFrame) Drop(names ...string) (*DataFrame, error) {
	dropSet := make(map[string]bool, len(names))
	for _, name := range names {
		if !df.HasColumn(name) {
			return nil, fmt.Errorf("unknown column '%s' (available: %v)", name, df.Columns())
		}
		dropSet[name] = true
	}
	cols := make([]*Series, 0, len(df.columns))
	for _, col := range df.columns {
		if !dropSet[col.Name()] {
			cols = append(cols, col)
		}
	}
	return NewDataFrame(cols...)
}

// Rename returns a frame with one column renamed
func (df *DataFrame) Rename(old, new string) (*DataFrame, error) {
	if !df.HasColumn(old) {
		return nil, fmt.Errorf("unknown column '%s' (available: %v)", old, df.Columns())
	}
	if old != new && df.HasColumn(new) {
		return nil, fmt.Errorf("column '%s' already exists", new)
	}
	cols := make([]*Series, len(df.columns))
	for i, col := range df.columns {
		if col.Name() == old {
			cols[i] = col.Rename(new)
		} else {
			cols[i] = col
		}
	}
	return NewDataFrame(cols...)
}

// WithColumnSeries returns a frame with the series added, replacing any
// existing column of the same name.
func (df *DataFrame) WithColumnSeries(s *Series) (*DataFrame, error) {
	if len(df.columns) > 0 && s.Len() != df.height {
		return nil, fmt.Errorf("column '%s' has length %d, expected %d", s.Name(), s.Len(), df.height)
	}
	cols := make([]*Series, 0, len(df.columns)+1)
	replaced := false
	for _, col := range df.columns {
		if col.Name() == s.Name() {
			cols = append(cols, s)
			replaced = true
		} else {
			cols = append(cols, col)
		}
	}
	if !replaced {
		cols = append(cols, s)
	}
	return NewDataFrame(cols...)
}

// ============================================================================
// Row Operations
// ============================================================================

// FilterByMask keeps rows where mask[i] != 0.
// Relative order of retained rows is preserved.
func (df *DataFrame) FilterByMask(mask []byte) (*DataFrame, error) {
	if len(mask) != df.height {
		return nil, fmt.Errorf("mask length %d does not match height %d", len(mask), df.height)
	}
	cols := make([]*Series, len(df.columns))
	for i, col := range df.columns {
		cols[i] = col.filterByMask(mask)
	}
	return NewDataFrame(cols...)
}

// Take returns the rows at the given indices, in that order
func (df *DataFrame) Take(indices []int) (*DataFrame, error) {
	for _, idx := range indices {
		if idx < 0 || idx >= df.height {
			return nil, fmt.Errorf("row index %d out of range [0, %d)", idx, df.height)
		}
	}
	cols := make([]*Series, len(df.columns))
	for i, col := range df.columns {
		cols[i] = col.Take(indices)
	}
	return NewDataFrame(cols...)
}

// SortBy returns the frame sorted by one column. The sort is stable.
func (df *DataFrame) SortBy(column string, ascending bool) (*DataFrame, error) {
	col := df.ColumnByName(column)
	if col == nil {
		return nil, fmt.Errorf("unknown column '%s' (available: %v)", column, df.Columns())
	}
	return df.Take(col.Argsort(ascending))
}

// Head returns the first n rows
func (df *DataFrame) Head(n int) *DataFrame {
	if n > df.height {
		n = df.height
	}
	out, _ := df.SliceRows(0, n)
	return out
}

// Tail returns the last n rows
func (df *DataFrame) Tail(n int) *DataFrame {
	if n > df.height {
		n = df.height
	}
	out, _ := df.SliceRows(df.height-n, df.height)
	return out
}

// SliceRows returns rows [start, end)
func (df *DataFrame) SliceRows(start, end int) (*DataFrame, error) {
	if start < 0 || end > df.height || start > end {
		return nil, fmt.Errorf("invalid row range [%d, %d) for height %d", start, end, df.height)
	}
	cols := make([]*Series, len(df.columns))
	for i, col := range df.columns {
		cols[i] = col.Slice(start, end)
	}
	return NewDataFrame(cols...)
}

// VStack appends the rows of other below df. Column names and dtypes
// must match.
func (df *DataFrame) VStack(other *DataFrame) (*DataFrame, error) {
	if df.Width() != other.Width() {
		return nil, fmt.Errorf("width mismatch: %d vs %d", df.Width(), other.Width())
	}
	cols := make([]*Series, len(df.columns))
	for i, col := range df.columns {
		ocol := other.ColumnByName(col.Name())
		if ocol == nil {
			return nil, fmt.Errorf("column '%s' missing from other frame", col.Name())
		}
		stacked, err := concatSeries(col, ocol)
		if err != nil {
			return nil, fmt.Errorf("column '%s': %w", col.Name(), err)
		}
		cols[i] = stacked
	}
	return NewDataFrame(cols...)
}

func concatSeries(a, b *Series) (*Series, error) {
	if a.DType() != b.DType() {
		return nil, fmt.Errorf("dtype mismatch: %s vs %s", a.DType(), b.DType())
	}
	n := a.Len() + b.Len()
	switch a.DType() {
	case Float64:
		data := make([]float64, 0, n)
		data = append(data, a.f64...)
		data = append(data, b.f64...)
		return &Series{name: a.name, dtype: Float64, length: n, f64: data, valid: concatValid(a, b)}, nil
	case Int64:
		data := make([]int64, 0, n)
		data = append(data, a.i64...)
		data = append(data, b.i64...)
		return &Series{name: a.name, dtype: Int64, length: n, i64: data, valid: concatValid(a, b)}, nil
	case Bool:
		data := make([]bool, 0, n)
		data = append(data, a.b...)
		data = append(data, b.b...)
		return &Series{name: a.name, dtype: Bool, length: n, b: data, valid: concatValid(a, b)}, nil
	case String:
		data := make([]string, 0, n)
		data = append(data, a.str...)
		data = append(data, b.str...)
		return &Series{name: a.name, dtype: String, length: n, str: data, valid: concatValid(a, b)}, nil
	case Categorical:
		vals := make([]string, 0, n)
		vals = append(vals, a.Strings()...)
		vals = append(vals, b.Strings()...)
		return NewSeriesCategorical(a.name, vals), nil
	default:
		return nil, fmt.Errorf("cannot concatenate %s series", a.DType())
	}
}

func concatValid(a, b *Series) []bool {
	if a.valid == nil && b.valid == nil {
		return nil
	}
	out := make([]bool, 0, a.Len()+b.Len())
	for i := 0; i < a.Len(); i++ {
		out = append(out, a.IsValid(i))
	}
	for i := 0; i < b.Len(); i++ {
		out = append(out, b.IsValid(i))
	}
	return out
}
