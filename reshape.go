package caravel

import (
	"fmt"
	"strings"
)

// PivotOptions configures a long-to-wide reshape
type PivotOptions struct {
	Index  []string // Identifier columns; their combination addresses an output row
	Column string   // Column whose values become new column names
	Values string   // Column whose values populate the new columns
	// Agg collapses rows that land in the same output cell. The zero value
	// means no aggregation: a cell collision is an error, not a silent pick.
	Agg AggType
}

// MeltOptions configures a wide-to-long reshape
type MeltOptions struct {
	IDVars    []string // Columns to keep as identifier variables
	ValueVars []string // Columns to unpivot (if empty, uses all non-ID columns)
	VarName   string   // Name for the variable column (default: "variable")
	ValueName string   // Name for the value column (default: "value")
}

// ============================================================================
// Pivot (long to wide)
// ============================================================================

// Pivot reshapes from long to wide format. Each distinct value of
// opts.Column becomes an output column; each distinct combination of
// opts.Index becomes an output row. Cells with no source row are null.
// Without an aggregation, two source rows landing in the same cell is
// an error.
func (df *DataFrame) Pivot(opts PivotOptions) (*DataFrame, error) {
	if len(opts.Index) == 0 {
		return nil, fmt.Errorf("pivot requires at least one index column")
	}
	for _, name := range opts.Index {
		if !df.HasColumn(name) {
			return nil, fmt.Errorf("unknown index column '%s' (available: %v)", name, df.Columns())
		}
	}
	nameCol := df.ColumnByName(opts.Column)
	if nameCol == nil {
		return nil, fmt.Errorf("unknown pivot column '%s' (available: %v)", opts.Column, df.Columns())
	}
	if !nameCol.DType().IsTextual() {
		return nil, fmt.Errorf("pivot column '%s' must hold strings, got %s", opts.Column, nameCol.DType())
	}
	valueCol := df.ColumnByName(opts.Values)
	if valueCol == nil {
		return nil, fmt.Errorf("unknown values column '%s' (available: %v)", opts.Values, df.Columns())
	}

	// Partition rows by the identifier combination
	table, err := df.GroupBy(opts.Index...).buildGroups()
	if err != nil {
		return nil, err
	}
	rowOf := make(map[int]int, df.Height()) // source row -> output row
	firstRows := make([]int, len(table.groups))
	for gi, rows := range table.groups {
		firstRows[gi] = rows[0]
		for _, r := range rows {
			rowOf[r] = gi
		}
	}

	// Destination columns in first-appearance order
	names := nameCol.Strings()
	var destNames []string
	destIdx := make(map[string]int)
	for _, n := range names {
		if _, ok := destIdx[n]; !ok {
			destIdx[n] = len(destNames)
			destNames = append(destNames, n)
		}
	}
	for _, n := range destNames {
		for _, idxName := range opts.Index {
			if n == idxName {
				return nil, fmt.Errorf("pivot value %q collides with index column %q", n, idxName)
			}
		}
	}

	// Collect source rows per output cell
	cells := make([][][]int, len(destNames))
	for i := range cells {
		cells[i] = make([][]int, len(table.groups))
	}
	for r := 0; r < df.Height(); r++ {
		ci := destIdx[names[r]]
		ri := rowOf[r]
		cells[ci][ri] = append(cells[ci][ri], r)
	}

	if opts.Agg == AggTypeNone {
		for ci, perRow := range cells {
			for ri, rows := range perRow {
				if len(rows) > 1 {
					return nil, fmt.Errorf(
						"pivot cell (%s, column %q) has %d source rows; pass an aggregation to collapse them",
						describeIndexRow(df, opts.Index, firstRows[ri]), destNames[ci], len(rows))
				}
			}
		}
	}

	cols := make([]*Series, 0, len(opts.Index)+len(destNames))
	for _, name := range opts.Index {
		cols = append(cols, df.ColumnByName(name).Take(firstRows))
	}
	for ci, destName := range destNames {
		col, err := buildPivotColumn(destName, valueCol, cells[ci], opts.Agg)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return NewDataFrame(cols...)
}

func describeIndexRow(df *DataFrame, index []string, row int) string {
	parts := make([]string, len(index))
	for i, name := range index {
		parts[i] = fmt.Sprintf("%s=%v", name, df.ColumnByName(name).Get(row))
	}
	return strings.Join(parts, ", ")
}

func buildPivotColumn(name string, valueCol *Series, perRow [][]int, agg AggType) (*Series, error) {
	n := len(perRow)

	// String values pass through for pick-style aggregations
	if valueCol.DType().IsTextual() {
		switch agg {
		case AggTypeNone, AggTypeFirst, AggTypeLast:
		default:
			return nil, fmt.Errorf("cannot %s string values column '%s'", agg, valueCol.Name())
		}
		src := valueCol.Strings()
		data := make([]string, n)
		valid := make([]bool, n)
		for ri, rows := range perRow {
			if len(rows) == 0 {
				continue
			}
			pick := rows[0]
			if agg == AggTypeLast {
				pick = rows[len(rows)-1]
			}
			if valueCol.IsValid(pick) {
				data[ri] = src[pick]
				valid[ri] = true
			}
		}
		return NewSeriesStringWithNulls(name, data, valid), nil
	}

	if !valueCol.DType().IsNumeric() {
		return nil, fmt.Errorf("values column '%s' has unsupported dtype %s", valueCol.Name(), valueCol.DType())
	}

	data := make([]float64, n)
	valid := make([]bool, n)
	for ri, rows := range perRow {
		if len(rows) == 0 {
			continue
		}
		sub := valueCol.Take(rows)
		switch agg {
		case AggTypeNone, AggTypeFirst:
			if !sub.IsValid(0) {
				continue
			}
			data[ri] = sub.toFloat64()[0]
		case AggTypeLast:
			last := sub.Len() - 1
			if !sub.IsValid(last) {
				continue
			}
			data[ri] = sub.toFloat64()[last]
		case AggTypeSum:
			data[ri] = sub.Sum()
		case AggTypeMean:
			data[ri] = sub.Mean()
		case AggTypeMin:
			data[ri] = sub.Min()
		case AggTypeMax:
			data[ri] = sub.Max()
		case AggTypeCount:
			data[ri] = float64(sub.Count())
		case AggTypeStd:
			data[ri] = sub.Std()
		case AggTypeVar:
			data[ri] = sub.Var()
		case AggTypeMedian:
			data[ri] = sub.Median()
		default:
			return nil, fmt.Errorf("unsupported pivot aggregation: %s", agg)
		}
		valid[ri] = true
	}
	return NewSeriesFloat64WithNulls(name, data, valid), nil
}

// ============================================================================
// Melt (wide to long)
// ============================================================================

// Melt reshapes from wide to long format: every value column becomes
// rows of (variable, value) pairs alongside the repeated ID columns.
// Pivot of the result with no aggregation restores the input, up to
// row order.
func (df *DataFrame) Melt(opts MeltOptions) (*DataFrame, error) {
	varName := opts.VarName
	if varName == "" {
		varName = "variable"
	}
	valueName := opts.ValueName
	if valueName == "" {
		valueName = "value"
	}

	for _, name := range opts.IDVars {
		if !df.HasColumn(name) {
			return nil, fmt.Errorf("unknown id column '%s' (available: %v)", name, df.Columns())
		}
	}

	valueVars := opts.ValueVars
	if len(valueVars) == 0 {
		idSet := make(map[string]bool, len(opts.IDVars))
		for _, id := range opts.IDVars {
			idSet[id] = true
		}
		for _, name := range df.Columns() {
			if !idSet[name] {
				valueVars = append(valueVars, name)
			}
		}
	}
	if len(valueVars) == 0 {
		return nil, fmt.Errorf("no columns to melt")
	}

	valueCols := make([]*Series, len(valueVars))
	allNumeric := true
	for i, name := range valueVars {
		col := df.ColumnByName(name)
		if col == nil {
			return nil, fmt.Errorf("unknown value column '%s' (available: %v)", name, df.Columns())
		}
		valueCols[i] = col
		if !col.DType().IsNumeric() {
			allNumeric = false
		}
	}

	height := df.Height()
	numRows := height * len(valueVars)

	// ID columns repeat once per value var, keeping their dtype
	repeat := make([]int, numRows)
	for i := range valueVars {
		for j := 0; j < height; j++ {
			repeat[i*height+j] = j
		}
	}
	cols := make([]*Series, 0, len(opts.IDVars)+2)
	for _, id := range opts.IDVars {
		cols = append(cols, df.ColumnByName(id).Take(repeat))
	}

	varData := make([]string, numRows)
	for i, name := range valueVars {
		for j := 0; j < height; j++ {
			varData[i*height+j] = name
		}
	}
	cols = append(cols, NewSeriesString(varName, varData))

	if allNumeric {
		data := make([]float64, numRows)
		valid := make([]bool, numRows)
		hasNull := false
		for i, col := range valueCols {
			vals := col.toFloat64()
			for j, v := range vals {
				data[i*height+j] = v
				valid[i*height+j] = col.IsValid(j)
				if !valid[i*height+j] {
					hasNull = true
				}
			}
		}
		if hasNull {
			cols = append(cols, NewSeriesFloat64WithNulls(valueName, data, valid))
		} else {
			cols = append(cols, NewSeriesFloat64(valueName, data))
		}
	} else {
		data := make([]string, numRows)
		valid := make([]bool, numRows)
		hasNull := false
		for i, col := range valueCols {
			strCol, err := col.Cast(String)
			if err != nil {
				return nil, fmt.Errorf("value column '%s': %w", col.Name(), err)
			}
			vals := strCol.Strings()
			for j, v := range vals {
				data[i*height+j] = v
				valid[i*height+j] = strCol.IsValid(j)
				if !valid[i*height+j] {
					hasNull = true
				}
			}
		}
		if hasNull {
			cols = append(cols, NewSeriesStringWithNulls(valueName, data, valid))
		} else {
			cols = append(cols, NewSeriesString(valueName, data))
		}
	}

	return NewDataFrame(cols...)
}
