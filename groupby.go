package caravel

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// GroupBy represents a grouping of a DataFrame by zero or more key columns.
// Zero keys means a single group covering every row, so global aggregation
// flows through the same path as keyed aggregation.
type GroupBy struct {
	df   *DataFrame
	keys []string
}

// GroupBy starts a group-by operation on the named key columns
func (df *DataFrame) GroupBy(keys ...string) *GroupBy {
	return &GroupBy{df: df, keys: keys}
}

// ============================================================================
// Aggregation Descriptors
// ============================================================================

// Aggregation describes one aggregate to compute per group
type Aggregation struct {
	Column string
	Type   AggType
	// As overrides the output column name. Empty means "<column>_<fn>"
	// ("count" for a bare row count).
	As string
}

// Alias sets the output column name
func (a Aggregation) Alias(name string) Aggregation {
	a.As = name
	return a
}

// OutputName returns the result column name for this aggregation
func (a Aggregation) OutputName() string {
	if a.As != "" {
		return a.As
	}
	if a.Column == "" {
		return a.Type.String()
	}
	return a.Column + "_" + a.Type.String()
}

// AggSum sums the column per group
func AggSum(column string) Aggregation { return Aggregation{Column: column, Type: AggTypeSum} }

// AggMean averages the column per group
func AggMean(column string) Aggregation { return Aggregation{Column: column, Type: AggTypeMean} }

// AggMin takes the per-group minimum
func AggMin(column string) Aggregation { return Aggregation{Column: column, Type: AggTypeMin} }

// AggMax takes the per-group maximum
func AggMax(column string) Aggregation { return Aggregation{Column: column, Type: AggTypeMax} }

// AggCount counts rows per group
func AggCount(column ...string) Aggregation {
	agg := Aggregation{Type: AggTypeCount}
	if len(column) > 0 {
		agg.Column = column[0]
	}
	return agg
}

// AggFirst takes the first value per group (in row order)
func AggFirst(column string) Aggregation { return Aggregation{Column: column, Type: AggTypeFirst} }

// AggLast takes the last value per group (in row order)
func AggLast(column string) Aggregation { return Aggregation{Column: column, Type: AggTypeLast} }

// AggStd computes the sample standard deviation per group
func AggStd(column string) Aggregation { return Aggregation{Column: column, Type: AggTypeStd} }

// AggVar computes the sample variance per group
func AggVar(column string) Aggregation { return Aggregation{Column: column, Type: AggTypeVar} }

// AggMedian computes the median per group
func AggMedian(column string) Aggregation { return Aggregation{Column: column, Type: AggTypeMedian} }

// ============================================================================
// Group Discovery
// ============================================================================

// groupTable holds the row partitioning: one entry per distinct key, in
// first-appearance order.
type groupTable struct {
	groups [][]int
}

type groupSlot struct {
	key []byte
	idx int
}

// buildGroups partitions rows by the encoded key bytes. Rows hash with
// xxhash; buckets are compared byte-exact so hash collisions stay safe.
func (g *GroupBy) buildGroups() (*groupTable, error) {
	height := g.df.Height()

	if len(g.keys) == 0 {
		all := make([]int, height)
		for i := range all {
			all[i] = i
		}
		return &groupTable{groups: [][]int{all}}, nil
	}

	keyCols := make([]*Series, len(g.keys))
	for i, key := range g.keys {
		col := g.df.ColumnByName(key)
		if col == nil {
			return nil, fmt.Errorf("unknown column '%s' (available: %v)", key, g.df.Columns())
		}
		keyCols[i] = col
	}

	table := &groupTable{}
	buckets := make(map[uint64][]groupSlot, height)
	buf := make([]byte, 0, 64)

	for row := 0; row < height; row++ {
		buf = buf[:0]
		for _, col := range keyCols {
			buf = appendKeyBytes(buf, col, row)
		}
		h := xxhash.Sum64(buf)

		found := -1
		for _, slot := range buckets[h] {
			if bytesEqual(slot.key, buf) {
				found = slot.idx
				break
			}
		}
		if found >= 0 {
			table.groups[found] = append(table.groups[found], row)
			continue
		}
		idx := len(table.groups)
		table.groups = append(table.groups, []int{row})
		buckets[h] = append(buckets[h], groupSlot{key: append([]byte{}, buf...), idx: idx})
	}
	return table, nil
}

// appendKeyBytes encodes one cell into the running key buffer. Encoding is
// dtype-tagged and length-prefixed so concatenated keys cannot alias.
// Categorical cells encode their label text, never the dictionary code, so
// grouping is independent of label-set order.
func appendKeyBytes(buf []byte, col *Series, row int) []byte {
	if !col.IsValid(row) {
		return append(buf, 0xFF)
	}
	switch col.DType() {
	case Float64:
		buf = append(buf, 1)
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(col.f64[row]))
	case Float32:
		buf = append(buf, 1)
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(float64(col.f32[row])))
	case Int64:
		buf = append(buf, 2)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(col.i64[row]))
	case Int32:
		buf = append(buf, 2)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(col.i32[row]))
	case Bool:
		buf = append(buf, 3)
		if col.b[row] {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case String:
		buf = append(buf, 4)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(col.str[row])))
		buf = append(buf, col.str[row]...)
	case Categorical:
		lbl, _ := col.cat.labelAt(row)
		buf = append(buf, 4)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(lbl)))
		buf = append(buf, lbl...)
	}
	return buf
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ============================================================================
// Aggregation Execution
// ============================================================================

// Agg computes the given aggregations per group. The result carries the
// key columns first (one row per group, in first-appearance order), then
// one column per aggregation.
func (g *GroupBy) Agg(aggs ...Aggregation) (*DataFrame, error) {
	if len(aggs) == 0 {
		return nil, fmt.Errorf("no aggregations given")
	}

	// Validate aggregate columns before doing any work
	for _, agg := range aggs {
		if agg.Column == "" && agg.Type == AggTypeCount {
			continue
		}
		if g.df.ColumnByName(agg.Column) == nil {
			return nil, fmt.Errorf("unknown column '%s' (available: %v)", agg.Column, g.df.Columns())
		}
	}

	table, err := g.buildGroups()
	if err != nil {
		return nil, err
	}

	firstRows := make([]int, len(table.groups))
	for i, rows := range table.groups {
		firstRows[i] = rows[0]
	}

	cols := make([]*Series, 0, len(g.keys)+len(aggs))
	for _, key := range g.keys {
		cols = append(cols, g.df.ColumnByName(key).Take(firstRows))
	}

	for _, agg := range aggs {
		col, err := computeAggregation(g.df, table, agg)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return NewDataFrame(cols...)
}

func computeAggregation(df *DataFrame, table *groupTable, agg Aggregation) (*Series, error) {
	name := agg.OutputName()

	switch agg.Type {
	case AggTypeCount:
		data := make([]int64, len(table.groups))
		src := df.ColumnByName(agg.Column)
		for i, rows := range table.groups {
			if agg.Column == "" || src == nil {
				data[i] = int64(len(rows))
				continue
			}
			n := 0
			for _, r := range rows {
				if src.IsValid(r) {
					n++
				}
			}
			data[i] = int64(n)
		}
		return NewSeriesInt64(name, data), nil

	case AggTypeFirst, AggTypeLast:
		src := df.ColumnByName(agg.Column)
		pick := make([]int, len(table.groups))
		for i, rows := range table.groups {
			if agg.Type == AggTypeFirst {
				pick[i] = rows[0]
			} else {
				pick[i] = rows[len(rows)-1]
			}
		}
		return src.Take(pick).Rename(name), nil

	case AggTypeSum, AggTypeMean, AggTypeMin, AggTypeMax, AggTypeStd, AggTypeVar, AggTypeMedian:
		src := df.ColumnByName(agg.Column)
		if !src.DType().IsNumeric() {
			return nil, fmt.Errorf("cannot %s non-numeric column '%s' (%s)", agg.Type, agg.Column, src.DType())
		}
		data := make([]float64, len(table.groups))
		for i, rows := range table.groups {
			sub := src.Take(rows)
			switch agg.Type {
			case AggTypeSum:
				data[i] = sub.Sum()
			case AggTypeMean:
				data[i] = sub.Mean()
			case AggTypeMin:
				data[i] = sub.Min()
			case AggTypeMax:
				data[i] = sub.Max()
			case AggTypeStd:
				data[i] = sub.Std()
			case AggTypeVar:
				data[i] = sub.Var()
			case AggTypeMedian:
				data[i] = sub.Median()
			}
		}
		return NewSeriesFloat64(name, data), nil

	default:
		return nil, fmt.Errorf("unsupported aggregation: %s", agg.Type)
	}
}

// ============================================================================
// Convenience Aggregations
// ============================================================================

// Sum aggregates one column with sum, keeping the source column name
func (g *GroupBy) Sum(column string) (*DataFrame, error) {
	return g.Agg(AggSum(column).Alias(column))
}

// Mean aggregates one column with mean, keeping the source column name
func (g *GroupBy) Mean(column string) (*DataFrame, error) {
	return g.Agg(AggMean(column).Alias(column))
}

// Min aggregates one column with min, keeping the source column name
func (g *GroupBy) Min(column string) (*DataFrame, error) {
	return g.Agg(AggMin(column).Alias(column))
}

// Max aggregates one column with max, keeping the source column name
func (g *GroupBy) Max(column string) (*DataFrame, error) {
	return g.Agg(AggMax(column).Alias(column))
}

// Count counts rows per group
func (g *GroupBy) Count() (*DataFrame, error) {
	return g.Agg(AggCount())
}

// First takes the first row's value of one column per group
func (g *GroupBy) First(column string) (*DataFrame, error) {
	return g.Agg(AggFirst(column).Alias(column))
}

// Distinct returns the frame with duplicate rows removed, keeping the
// first occurrence of each distinct row.
func (df *DataFrame) Distinct() (*DataFrame, error) {
	if df.Width() == 0 || df.Height() == 0 {
		return df, nil
	}
	gb := df.GroupBy(df.Columns()...)
	table, err := gb.buildGroups()
	if err != nil {
		return nil, err
	}
	firstRows := getIndexSlice(len(table.groups))
	for i, rows := range table.groups {
		firstRows.Data[i] = rows[0]
	}
	out, err := df.Take(firstRows.Data)
	firstRows.Release()
	return out, err
}

// ============================================================================
// Nesting
// ============================================================================

// Nest returns one row per group: the key columns plus a Frame column
// named "data" holding each group's remaining rows as a sub-frame.
// Unnest is the inverse.
func (g *GroupBy) Nest() (*DataFrame, error) {
	if len(g.keys) == 0 {
		return nil, fmt.Errorf("nest requires at least one key column")
	}
	table, err := g.buildGroups()
	if err != nil {
		return nil, err
	}

	keySet := make(map[string]bool, len(g.keys))
	for _, k := range g.keys {
		keySet[k] = true
	}
	var valueCols []string
	for _, name := range g.df.Columns() {
		if !keySet[name] {
			valueCols = append(valueCols, name)
		}
	}

	firstRows := make([]int, len(table.groups))
	frames := make([]*DataFrame, len(table.groups))
	for i, rows := range table.groups {
		firstRows[i] = rows[0]
		sub, err := g.df.Take(rows)
		if err != nil {
			return nil, err
		}
		frames[i], err = sub.SelectColumns(valueCols...)
		if err != nil {
			return nil, err
		}
	}

	cols := make([]*Series, 0, len(g.keys)+1)
	for _, key := range g.keys {
		cols = append(cols, g.df.ColumnByName(key).Take(firstRows))
	}
	cols = append(cols, NewSeriesFrame("data", frames))
	return NewDataFrame(cols...)
}

// Unnest expands a Frame column back into rows, repeating the other
// columns for every row of each sub-frame.
func (df *DataFrame) Unnest(column string) (*DataFrame, error) {
	frameCol := df.ColumnByName(column)
	if frameCol == nil {
		return nil, fmt.Errorf("unknown column '%s' (available: %v)", column, df.Columns())
	}
	if frameCol.DType() != Frame {
		return nil, fmt.Errorf("column '%s' is %s, not Frame", column, frameCol.DType())
	}

	frames := frameCol.Frames()
	var expanded *DataFrame
	for i, sub := range frames {
		if sub == nil || sub.Height() == 0 {
			continue
		}
		// Broadcast the outer row across the sub-frame
		block := sub
		for _, col := range df.columns {
			if col.Name() == column {
				continue
			}
			rep := make([]int, sub.Height())
			for j := range rep {
				rep[j] = i
			}
			var err error
			block, err = block.WithColumnSeries(col.Take(rep))
			if err != nil {
				return nil, err
			}
		}
		if expanded == nil {
			expanded = block
		} else {
			var err error
			expanded, err = expanded.VStack(block)
			if err != nil {
				return nil, err
			}
		}
	}
	if expanded == nil {
		return NewDataFrame()
	}

	// Keys first, then the nested columns, matching Nest's inverse
	outer := make([]string, 0, df.Width()-1)
	for _, name := range df.Columns() {
		if name != column {
			outer = append(outer, name)
		}
	}
	order := append(outer, diffStrings(expanded.Columns(), outer)...)
	return expanded.SelectColumns(order...)
}

func diffStrings(all, remove []string) []string {
	rm := make(map[string]bool, len(remove))
	for _, r := range remove {
		rm[r] = true
	}
	var out []string
	for _, a := range all {
		if !rm[a] {
			out = append(out, a)
		}
	}
	return out
}
