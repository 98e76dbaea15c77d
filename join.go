package caravel

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// JoinType represents the type of join operation
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	OuterJoin
	CrossJoin
)

var joinTypeNames = [...]string{
	InnerJoin: "inner", LeftJoin: "left", RightJoin: "right",
	OuterJoin: "outer", CrossJoin: "cross",
}

func (jt JoinType) String() string {
	if int(jt) < len(joinTypeNames) {
		return joinTypeNames[jt]
	}
	return "?"
}

// JoinOptions configures join behavior
type JoinOptions struct {
	On      []string // Columns to join on (same name in both DataFrames)
	LeftOn  []string // Left DataFrame join columns
	RightOn []string // Right DataFrame join columns
	Suffix  string   // Suffix for duplicate column names (default "_right")
}

// On creates join options for joining on columns with the same name
func On(columns ...string) JoinOptions {
	return JoinOptions{On: columns, Suffix: "_right"}
}

// LeftOn creates join options with different column names for left and right
func LeftOn(columns ...string) JoinOptions {
	return JoinOptions{LeftOn: columns, Suffix: "_right"}
}

// WithRightOn specifies right DataFrame columns for the join
func (o JoinOptions) WithRightOn(columns ...string) JoinOptions {
	o.RightOn = columns
	return o
}

// WithSuffix sets the suffix for duplicate column names
func (o JoinOptions) WithSuffix(suffix string) JoinOptions {
	o.Suffix = suffix
	return o
}

// Join performs an inner join with another DataFrame
func (df *DataFrame) Join(other *DataFrame, opts JoinOptions) (*DataFrame, error) {
	return df.joinWith(other, opts, InnerJoin)
}

// LeftJoin performs a left join with another DataFrame
func (df *DataFrame) LeftJoin(other *DataFrame, opts JoinOptions) (*DataFrame, error) {
	return df.joinWith(other, opts, LeftJoin)
}

// RightJoin performs a right join with another DataFrame
func (df *DataFrame) RightJoin(other *DataFrame, opts JoinOptions) (*DataFrame, error) {
	return df.joinWith(other, opts, RightJoin)
}

// OuterJoin performs a full outer join with another DataFrame
func (df *DataFrame) OuterJoin(other *DataFrame, opts JoinOptions) (*DataFrame, error) {
	return df.joinWith(other, opts, OuterJoin)
}

// CrossJoin performs a cross join (cartesian product) with another DataFrame
func (df *DataFrame) CrossJoin(other *DataFrame) (*DataFrame, error) {
	return df.crossJoin(other)
}

func (df *DataFrame) joinWith(other *DataFrame, opts JoinOptions, how JoinType) (*DataFrame, error) {
	leftOn, rightOn, err := joinKeyColumns(df, other, opts)
	if err != nil {
		return nil, err
	}

	suffix := opts.Suffix
	if suffix == "" {
		suffix = "_right"
	}
	layout := joinLayout(df, other, leftOn, rightOn, suffix)

	leftKeys := encodeJoinKeys(columnsByName(df, leftOn), df.Height())
	rightKeys := encodeJoinKeys(columnsByName(other, rightOn), other.Height())

	var li, ri []int
	switch how {
	case InnerJoin, LeftJoin:
		table := newJoinTable(rightKeys)
		keep := how == LeftJoin
		if ShouldParallelizeOp(OpJoinProbe, df.Height()) {
			li, ri = probeParallel(leftKeys, table, keep)
		} else {
			li, ri = probeRows(leftKeys, table, keep)
		}
	case RightJoin:
		// probe the left table with right rows, keeping right row order
		table := newJoinTable(leftKeys)
		ri, li = probeRows(rightKeys, table, true)
	case OuterJoin:
		li, ri = probeOuter(leftKeys, rightKeys, newJoinTable(rightKeys))
	default:
		return nil, fmt.Errorf("unknown join type: %d", how)
	}

	return assembleJoin(df, other, layout, li, ri)
}

func joinKeyColumns(left, right *DataFrame, opts JoinOptions) ([]string, []string, error) {
	switch {
	case len(opts.On) > 0:
		if err := requireColumns(left, opts.On, "left"); err != nil {
			return nil, nil, err
		}
		if err := requireColumns(right, opts.On, "right"); err != nil {
			return nil, nil, err
		}
		return opts.On, opts.On, nil

	case len(opts.LeftOn) > 0 && len(opts.RightOn) > 0:
		if len(opts.LeftOn) != len(opts.RightOn) {
			return nil, nil, fmt.Errorf("LeftOn and RightOn must have same length")
		}
		if err := requireColumns(left, opts.LeftOn, "left"); err != nil {
			return nil, nil, err
		}
		if err := requireColumns(right, opts.RightOn, "right"); err != nil {
			return nil, nil, err
		}
		return opts.LeftOn, opts.RightOn, nil
	}
	return nil, nil, fmt.Errorf("must specify On or both LeftOn and RightOn")
}

func requireColumns(df *DataFrame, names []string, side string) error {
	for _, name := range names {
		if df.ColumnByName(name) == nil {
			return fmt.Errorf("column '%s' not found in %s DataFrame", name, side)
		}
	}
	return nil
}

func columnsByName(df *DataFrame, names []string) []*Series {
	cols := make([]*Series, len(names))
	for i, name := range names {
		cols[i] = df.ColumnByName(name)
	}
	return cols
}

// joinKey holds one row's encoded key. Null keys never match any row,
// including other null keys.
type joinKey struct {
	bytes   []byte
	hash    uint64
	hasNull bool
}

// encodeJoinKeys encodes the key columns of every row using the same
// dtype-tagged encoding the group tables use. Categorical keys therefore
// match on label text, so joining a Categorical column against a String
// column with equal values works.
func encodeJoinKeys(keyCols []*Series, height int) []joinKey {
	keys := make([]joinKey, height)
	var buf []byte
	for row := 0; row < height; row++ {
		buf = buf[:0]
		hasNull := false
		for _, col := range keyCols {
			hasNull = hasNull || !col.IsValid(row)
			buf = appendKeyBytes(buf, col, row)
		}
		k := append([]byte(nil), buf...)
		keys[row] = joinKey{bytes: k, hash: xxhash.Sum64(k), hasNull: hasNull}
	}
	return keys
}

// joinTable is the build side of a hash join: row keys plus a hash
// index over them.
type joinTable struct {
	keys   []joinKey
	byHash map[uint64][]int
}

func newJoinTable(keys []joinKey) *joinTable {
	t := &joinTable{keys: keys, byHash: make(map[uint64][]int, len(keys))}
	for row, k := range keys {
		if k.hasNull {
			continue
		}
		t.byHash[k.hash] = append(t.byHash[k.hash], row)
	}
	return t
}

// lookup returns the build rows whose key equals probe byte-for-byte.
func (t *joinTable) lookup(probe joinKey) []int {
	if probe.hasNull {
		return nil
	}
	var rows []int
	for _, row := range t.byHash[probe.hash] {
		if bytesEqual(probe.bytes, t.keys[row].bytes) {
			rows = append(rows, row)
		}
	}
	return rows
}

// probeRows matches every probe row against the table. With
// keepUnmatched, probe rows without a match emit a -1 build index.
func probeRows(probeKeys []joinKey, table *joinTable, keepUnmatched bool) (probe, build []int) {
	for p := range probeKeys {
		rows := table.lookup(probeKeys[p])
		if len(rows) == 0 {
			if keepUnmatched {
				probe = append(probe, p)
				build = append(build, -1)
			}
			continue
		}
		for _, b := range rows {
			probe = append(probe, p)
			build = append(build, b)
		}
	}
	return probe, build
}

// probeParallel splits the probe side into morsels claimed by a
// worker pool. Match order follows worker claim order, not row order.
func probeParallel(probeKeys []joinKey, table *joinTable, keepUnmatched bool) ([]int, []int) {
	workers := globalConfig.numWorkers()
	perWorker := make([][]JoinMatch, workers)
	iter := NewMorselIterator(len(probeKeys), globalConfig.MorselSize)

	spawnWorkers(workers, func(worker int) {
		var matches []JoinMatch
		for m := iter.Next(); m != nil; m = iter.Next() {
			for p := m.Start; p < m.End; p++ {
				rows := table.lookup(probeKeys[p])
				if len(rows) == 0 {
					if keepUnmatched {
						matches = append(matches, JoinMatch{p, -1})
					}
					continue
				}
				for _, b := range rows {
					matches = append(matches, JoinMatch{p, b})
				}
			}
		}
		perWorker[worker] = matches
	})

	total := 0
	for _, ms := range perWorker {
		total += len(ms)
	}
	probe := make([]int, 0, total)
	build := make([]int, 0, total)
	for _, ms := range perWorker {
		for _, m := range ms {
			probe = append(probe, m.LeftIdx)
			build = append(build, m.RightIdx)
		}
	}
	return probe, build
}

// probeOuter is a left probe that also emits unmatched build rows at
// the end.
func probeOuter(leftKeys, rightKeys []joinKey, table *joinTable) ([]int, []int) {
	var li, ri []int
	matched := make([]bool, len(rightKeys))

	for l := range leftKeys {
		rows := table.lookup(leftKeys[l])
		if len(rows) == 0 {
			li = append(li, l)
			ri = append(ri, -1)
			continue
		}
		for _, r := range rows {
			li = append(li, l)
			ri = append(ri, r)
			matched[r] = true
		}
	}
	for r, m := range matched {
		if !m {
			li = append(li, -1)
			ri = append(ri, r)
		}
	}
	return li, ri
}

// outCol describes one output column: its name and which input it
// gathers from.
type outCol struct {
	name string
	left bool
	src  int
}

// joinLayout lists the output columns. Right key columns sharing a
// name with their left key appear once; other collisions get the
// suffix.
func joinLayout(left, right *DataFrame, leftOn, rightOn []string, suffix string) []outCol {
	var cols []outCol
	taken := make(map[string]bool, left.Width())

	for i, name := range left.Columns() {
		cols = append(cols, outCol{name: name, left: true, src: i})
		taken[name] = true
	}

	for i, name := range right.Columns() {
		shared := false
		for j, rk := range rightOn {
			if name == rk && leftOn[j] == rk {
				shared = true
				break
			}
		}
		if shared {
			continue
		}
		outName := name
		if taken[name] {
			outName = name + suffix
		}
		cols = append(cols, outCol{name: outName, left: false, src: i})
	}
	return cols
}

func (df *DataFrame) crossJoin(other *DataFrame) (*DataFrame, error) {
	var cols []outCol
	taken := make(map[string]bool, df.Width())
	for i, name := range df.Columns() {
		cols = append(cols, outCol{name: name, left: true, src: i})
		taken[name] = true
	}
	for i, name := range other.Columns() {
		outName := name
		if taken[name] {
			outName = name + "_right"
		}
		cols = append(cols, outCol{name: outName, left: false, src: i})
	}

	n := df.Height() * other.Height()
	li := make([]int, 0, n)
	ri := make([]int, 0, n)
	for l := 0; l < df.Height(); l++ {
		for r := 0; r < other.Height(); r++ {
			li = append(li, l)
			ri = append(ri, r)
		}
	}
	return assembleJoin(df, other, cols, li, ri)
}

func assembleJoin(left, right *DataFrame, cols []outCol, li, ri []int) (*DataFrame, error) {
	out := make([]*Series, len(cols))
	build := func(i int) {
		c := cols[i]
		if c.left {
			out[i] = gatherColumn(c.name, left.Column(c.src), li)
		} else {
			out[i] = gatherColumn(c.name, right.Column(c.src), ri)
		}
	}

	if ShouldParallelizeOp(OpGather, len(li)) {
		var wg sync.WaitGroup
		for i := range cols {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				build(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range cols {
			build(i)
		}
	}
	return NewDataFrame(out...)
}

// gatherInto copies src rows by index; -1 leaves the zero value.
func gatherInto[T any](src []T, indices []int) []T {
	out := make([]T, len(indices))
	for i, idx := range indices {
		if idx >= 0 {
			out[i] = src[idx]
		}
	}
	return out
}

// gatherColumn gathers src rows by index. Index -1 produces a null row.
func gatherColumn(name string, src *Series, indices []int) *Series {
	valid := make([]bool, len(indices))
	hasNull := false
	for i, idx := range indices {
		valid[i] = idx >= 0 && src.IsValid(idx)
		hasNull = hasNull || !valid[i]
	}
	if !hasNull {
		valid = nil
	}

	var out *Series
	switch src.DType() {
	case Float64:
		out = NewSeriesFloat64(name, gatherInto(src.Float64(), indices))
	case Float32:
		out = NewSeriesFloat32(name, gatherInto(src.Float32(), indices))
	case Int64:
		out = NewSeriesInt64(name, gatherInto(src.Int64(), indices))
	case Int32:
		out = NewSeriesInt32(name, gatherInto(src.Int32(), indices))
	case Bool:
		out = NewSeriesBool(name, gatherInto(src.Bool(), indices))
	case String:
		out = NewSeriesString(name, gatherInto(src.Strings(), indices))
	case Categorical:
		codes := make([]int32, len(indices))
		for i, idx := range indices {
			if idx >= 0 {
				codes[i] = src.cat.codes[idx]
			} else {
				codes[i] = -1
			}
		}
		labels := append([]string(nil), src.cat.labels...)
		return newSeriesCategoricalFromCodes(name, labels, codes)
	default:
		data := make([]string, len(indices))
		for i, idx := range indices {
			if idx >= 0 {
				data[i] = fmt.Sprintf("%v", src.Get(idx))
			}
		}
		out = NewSeriesString(name, data)
	}
	out.valid = valid
	return out
}
