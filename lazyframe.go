package caravel

import (
	"fmt"
	"strings"
)

// LazyFrame stages DataFrame operations as a query plan. Nothing runs
// until Collect, which optimizes the plan and executes it.
type LazyFrame struct {
	root *planNode
}

// step pushes a new plan node on top of the current root.
func (lf *LazyFrame) step(n *planNode) *LazyFrame {
	n.child = lf.root
	return &LazyFrame{root: n}
}

// Lazy starts a lazy query over an in-memory DataFrame.
func (df *DataFrame) Lazy() *LazyFrame {
	return &LazyFrame{root: &planNode{kind: planScan, src: df}}
}

// ScanCSV stages a CSV file read; the file is opened at Collect.
func ScanCSV(path string, opts ...CSVReadOptions) *LazyFrame {
	return &LazyFrame{root: &planNode{kind: planScanCSV, path: path, csvOpts: opts}}
}

// ScanParquet stages a Parquet file read; the file is opened at Collect.
func ScanParquet(path string, opts ...ParquetReadOptions) *LazyFrame {
	return &LazyFrame{root: &planNode{kind: planScanParquet, path: path, pqOpts: opts}}
}

// ScanJSON stages a JSON file read; the file is opened at Collect.
func ScanJSON(path string, opts ...JSONReadOptions) *LazyFrame {
	return &LazyFrame{root: &planNode{kind: planScanJSON, path: path, jsonOpts: opts}}
}

// Select projects columns or computed expressions.
func (lf *LazyFrame) Select(exprs ...Expr) *LazyFrame {
	return lf.step(&planNode{kind: planProject, exprs: exprs})
}

// Filter keeps rows where the predicate is true.
func (lf *LazyFrame) Filter(predicate Expr) *LazyFrame {
	return lf.step(&planNode{kind: planFilter, pred: predicate})
}

// WithColumn adds or replaces a column computed from an expression.
func (lf *LazyFrame) WithColumn(name string, expr Expr) *LazyFrame {
	return lf.step(&planNode{
		kind:    planWithColumn,
		colName: name,
		colExpr: &AliasExpr{Inner: expr, AliasName: name},
	})
}

// GroupBy starts a grouped aggregation over the key columns.
func (lf *LazyFrame) GroupBy(keys ...string) *LazyGroupBy {
	keyExprs := make([]Expr, len(keys))
	for i, k := range keys {
		keyExprs[i] = Col(k)
	}
	return &LazyGroupBy{input: lf, keyExprs: keyExprs}
}

// Join stages an inner join with another lazy query.
func (lf *LazyFrame) Join(other *LazyFrame, opts JoinOptions) *LazyFrame {
	return lf.step(&planNode{
		kind:     planJoin,
		right:    other.root,
		joinKind: InnerJoin,
		joinOpts: opts,
	})
}

// LeftJoin stages a left outer join with another lazy query.
func (lf *LazyFrame) LeftJoin(other *LazyFrame, opts JoinOptions) *LazyFrame {
	return lf.step(&planNode{
		kind:     planJoin,
		right:    other.root,
		joinKind: LeftJoin,
		joinOpts: opts,
	})
}

// Sort orders rows by one column.
func (lf *LazyFrame) Sort(column string, ascending bool) *LazyFrame {
	return lf.step(&planNode{kind: planSort, sortCol: column, sortAsc: ascending})
}

// Head keeps the first n rows.
func (lf *LazyFrame) Head(n int) *LazyFrame {
	return lf.step(&planNode{kind: planLimit, n: n})
}

// Tail keeps the last n rows.
func (lf *LazyFrame) Tail(n int) *LazyFrame {
	return lf.step(&planNode{kind: planTail, n: n})
}

// Distinct drops duplicate rows, keeping first occurrences.
func (lf *LazyFrame) Distinct() *LazyFrame {
	return lf.step(&planNode{kind: planDistinct})
}

// Pivot reshapes data from long to wide format when collected.
// Without opts.Agg, rows colliding in one output cell fail the collect.
// Example:
//
//	df.Lazy().Pivot(PivotOptions{
//	    Index:  []string{"date"},
//	    Column: "metric",
//	    Values: "value",
//	    Agg:    AggTypeSum,
//	})
func (lf *LazyFrame) Pivot(opts PivotOptions) *LazyFrame {
	return lf.step(&planNode{kind: planPivot, pivot: opts})
}

// Melt reshapes data from wide to long format when collected.
// Example:
//
//	df.Lazy().Melt(MeltOptions{
//	    IDVars:    []string{"id", "date"},
//	    ValueVars: []string{"temp", "humidity", "pressure"},
//	    VarName:   "metric",
//	    ValueName: "reading",
//	})
func (lf *LazyFrame) Melt(opts MeltOptions) *LazyFrame {
	return lf.step(&planNode{kind: planMelt, melt: opts})
}

// Cache materializes the result up to this point on first execution
// and reuses it across later Collects of the same query.
func (lf *LazyFrame) Cache() *LazyFrame {
	return lf.step(&planNode{kind: planCache})
}

// Apply runs a user-defined function over one column.
// Example:
//
//	df.Lazy().Apply("price", func(s *Series) (*Series, error) {
//	    return s.MapFloat64(func(v float64) float64 { return v * 1.1 })
//	})
func (lf *LazyFrame) Apply(column string, fn func(*Series) (*Series, error)) *LazyFrame {
	return lf.step(&planNode{kind: planApply, udfCol: column, udf: fn})
}

// Collect optimizes and executes the staged plan.
func (lf *LazyFrame) Collect() (*DataFrame, error) {
	return runPlan(optimize(lf.root))
}

// Describe renders the staged plan as built, for debugging.
func (lf *LazyFrame) Describe() string {
	var sb strings.Builder
	lf.root.describe(&sb, 0)
	return sb.String()
}

// Explain renders the plan after optimization.
func (lf *LazyFrame) Explain() string {
	var sb strings.Builder
	optimize(lf.root).describe(&sb, 0)
	return sb.String()
}

// LazyGroupBy holds the group keys until an aggregation closes it
// back into a LazyFrame.
type LazyGroupBy struct {
	input    *LazyFrame
	keyExprs []Expr
}

// Agg applies aggregation expressions per group.
func (lgb *LazyGroupBy) Agg(aggs ...Expr) *LazyFrame {
	return lgb.input.step(&planNode{
		kind:  planGroupBy,
		keys:  lgb.keyExprs,
		exprs: aggs,
	})
}

// Sum aggregates one column by sum, keeping its name.
func (lgb *LazyGroupBy) Sum(column string) *LazyFrame {
	return lgb.Agg(Col(column).Sum().Alias(column))
}

// Mean aggregates one column by mean, keeping its name.
func (lgb *LazyGroupBy) Mean(column string) *LazyFrame {
	return lgb.Agg(Col(column).Mean().Alias(column))
}

// Min aggregates one column by min, keeping its name.
func (lgb *LazyGroupBy) Min(column string) *LazyFrame {
	return lgb.Agg(Col(column).Min().Alias(column))
}

// Max aggregates one column by max, keeping its name.
func (lgb *LazyGroupBy) Max(column string) *LazyFrame {
	return lgb.Agg(Col(column).Max().Alias(column))
}

// Count counts rows per group into a "count" column.
func (lgb *LazyGroupBy) Count() *LazyFrame {
	return lgb.Agg(ExprCount().Alias("count"))
}

// planKind identifies a plan node operation.
type planKind int

const (
	planScan planKind = iota
	planScanCSV
	planScanParquet
	planScanJSON
	planProject
	planFilter
	planWithColumn
	planGroupBy
	planJoin
	planSort
	planLimit
	planTail
	planDistinct
	planPivot
	planMelt
	planCache
	planApply
)

var planKindNames = [...]string{
	planScan:        "Scan",
	planScanCSV:     "ScanCSV",
	planScanParquet: "ScanParquet",
	planScanJSON:    "ScanJSON",
	planProject:     "Project",
	planFilter:      "Filter",
	planWithColumn:  "WithColumn",
	planGroupBy:     "GroupBy",
	planJoin:        "Join",
	planSort:        "Sort",
	planLimit:       "Limit",
	planTail:        "Tail",
	planDistinct:    "Distinct",
	planPivot:       "Pivot",
	planMelt:        "Melt",
	planCache:       "Cache",
	planApply:       "Apply",
}

func (k planKind) String() string {
	if int(k) < len(planKindNames) {
		return planKindNames[k]
	}
	return "Unknown"
}

// planNode is one node of the staged query tree. Only the fields
// relevant to its kind are set.
type planNode struct {
	kind  planKind
	child *planNode // input (unary operations)
	right *planNode // right input (joins)

	// scan sources
	src      *DataFrame
	path     string
	csvOpts  []CSVReadOptions
	pqOpts   []ParquetReadOptions
	jsonOpts []JSONReadOptions

	// expressions: projections for Project, aggregations for GroupBy
	exprs []Expr
	keys  []Expr
	pred  Expr

	// with-column
	colName string
	colExpr Expr

	joinKind JoinType
	joinOpts JoinOptions

	sortCol string
	sortAsc bool

	n int // row count for Limit and Tail

	pivot PivotOptions
	melt  MeltOptions

	udfCol string
	udf    func(*Series) (*Series, error)
}

// shallowCopy clones the node itself; children are shared.
func (p *planNode) shallowCopy() *planNode {
	c := *p
	return &c
}

func (p *planNode) describe(sb *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		sb.WriteString("  ")
	}

	switch p.kind {
	case planScan:
		h, w := 0, 0
		if p.src != nil {
			h, w = p.src.Height(), p.src.Width()
		}
		fmt.Fprintf(sb, "%s [%d rows x %d cols]\n", p.kind, h, w)
	case planScanCSV, planScanParquet, planScanJSON:
		fmt.Fprintf(sb, "%s path=%q\n", p.kind, p.path)
	case planProject:
		fmt.Fprintf(sb, "%s %v\n", p.kind, p.exprs)
	case planFilter:
		fmt.Fprintf(sb, "%s %s\n", p.kind, p.pred)
	case planWithColumn:
		fmt.Fprintf(sb, "%s %s = %s\n", p.kind, p.colName, p.colExpr)
	case planGroupBy:
		fmt.Fprintf(sb, "%s keys=%v aggs=%v\n", p.kind, p.keys, p.exprs)
	case planJoin:
		fmt.Fprintf(sb, "%s type=%v on=%v\n", p.kind, p.joinKind, p.joinOpts.On)
	case planSort:
		fmt.Fprintf(sb, "%s col=%q asc=%v\n", p.kind, p.sortCol, p.sortAsc)
	case planLimit, planTail:
		fmt.Fprintf(sb, "%s n=%d\n", p.kind, p.n)
	case planPivot:
		fmt.Fprintf(sb, "%s index=%v column=%q values=%q agg=%s\n",
			p.kind, p.pivot.Index, p.pivot.Column, p.pivot.Values, p.pivot.Agg)
	case planMelt:
		fmt.Fprintf(sb, "%s id_vars=%v value_vars=%v var_name=%q value_name=%q\n",
			p.kind, p.melt.IDVars, p.melt.ValueVars, p.melt.VarName, p.melt.ValueName)
	case planApply:
		fmt.Fprintf(sb, "%s col=%q\n", p.kind, p.udfCol)
	default:
		fmt.Fprintf(sb, "%s\n", p.kind)
	}

	if p.child != nil {
		p.child.describe(sb, depth+1)
	}
	if p.right != nil {
		p.right.describe(sb, depth+1)
	}
}
