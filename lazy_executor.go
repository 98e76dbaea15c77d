package caravel

import (
	"fmt"
	"strings"
)

// runPlan executes an optimized plan tree. Source and binary nodes
// dispatch first; every other kind runs over its child's result.
func runPlan(p *planNode) (*DataFrame, error) {
	if p == nil {
		return NewDataFrame()
	}

	switch p.kind {
	case planScan:
		if p.src == nil {
			return NewDataFrame()
		}
		return p.src, nil
	case planScanCSV:
		return ReadCSV(p.path, p.csvOpts...)
	case planScanParquet:
		return ReadParquet(p.path, p.pqOpts...)
	case planScanJSON:
		return ReadJSON(p.path, p.jsonOpts...)
	case planCache:
		return runCache(p)
	case planJoin:
		return runJoin(p)
	}

	df, err := runPlan(p.child)
	if err != nil {
		return nil, err
	}

	switch p.kind {
	case planProject:
		return df.Select(p.exprs...)
	case planFilter:
		return runFilter(p.pred, df)
	case planWithColumn:
		col, err := evaluateExpr(p.colExpr, df)
		if err != nil {
			return nil, fmt.Errorf("with_column error: %w", err)
		}
		return df.WithColumnSeries(col)
	case planGroupBy:
		return runGroupBy(p, df)
	case planSort:
		return df.SortBy(p.sortCol, p.sortAsc)
	case planLimit:
		return df.Head(p.n), nil
	case planTail:
		return df.Tail(p.n), nil
	case planDistinct:
		return df.Distinct()
	case planPivot:
		return df.Pivot(p.pivot)
	case planMelt:
		return df.Melt(p.melt)
	case planApply:
		return runApply(p, df)
	}
	return nil, fmt.Errorf("unknown plan operation: %v", p.kind)
}

func runFilter(pred Expr, df *DataFrame) (*DataFrame, error) {
	mask, err := evaluatePredicate(pred, df)
	if err != nil {
		return nil, fmt.Errorf("filter error: %w", err)
	}
	out, err := df.FilterByMask(mask.Data)
	mask.Release()
	return out, err
}

func runGroupBy(p *planNode, df *DataFrame) (*DataFrame, error) {
	keys := make([]string, len(p.keys))
	for i, k := range p.keys {
		col, ok := k.(*ColExpr)
		if !ok {
			return nil, fmt.Errorf("groupby keys must be column references")
		}
		keys[i] = col.Name
	}

	aggs := make([]Aggregation, 0, len(p.exprs))
	for _, e := range p.exprs {
		a, err := aggregationFor(e)
		if err != nil {
			return nil, fmt.Errorf("aggregation error: %w", err)
		}
		aggs = append(aggs, a)
	}
	return df.GroupBy(keys...).Agg(aggs...)
}

// aggregationFor lowers an aggregation expression into the eager
// group-by form. A literal input stands for count(*).
func aggregationFor(e Expr) (Aggregation, error) {
	switch x := e.(type) {
	case *AliasExpr:
		inner, err := aggregationFor(x.Inner)
		if err != nil {
			return Aggregation{}, err
		}
		return inner.Alias(x.AliasName), nil

	case *AggExpr:
		if x.AggType <= AggTypeNone || int(x.AggType) >= len(aggTypeNames) {
			return Aggregation{}, fmt.Errorf("unknown aggregation type")
		}
		if _, ok := x.Input.(*LitExpr); ok {
			if x.AggType != AggTypeCount {
				return Aggregation{}, fmt.Errorf("aggregation input must be a column")
			}
			return AggCount(), nil
		}
		col, ok := x.Input.(*ColExpr)
		if !ok {
			return Aggregation{}, fmt.Errorf("aggregation input must be a column")
		}
		return Aggregation{Column: col.Name, Type: x.AggType}, nil
	}
	return Aggregation{}, fmt.Errorf("expected aggregation expression, got %T", e)
}

func runJoin(p *planNode) (*DataFrame, error) {
	left, err := runPlan(p.child)
	if err != nil {
		return nil, err
	}
	right, err := runPlan(p.right)
	if err != nil {
		return nil, err
	}

	switch p.joinKind {
	case InnerJoin:
		return left.Join(right, p.joinOpts)
	case LeftJoin:
		return left.LeftJoin(right, p.joinOpts)
	}
	return nil, fmt.Errorf("unsupported join type: %v", p.joinKind)
}

func runApply(p *planNode, df *DataFrame) (*DataFrame, error) {
	if p.udf == nil {
		return nil, fmt.Errorf("apply function is nil")
	}
	col := df.ColumnByName(p.udfCol)
	if col == nil {
		return nil, fmt.Errorf("column '%s' not found", p.udfCol)
	}
	out, err := p.udf(col)
	if err != nil {
		return nil, fmt.Errorf("apply function error: %w", err)
	}
	return df.WithColumnSeries(out.Rename(p.udfCol))
}

// cachedPlans memoizes Cache node results, keyed by the node below the
// cache marker.
var cachedPlans = make(map[*planNode]*DataFrame)

func runCache(p *planNode) (*DataFrame, error) {
	if df, ok := cachedPlans[p.child]; ok {
		return df, nil
	}
	df, err := runPlan(p.child)
	if err != nil {
		return nil, err
	}
	cachedPlans[p.child] = df
	return df, nil
}

// ClearCache drops every result memoized by Cache nodes.
func ClearCache() {
	cachedPlans = make(map[*planNode]*DataFrame)
}

// evaluateExpr evaluates an expression against a frame, returning one
// series of the frame's height.
func evaluateExpr(expr Expr, df *DataFrame) (*Series, error) {
	switch e := expr.(type) {
	case *ColExpr:
		col := df.ColumnByName(e.Name)
		if col == nil {
			return nil, fmt.Errorf("column '%s' not found (available: %v)", e.Name, df.Columns())
		}
		return col, nil

	case *LitExpr:
		return broadcastLiteral("literal", e.Value, df.Height())

	case *AliasExpr:
		col, err := evaluateExpr(e.Inner, df)
		if err != nil {
			return nil, err
		}
		return col.Rename(e.AliasName), nil

	case *BinaryOpExpr:
		return evalBinary(e, df)

	case *CastExpr:
		col, err := evaluateExpr(e.Inner, df)
		if err != nil {
			return nil, err
		}
		return col.Cast(e.TargetType)

	case *StrExpr:
		return evalStr(e, df)

	case *IsNullExpr:
		return validityMask(e.Input, df, false)

	case *IsNotNullExpr:
		return validityMask(e.Input, df, true)

	case *FillNullExpr:
		return evalFillNull(e, df)

	case *CoalesceExpr:
		return evalCoalesce(e, df)

	case *WhenExpr:
		return evalWhen(e, df)

	case *allColsExpr:
		return nil, fmt.Errorf("cannot evaluate * directly; use in Select")
	}
	return nil, fmt.Errorf("cannot evaluate expression type: %T", expr)
}

// validityMask evaluates the input and maps each row's validity to a
// bool series. want=true yields is_not_null, want=false is_null.
func validityMask(input Expr, df *DataFrame, want bool) (*Series, error) {
	col, err := evaluateExpr(input, df)
	if err != nil {
		return nil, err
	}
	out := make([]bool, col.Len())
	for i := range out {
		out[i] = col.IsValid(i) == want
	}
	return NewSeriesBool(col.Name(), out), nil
}

func evalBinary(expr *BinaryOpExpr, df *DataFrame) (*Series, error) {
	left, err := evaluateExpr(expr.Left, df)
	if err != nil {
		return nil, err
	}

	// column-against-literal avoids materializing the right side
	if lit, ok := expr.Right.(*LitExpr); ok {
		return evalScalar(left, expr.Op, lit.Value)
	}

	right, err := evaluateExpr(expr.Right, df)
	if err != nil {
		return nil, err
	}
	return evalVector(left, expr.Op, right)
}

func evalScalar(col *Series, op BinaryOp, scalar interface{}) (*Series, error) {
	if s, ok := scalar.(string); ok {
		if !col.DType().IsTextual() {
			return nil, fmt.Errorf("cannot compare %s column '%s' against string %q", col.DType(), col.Name(), s)
		}
		texts := col.Strings()
		out := make([]bool, len(texts))
		for i, v := range texts {
			if !col.IsValid(i) {
				continue
			}
			keep, err := cmpStrings(v, op, s)
			if err != nil {
				return nil, err
			}
			out[i] = keep
		}
		return NewSeriesBool(col.Name(), out), nil
	}

	x, ok := lazyToFloat64(scalar)
	if !ok {
		return nil, fmt.Errorf("cannot compare column '%s' against %T scalar", col.Name(), scalar)
	}

	switch op {
	case OpAdd:
		return col.Add(x), nil
	case OpSub:
		return col.Add(-x), nil
	case OpMul:
		return col.Mul(x), nil
	case OpDiv:
		return col.Mul(1.0 / x), nil
	case OpGt, OpLt, OpGte, OpLte, OpEq, OpNeq:
		data := col.toFloat64()
		if data == nil {
			return nil, fmt.Errorf("comparison not supported for type %s", col.DType())
		}
		out := make([]bool, len(data))
		for i, v := range data {
			if col.IsValid(i) {
				out[i] = cmpFloats(v, op, x)
			}
		}
		return NewSeriesBool(col.Name(), out), nil
	}
	return nil, fmt.Errorf("unsupported scalar operation: %s", op)
}

func cmpFloats(a float64, op BinaryOp, b float64) bool {
	switch op {
	case OpGt:
		return a > b
	case OpLt:
		return a < b
	case OpGte:
		return a >= b
	case OpLte:
		return a <= b
	case OpEq:
		return a == b
	case OpNeq:
		return a != b
	}
	return false
}

func cmpStrings(a string, op BinaryOp, b string) (bool, error) {
	switch op {
	case OpEq:
		return a == b, nil
	case OpNeq:
		return a != b, nil
	case OpGt:
		return a > b, nil
	case OpGte:
		return a >= b, nil
	case OpLt:
		return a < b, nil
	case OpLte:
		return a <= b, nil
	}
	return false, fmt.Errorf("unsupported string operation: %s", op)
}

func evalVector(left *Series, op BinaryOp, right *Series) (*Series, error) {
	if left.Len() != right.Len() {
		return nil, fmt.Errorf("series length mismatch: %d vs %d", left.Len(), right.Len())
	}
	n := left.Len()

	if left.DType().IsTextual() && right.DType().IsTextual() {
		ls, rs := left.Strings(), right.Strings()
		out := make([]bool, n)
		for i := range out {
			if !left.IsValid(i) || !right.IsValid(i) {
				continue
			}
			keep, err := cmpStrings(ls[i], op, rs[i])
			if err != nil {
				return nil, err
			}
			out[i] = keep
		}
		return NewSeriesBool(left.Name(), out), nil
	}

	if !left.DType().IsNumeric() && left.DType() != Bool {
		return nil, fmt.Errorf("vector operation %s not supported for %s", op, left.DType())
	}
	ld, rd := left.toFloat64(), right.toFloat64()
	if ld == nil || rd == nil {
		return nil, fmt.Errorf("vector operations require numeric types")
	}

	switch op {
	case OpAdd, OpSub, OpMul, OpDiv:
		out := make([]float64, n)
		for i := range out {
			switch op {
			case OpAdd:
				out[i] = ld[i] + rd[i]
			case OpSub:
				out[i] = ld[i] - rd[i]
			case OpMul:
				out[i] = ld[i] * rd[i]
			case OpDiv:
				out[i] = ld[i] / rd[i]
			}
		}
		return NewSeriesFloat64(left.Name(), out), nil

	case OpGt, OpGte, OpLt, OpLte, OpEq, OpNeq:
		out := make([]bool, n)
		for i := range out {
			out[i] = cmpFloats(ld[i], op, rd[i])
		}
		return NewSeriesBool(left.Name(), out), nil

	case OpAnd:
		out := make([]bool, n)
		for i := range out {
			out[i] = ld[i] != 0 && rd[i] != 0
		}
		return NewSeriesBool(left.Name(), out), nil

	case OpOr:
		out := make([]bool, n)
		for i := range out {
			out[i] = ld[i] != 0 || rd[i] != 0
		}
		return NewSeriesBool(left.Name(), out), nil
	}
	return nil, fmt.Errorf("unsupported vector operation: %s", op)
}

// evalStr applies a vectorized string operation.
func evalStr(e *StrExpr, df *DataFrame) (*Series, error) {
	col, err := evaluateExpr(e.Input, df)
	if err != nil {
		return nil, err
	}
	if !col.DType().IsTextual() {
		return nil, fmt.Errorf("str.%s requires a string column, '%s' is %s", e.Op, col.Name(), col.DType())
	}

	var pattern Pattern
	if e.Regex {
		pattern, err = Regex(e.Pattern)
		if err != nil {
			return nil, err
		}
	} else {
		pattern = Literal(e.Pattern)
	}

	texts := col.Strings()
	switch e.Op {
	case StrOpContains, StrOpMatch:
		return col.StrDetect(pattern)
	case StrOpCount:
		return col.StrCount(pattern)
	case StrOpExtract:
		return col.StrExtract(pattern)
	case StrOpReplaceAll:
		return col.StrReplaceAll(pattern, e.Repl)

	case StrOpStartsWith, StrOpEndsWith:
		out := make([]bool, len(texts))
		for i, t := range texts {
			if e.Op == StrOpStartsWith {
				out[i] = strings.HasPrefix(t, e.Pattern)
			} else {
				out[i] = strings.HasSuffix(t, e.Pattern)
			}
		}
		return NewSeriesBoolWithNulls(col.Name(), out, col.validitySlice()), nil

	case StrOpReplace:
		out, err := StrReplace(texts, []Pattern{pattern}, e.Repl)
		if err != nil {
			return nil, err
		}
		return NewSeriesStringWithNulls(col.Name(), out, col.validitySlice()), nil

	case StrOpLower:
		return NewSeriesStringWithNulls(col.Name(), StrLower(texts), col.validitySlice()), nil
	case StrOpUpper:
		return NewSeriesStringWithNulls(col.Name(), StrUpper(texts), col.validitySlice()), nil
	case StrOpTrim:
		return NewSeriesStringWithNulls(col.Name(), StrTrim(texts), col.validitySlice()), nil

	case StrOpLength:
		lens := StrLength(texts)
		out := make([]int64, len(lens))
		for i, n := range lens {
			out[i] = int64(n)
		}
		return NewSeriesInt64WithNulls(col.Name(), out, col.validitySlice()), nil
	}
	return nil, fmt.Errorf("unsupported string operation: %s", e.Op)
}

func evalFillNull(e *FillNullExpr, df *DataFrame) (*Series, error) {
	col, err := evaluateExpr(e.Input, df)
	if err != nil {
		return nil, err
	}
	if !col.HasNulls() {
		return col, nil
	}
	fill, err := evaluateExpr(e.FillValue, df)
	if err != nil {
		return nil, err
	}

	out := make([]interface{}, col.Len())
	for i := range out {
		if col.IsValid(i) {
			out[i] = col.Get(i)
		} else {
			out[i] = fill.Get(i)
		}
	}
	return seriesFromBoxed(col.Name(), col.DType(), out)
}

func evalCoalesce(e *CoalesceExpr, df *DataFrame) (*Series, error) {
	if len(e.Inputs) == 0 {
		return nil, fmt.Errorf("coalesce requires at least one input")
	}
	cols := make([]*Series, len(e.Inputs))
	for i, input := range e.Inputs {
		col, err := evaluateExpr(input, df)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}

	out := make([]interface{}, cols[0].Len())
	for i := range out {
		for _, col := range cols {
			if col.IsValid(i) {
				out[i] = col.Get(i)
				break
			}
		}
	}
	return seriesFromBoxed(cols[0].Name(), cols[0].DType(), out)
}

func evalWhen(e *WhenExpr, df *DataFrame) (*Series, error) {
	cond, err := evaluateExpr(e.Condition, df)
	if err != nil {
		return nil, err
	}
	if cond.DType() != Bool {
		return nil, fmt.Errorf("when condition must be bool, got %s", cond.DType())
	}
	thenCol, err := evaluateExpr(e.ThenExpr, df)
	if err != nil {
		return nil, err
	}
	var elseCol *Series
	if e.Otherwise != nil {
		elseCol, err = evaluateExpr(e.Otherwise, df)
		if err != nil {
			return nil, err
		}
	}

	mask := cond.Bool()
	out := make([]interface{}, cond.Len())
	for i := range out {
		switch {
		case cond.IsValid(i) && mask[i]:
			out[i] = thenCol.Get(i)
		case elseCol != nil:
			out[i] = elseCol.Get(i)
		}
	}
	return seriesFromBoxed(thenCol.Name(), thenCol.DType(), out)
}

// seriesFromBoxed rebuilds a typed series from boxed row values.
// nil entries become nulls.
func seriesFromBoxed(name string, dtype DType, values []interface{}) (*Series, error) {
	n := len(values)
	valid := make([]bool, n)
	hasNull := false
	for i, v := range values {
		valid[i] = v != nil
		hasNull = hasNull || v == nil
	}

	switch dtype {
	case Float64, Float32, Int64, Int32:
		data := make([]float64, n)
		for i, v := range values {
			if v == nil {
				continue
			}
			f, ok := lazyToFloat64(v)
			if !ok {
				return nil, fmt.Errorf("value %v (%T) is not numeric", v, v)
			}
			data[i] = f
		}
		s := NewSeriesFloat64(name, data)
		if hasNull {
			s.valid = valid
		}
		return s.Cast(dtype)

	case Bool:
		data := make([]bool, n)
		for i, v := range values {
			if b, ok := v.(bool); ok {
				data[i] = b
			}
		}
		if hasNull {
			return NewSeriesBoolWithNulls(name, data, valid), nil
		}
		return NewSeriesBool(name, data), nil

	case String, Categorical:
		data := make([]string, n)
		for i, v := range values {
			if s, ok := v.(string); ok {
				data[i] = s
			}
		}
		if hasNull {
			return NewSeriesStringWithNulls(name, data, valid), nil
		}
		return NewSeriesString(name, data), nil
	}
	return nil, fmt.Errorf("cannot rebuild %s series from values", dtype)
}

// evaluatePredicate evaluates a predicate and returns a pooled byte
// mask. The caller owns the mask and must Release it. Null condition
// rows filter out.
func evaluatePredicate(expr Expr, df *DataFrame) (*ByteMask, error) {
	col, err := evaluateExpr(expr, df)
	if err != nil {
		return nil, err
	}
	if col.DType() != Bool {
		return nil, fmt.Errorf("predicate must evaluate to bool, got %s", col.DType())
	}

	bools := col.Bool()
	mask := getByteMask(len(bools))
	for i, v := range bools {
		if v && col.IsValid(i) {
			mask.Data[i] = 1
		}
	}
	return mask, nil
}

func broadcastLiteral(name string, value interface{}, length int) (*Series, error) {
	switch v := value.(type) {
	case float64:
		data := make([]float64, length)
		for i := range data {
			data[i] = v
		}
		return NewSeriesFloat64(name, data), nil
	case int64, int:
		x, _ := lazyToFloat64(v)
		data := make([]int64, length)
		for i := range data {
			data[i] = int64(x)
		}
		return NewSeriesInt64(name, data), nil
	case bool:
		data := make([]bool, length)
		for i := range data {
			data[i] = v
		}
		return NewSeriesBool(name, data), nil
	case string:
		data := make([]string, length)
		for i := range data {
			data[i] = v
		}
		return NewSeriesString(name, data), nil
	}
	return nil, fmt.Errorf("unsupported literal type: %T", value)
}

func lazyToFloat64(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int:
		return float64(x), true
	}
	return 0, false
}
