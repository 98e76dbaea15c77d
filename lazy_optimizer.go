package caravel

import "fmt"

// optimize rewrites a staged plan before execution. Passes run in a
// fixed order: shared subexpressions are hoisted first so the later
// passes see the substituted column references, and adjacent filters
// are merged last after pushdown has moved them around.
func optimize(root *planNode) *planNode {
	p := hoistSharedExprs(root)
	p = sinkFilters(p)
	p = pruneColumns(p, nil)
	return mergeFilters(p)
}

// transformUp rebuilds the plan bottom-up, applying f to a shallow
// copy of each node after its inputs have been transformed.
func transformUp(p *planNode, f func(*planNode) *planNode) *planNode {
	if p == nil {
		return nil
	}
	c := p.shallowCopy()
	c.child = transformUp(p.child, f)
	c.right = transformUp(p.right, f)
	return f(c)
}

// sinkFilters moves filter nodes toward the data sources.
func sinkFilters(root *planNode) *planNode {
	return transformUp(root, func(p *planNode) *planNode {
		if p.kind == planFilter && p.child != nil {
			return sinkFilter(p)
		}
		return p
	})
}

// sinkFilter pushes one filter through the node below it where that
// is safe.
func sinkFilter(f *planNode) *planNode {
	below := f.child
	switch below.kind {
	case planFilter:
		merged := &BinaryOpExpr{Left: below.pred, Op: OpAnd, Right: f.pred}
		return &planNode{kind: planFilter, child: below.child, pred: merged}
	case planJoin:
		return sinkFilterIntoJoin(f, below, f.pred)
	case planProject:
		// projections may rename columns; stay above
		return f
	}
	return f
}

// sinkFilterIntoJoin pushes a predicate below a join when it reads
// columns from only one side. Conjunctions are split and each half
// pushed independently.
func sinkFilterIntoJoin(f, join *planNode, pred Expr) *planNode {
	refs := pred.columns()
	if len(refs) > 0 {
		left := availableColumns(join.child)
		right := availableColumns(join.right)
		onLeft, onRight := true, true
		for _, c := range refs {
			onLeft = onLeft && left[c]
			onRight = onRight && right[c]
		}
		if onLeft {
			j := join.shallowCopy()
			j.child = &planNode{kind: planFilter, child: join.child, pred: pred}
			return j
		}
		if onRight {
			j := join.shallowCopy()
			j.right = &planNode{kind: planFilter, child: join.right, pred: pred}
			return j
		}
	}

	if and, ok := pred.(*BinaryOpExpr); ok && and.Op == OpAnd {
		result := join
		lhs := &planNode{kind: planFilter, child: result, pred: and.Left}
		result = sinkFilterIntoJoin(lhs, result, and.Left)
		rhs := &planNode{kind: planFilter, child: result, pred: and.Right}
		return sinkFilterIntoJoin(rhs, result, and.Right)
	}

	// predicate mixes both sides; keep it above the join
	return f
}

// availableColumns reports the column names a subtree can produce.
// File scans return an empty set since their schema is unknown until
// execution, which keeps pushdown through them conservative.
func availableColumns(p *planNode) map[string]bool {
	cols := make(map[string]bool)
	if p == nil {
		return cols
	}

	switch p.kind {
	case planScan:
		if p.src != nil {
			for _, name := range p.src.Columns() {
				cols[name] = true
			}
		}
	case planScanCSV, planScanParquet, planScanJSON:
	case planWithColumn:
		cols = availableColumns(p.child)
		if a, ok := p.colExpr.(*AliasExpr); ok {
			cols[a.AliasName] = true
		}
	case planProject:
		for _, e := range p.exprs {
			switch x := e.(type) {
			case *AliasExpr:
				cols[x.AliasName] = true
			case *ColExpr:
				cols[x.Name] = true
			}
		}
	case planGroupBy:
		for _, k := range p.keys {
			if c, ok := k.(*ColExpr); ok {
				cols[c.Name] = true
			}
		}
		for _, a := range p.exprs {
			if al, ok := a.(*AliasExpr); ok {
				cols[al.AliasName] = true
			}
		}
	case planJoin:
		cols = availableColumns(p.child)
		suffix := p.joinOpts.Suffix
		if suffix == "" {
			suffix = "_right"
		}
		for c := range availableColumns(p.right) {
			if cols[c] {
				cols[c+suffix] = true
			} else {
				cols[c] = true
			}
		}
	default:
		cols = availableColumns(p.child)
	}
	return cols
}

// pruneColumns threads the set of columns each subtree must produce
// down toward the sources. Scans cannot narrow their schema before
// execution, so the needed set stops there.
func pruneColumns(p *planNode, needed map[string]bool) *planNode {
	if p == nil {
		return nil
	}
	c := p.shallowCopy()

	switch p.kind {
	case planScan, planScanCSV, planScanParquet, planScanJSON:
	case planProject:
		sub := make(map[string]bool)
		for _, e := range p.exprs {
			addColumns(sub, e)
		}
		c.child = pruneColumns(p.child, sub)
	case planFilter:
		sub := make(map[string]bool, len(needed))
		for k, v := range needed {
			sub[k] = v
		}
		addColumns(sub, p.pred)
		c.child = pruneColumns(p.child, sub)
	case planGroupBy:
		sub := make(map[string]bool)
		for _, k := range p.keys {
			addColumns(sub, k)
		}
		for _, e := range p.exprs {
			addColumns(sub, e)
		}
		c.child = pruneColumns(p.child, sub)
	default:
		c.child = pruneColumns(p.child, needed)
		c.right = pruneColumns(p.right, needed)
	}
	return c
}

func addColumns(set map[string]bool, e Expr) {
	for _, col := range e.columns() {
		set[col] = true
	}
}

// mergeFilters folds stacked filter nodes into one AND predicate.
func mergeFilters(root *planNode) *planNode {
	return transformUp(root, func(p *planNode) *planNode {
		if p.kind != planFilter || p.child == nil || p.child.kind != planFilter {
			return p
		}
		return &planNode{
			kind:  planFilter,
			child: p.child.child,
			pred:  &BinaryOpExpr{Left: p.child.pred, Op: OpAnd, Right: p.pred},
		}
	})
}

// sharedExpr tracks one subexpression that appears more than once in
// the plan.
type sharedExpr struct {
	expr  Expr
	key   string // String() rendering, used for equality
	count int
	col   string // synthesized column name, e.g. "__cse_0"
}

// hoistSharedExprs finds subexpressions used more than once,
// materializes each as a hidden column above the scan, and rewrites
// every use into a column reference.
func hoistSharedExprs(root *planNode) *planNode {
	seen := make(map[string]*sharedExpr)
	countExprs(root, seen)

	var shared []*sharedExpr
	for _, info := range seen {
		if info.count > 1 && worthHoisting(info.expr) {
			shared = append(shared, info)
		}
	}
	if len(shared) == 0 {
		return root
	}

	byKey := make(map[string]string, len(shared))
	for i, info := range shared {
		info.col = fmt.Sprintf("__cse_%d", i)
		byKey[info.key] = info.col
	}
	return hoistInto(root, shared, byKey)
}

func countExprs(p *planNode, seen map[string]*sharedExpr) {
	if p == nil {
		return
	}
	for _, e := range p.exprs {
		countExpr(e, seen)
	}
	for _, e := range p.keys {
		countExpr(e, seen)
	}
	if p.pred != nil {
		countExpr(p.pred, seen)
	}
	countExprs(p.child, seen)
	countExprs(p.right, seen)
}

func countExpr(e Expr, seen map[string]*sharedExpr) {
	key := e.String()
	if info, ok := seen[key]; ok {
		info.count++
	} else {
		seen[key] = &sharedExpr{expr: e, key: key, count: 1}
	}
	for _, c := range exprChildren(e) {
		countExpr(c, seen)
	}
}

// worthHoisting rejects expressions that are as cheap to re-evaluate
// as to look up. Aggregations are excluded because they only evaluate
// inside a GroupBy node.
func worthHoisting(e Expr) bool {
	switch x := e.(type) {
	case *ColExpr, *LitExpr, *AggExpr:
		return false
	case *AliasExpr:
		return worthHoisting(x.Inner)
	}
	return true
}

// hoistInto rewrites uses of shared expressions into column
// references and inserts the materializing nodes directly above each
// scan so every later node sees them.
func hoistInto(p *planNode, shared []*sharedExpr, byKey map[string]string) *planNode {
	if p == nil {
		return nil
	}
	c := p.shallowCopy()
	c.child = hoistInto(p.child, shared, byKey)
	c.right = hoistInto(p.right, shared, byKey)
	c.exprs = substituteAll(p.exprs, byKey)
	c.keys = substituteAll(p.keys, byKey)
	c.pred = substitute(p.pred, byKey)

	switch c.kind {
	case planScan, planScanCSV, planScanParquet, planScanJSON:
	default:
		return c
	}

	result := c
	for _, info := range shared {
		if !scanProvides(c, info.expr) {
			continue
		}
		result = &planNode{
			kind:    planWithColumn,
			child:   result,
			colName: info.col,
			colExpr: &AliasExpr{Inner: info.expr, AliasName: info.col},
		}
	}
	return result
}

// scanProvides reports whether the scan can supply every column the
// expression reads. File scans are assumed able; a missing column
// there surfaces as an execution error instead.
func scanProvides(scan *planNode, e Expr) bool {
	if scan.kind != planScan || scan.src == nil {
		return true
	}
	for _, col := range e.columns() {
		if !scan.src.HasColumn(col) {
			return false
		}
	}
	return true
}

func substituteAll(exprs []Expr, byKey map[string]string) []Expr {
	if exprs == nil {
		return nil
	}
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		out[i] = substitute(e, byKey)
	}
	return out
}

// substitute replaces any subexpression present in byKey with a
// reference to its hoisted column.
func substitute(e Expr, byKey map[string]string) Expr {
	if e == nil {
		return nil
	}
	if col, ok := byKey[e.String()]; ok {
		return Col(col)
	}
	switch x := e.(type) {
	case *BinaryOpExpr:
		return binop(substitute(x.Left, byKey), x.Op, substitute(x.Right, byKey))
	case *AliasExpr:
		return aliased(substitute(x.Inner, byKey), x.AliasName)
	case *AggExpr:
		return agg(substitute(x.Input, byKey), x.AggType)
	case *CastExpr:
		return &CastExpr{Inner: substitute(x.Inner, byKey), TargetType: x.TargetType}
	case *IsNullExpr:
		return &IsNullExpr{Input: substitute(x.Input, byKey)}
	case *IsNotNullExpr:
		return &IsNotNullExpr{Input: substitute(x.Input, byKey)}
	case *FillNullExpr:
		return &FillNullExpr{
			Input:     substitute(x.Input, byKey),
			FillValue: substitute(x.FillValue, byKey),
		}
	}
	return e
}
