package caravel

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// FilterSpec is one comparison against a column, expressed as plain
// data so pipelines can be built from configuration at runtime.
// Several specs combine with AND.
type FilterSpec struct {
	Column string      `yaml:"column"`
	Op     string      `yaml:"op"` // eq, neq, gt, gte, lt, lte, contains
	Value  interface{} `yaml:"value"`
}

// AggSpec names one aggregate to compute: a function, a source column
// and an optional output name (empty means "<column>_<fn>").
type AggSpec struct {
	Fn     string `yaml:"fn"`
	Column string `yaml:"column"`
	As     string `yaml:"as,omitempty"`
}

// SummarySpec describes a filter, group and aggregate pipeline as plain
// data. Zero filters, zero grouping keys and a single aggregate are all
// valid; every combination flows through the same execution path.
type SummarySpec struct {
	Filters []FilterSpec `yaml:"filters,omitempty"`
	GroupBy []string     `yaml:"group_by,omitempty"`
	Aggs    []AggSpec    `yaml:"aggs"`
}

// Validate checks every column and function reference against the
// frame. All problems are reported together, not just the first.
func (spec *SummarySpec) Validate(df *DataFrame) error {
	var result *multierror.Error

	for i, f := range spec.Filters {
		if !df.HasColumn(f.Column) {
			result = multierror.Append(result, fmt.Errorf("filter %d: unknown column '%s' (available: %v)", i, f.Column, df.Columns()))
		}
		if _, err := filterOpToBinaryOp(f.Op); err != nil {
			result = multierror.Append(result, fmt.Errorf("filter %d: %w", i, err))
		}
	}
	for _, key := range spec.GroupBy {
		if !df.HasColumn(key) {
			result = multierror.Append(result, fmt.Errorf("unknown grouping column '%s' (available: %v)", key, df.Columns()))
		}
	}
	if len(spec.Aggs) == 0 {
		result = multierror.Append(result, fmt.Errorf("no aggregations given"))
	}
	for i, a := range spec.Aggs {
		if _, err := ParseAggType(a.Fn); err != nil {
			result = multierror.Append(result, fmt.Errorf("agg %d: %w", i, err))
		}
		if a.Column == "" && a.Fn != "count" {
			result = multierror.Append(result, fmt.Errorf("agg %d: %s requires a column", i, a.Fn))
		}
		if a.Column != "" && !df.HasColumn(a.Column) {
			result = multierror.Append(result, fmt.Errorf("agg %d: unknown column '%s' (available: %v)", i, a.Column, df.Columns()))
		}
	}
	return result.ErrorOrNil()
}

func filterOpToBinaryOp(op string) (BinaryOp, error) {
	switch op {
	case "eq":
		return OpEq, nil
	case "neq":
		return OpNeq, nil
	case "gt":
		return OpGt, nil
	case "gte":
		return OpGte, nil
	case "lt":
		return OpLt, nil
	case "lte":
		return OpLte, nil
	case "contains":
		// Handled by a string expression, not a binary op
		return 0, nil
	case "":
		return 0, fmt.Errorf("missing comparison operator")
	default:
		return 0, fmt.Errorf("unknown comparison operator %q", op)
	}
}

// predicate builds the filter expression for one spec
func (f FilterSpec) predicate() (Expr, error) {
	if f.Op == "contains" {
		substr, ok := f.Value.(string)
		if !ok {
			return nil, fmt.Errorf("contains filter on '%s' needs a string value, got %T", f.Column, f.Value)
		}
		return Col(f.Column).Str().Contains(substr), nil
	}
	op, err := filterOpToBinaryOp(f.Op)
	if err != nil {
		return nil, err
	}
	return &BinaryOpExpr{Left: Col(f.Column), Op: op, Right: Lit(normalizeLiteral(f.Value))}, nil
}

// normalizeLiteral widens YAML-decoded scalars to the types the
// expression evaluator handles
func normalizeLiteral(v interface{}) interface{} {
	switch val := v.(type) {
	case int:
		return int64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}

// Summarize runs the pipeline described by spec against the frame:
// filters first, then grouping, then aggregation. Validation errors
// are aggregated and reported before any work happens.
func Summarize(df *DataFrame, spec SummarySpec) (*DataFrame, error) {
	if err := spec.Validate(df); err != nil {
		return nil, err
	}

	lf := df.Lazy()
	for _, f := range spec.Filters {
		pred, err := f.predicate()
		if err != nil {
			return nil, err
		}
		lf = lf.Filter(pred)
	}

	aggExprs := make([]Expr, len(spec.Aggs))
	for i, a := range spec.Aggs {
		fn, err := ParseAggType(a.Fn)
		if err != nil {
			return nil, err
		}
		var agg Expr
		if a.Column == "" {
			agg = ExprCount()
		} else {
			agg = &AggExpr{Input: Col(a.Column), AggType: fn}
		}
		if a.As != "" {
			agg = &AliasExpr{Inner: agg, AliasName: a.As}
		}
		aggExprs[i] = agg
	}

	return lf.GroupBy(spec.GroupBy...).Agg(aggExprs...).Collect()
}
