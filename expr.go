package caravel

import (
	"fmt"
	"strings"
)

// Expr is a node in a lazy expression tree. Expressions are built
// eagerly but only evaluated against a frame during Collect.
type Expr interface {
	// String renders the expression for plan output.
	String() string

	// Clone deep-copies the expression.
	Clone() Expr

	// columns lists every column name the expression reads.
	columns() []string
}

// binop, agg and aliased are the shared constructors behind the
// chainable expression methods.
func binop(left Expr, op BinaryOp, right Expr) *BinaryOpExpr {
	return &BinaryOpExpr{Left: left, Op: op, Right: right}
}

func agg(input Expr, t AggType) *AggExpr {
	return &AggExpr{Input: input, AggType: t}
}

func aliased(inner Expr, name string) *AliasExpr {
	return &AliasExpr{Inner: inner, AliasName: name}
}

// exprChildren returns the direct child expressions of e. The
// optimizer walks trees through this instead of per-type switches.
func exprChildren(e Expr) []Expr {
	switch x := e.(type) {
	case *BinaryOpExpr:
		return []Expr{x.Left, x.Right}
	case *AliasExpr:
		return []Expr{x.Inner}
	case *AggExpr:
		return []Expr{x.Input}
	case *CastExpr:
		return []Expr{x.Inner}
	case *IsNullExpr:
		return []Expr{x.Input}
	case *IsNotNullExpr:
		return []Expr{x.Input}
	case *FillNullExpr:
		return []Expr{x.Input, x.FillValue}
	case *CoalesceExpr:
		return x.Inputs
	case *StrExpr:
		return []Expr{x.Input}
	case *WhenExpr:
		if x.Otherwise != nil {
			return []Expr{x.Condition, x.ThenExpr, x.Otherwise}
		}
		return []Expr{x.Condition, x.ThenExpr}
	default:
		return nil
	}
}

// BinaryOp enumerates the arithmetic, comparison and logical operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpGt
	OpLt
	OpEq
	OpNeq
	OpGte
	OpLte
	OpAnd
	OpOr
)

var binaryOpSymbols = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
	OpGt: ">", OpLt: "<", OpEq: "==", OpNeq: "!=",
	OpGte: ">=", OpLte: "<=", OpAnd: "and", OpOr: "or",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpSymbols) {
		return binaryOpSymbols[op]
	}
	return "?"
}

// AggType enumerates the aggregation functions. The zero value means
// no aggregation.
type AggType int

const (
	AggTypeNone AggType = iota
	AggTypeSum
	AggTypeMean
	AggTypeMin
	AggTypeMax
	AggTypeCount
	AggTypeFirst
	AggTypeLast
	AggTypeStd
	AggTypeVar
	AggTypeMedian
)

var aggTypeNames = [...]string{
	AggTypeNone: "none", AggTypeSum: "sum", AggTypeMean: "mean",
	AggTypeMin: "min", AggTypeMax: "max", AggTypeCount: "count",
	AggTypeFirst: "first", AggTypeLast: "last", AggTypeStd: "std",
	AggTypeVar: "var", AggTypeMedian: "median",
}

func (t AggType) String() string {
	if int(t) < len(aggTypeNames) {
		return aggTypeNames[t]
	}
	return "?"
}

var aggTypesByName = map[string]AggType{
	"sum": AggTypeSum, "mean": AggTypeMean, "avg": AggTypeMean,
	"min": AggTypeMin, "max": AggTypeMax, "count": AggTypeCount,
	"first": AggTypeFirst, "last": AggTypeLast, "std": AggTypeStd,
	"var": AggTypeVar, "median": AggTypeMedian,
}

// ParseAggType resolves an aggregation function by name.
func ParseAggType(name string) (AggType, error) {
	if t, ok := aggTypesByName[name]; ok {
		return t, nil
	}
	return AggTypeNone, fmt.Errorf("unknown aggregation function %q", name)
}

// ColExpr reads a named column.
type ColExpr struct {
	Name string
}

// Col references a column by name.
func Col(name string) *ColExpr { return &ColExpr{Name: name} }

func (e *ColExpr) String() string    { return fmt.Sprintf("col(%q)", e.Name) }
func (e *ColExpr) Clone() Expr       { return &ColExpr{Name: e.Name} }
func (e *ColExpr) columns() []string { return []string{e.Name} }

func (e *ColExpr) Add(other Expr) *BinaryOpExpr { return binop(e, OpAdd, other) }
func (e *ColExpr) Sub(other Expr) *BinaryOpExpr { return binop(e, OpSub, other) }
func (e *ColExpr) Mul(other Expr) *BinaryOpExpr { return binop(e, OpMul, other) }
func (e *ColExpr) Div(other Expr) *BinaryOpExpr { return binop(e, OpDiv, other) }

func (e *ColExpr) Gt(other Expr) *BinaryOpExpr  { return binop(e, OpGt, other) }
func (e *ColExpr) Lt(other Expr) *BinaryOpExpr  { return binop(e, OpLt, other) }
func (e *ColExpr) Eq(other Expr) *BinaryOpExpr  { return binop(e, OpEq, other) }
func (e *ColExpr) Neq(other Expr) *BinaryOpExpr { return binop(e, OpNeq, other) }
func (e *ColExpr) Gte(other Expr) *BinaryOpExpr { return binop(e, OpGte, other) }
func (e *ColExpr) Lte(other Expr) *BinaryOpExpr { return binop(e, OpLte, other) }

func (e *ColExpr) And(other Expr) *BinaryOpExpr { return binop(e, OpAnd, other) }
func (e *ColExpr) Or(other Expr) *BinaryOpExpr  { return binop(e, OpOr, other) }

func (e *ColExpr) Sum() *AggExpr    { return agg(e, AggTypeSum) }
func (e *ColExpr) Mean() *AggExpr   { return agg(e, AggTypeMean) }
func (e *ColExpr) Min() *AggExpr    { return agg(e, AggTypeMin) }
func (e *ColExpr) Max() *AggExpr    { return agg(e, AggTypeMax) }
func (e *ColExpr) Count() *AggExpr  { return agg(e, AggTypeCount) }
func (e *ColExpr) First() *AggExpr  { return agg(e, AggTypeFirst) }
func (e *ColExpr) Last() *AggExpr   { return agg(e, AggTypeLast) }
func (e *ColExpr) Std() *AggExpr    { return agg(e, AggTypeStd) }
func (e *ColExpr) Var() *AggExpr    { return agg(e, AggTypeVar) }
func (e *ColExpr) Median() *AggExpr { return agg(e, AggTypeMedian) }

// Alias renames the column in the output.
func (e *ColExpr) Alias(name string) *AliasExpr { return aliased(e, name) }

// Cast converts the column to another dtype.
func (e *ColExpr) Cast(dtype DType) *CastExpr {
	return &CastExpr{Inner: e, TargetType: dtype}
}

func (e *ColExpr) IsNull() *IsNullExpr       { return &IsNullExpr{Input: e} }
func (e *ColExpr) IsNotNull() *IsNotNullExpr { return &IsNotNullExpr{Input: e} }

func (e *ColExpr) FillNull(value Expr) *FillNullExpr {
	return &FillNullExpr{Input: e, FillValue: value}
}

func (e *ColExpr) FillNullLit(value interface{}) *FillNullExpr {
	return e.FillNull(Lit(value))
}

// LitExpr holds a constant broadcast across all rows.
type LitExpr struct {
	Value interface{}
}

// Lit wraps a constant value.
func Lit(value interface{}) *LitExpr { return &LitExpr{Value: value} }

func (e *LitExpr) String() string    { return fmt.Sprintf("lit(%v)", e.Value) }
func (e *LitExpr) Clone() Expr       { return &LitExpr{Value: e.Value} }
func (e *LitExpr) columns() []string { return nil }

// AliasExpr renames the result of its inner expression.
type AliasExpr struct {
	Inner     Expr
	AliasName string
}

func (e *AliasExpr) String() string    { return fmt.Sprintf("%s.alias(%q)", e.Inner, e.AliasName) }
func (e *AliasExpr) Clone() Expr       { return aliased(e.Inner.Clone(), e.AliasName) }
func (e *AliasExpr) columns() []string { return e.Inner.columns() }

// BinaryOpExpr combines two expressions with one operator.
type BinaryOpExpr struct {
	Left  Expr
	Op    BinaryOp
	Right Expr
}

func (e *BinaryOpExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

func (e *BinaryOpExpr) Clone() Expr {
	return binop(e.Left.Clone(), e.Op, e.Right.Clone())
}

func (e *BinaryOpExpr) columns() []string {
	return append(e.Left.columns(), e.Right.columns()...)
}

func (e *BinaryOpExpr) And(other Expr) *BinaryOpExpr { return binop(e, OpAnd, other) }
func (e *BinaryOpExpr) Or(other Expr) *BinaryOpExpr  { return binop(e, OpOr, other) }
func (e *BinaryOpExpr) Alias(name string) *AliasExpr { return aliased(e, name) }

// AggExpr reduces its input with an aggregation function.
type AggExpr struct {
	Input   Expr
	AggType AggType
}

func (e *AggExpr) String() string    { return fmt.Sprintf("%s.%s()", e.Input, e.AggType) }
func (e *AggExpr) Clone() Expr       { return agg(e.Input.Clone(), e.AggType) }
func (e *AggExpr) columns() []string { return e.Input.columns() }

func (e *AggExpr) Alias(name string) *AliasExpr { return aliased(e, name) }

// ExprCount builds a row-count aggregation that needs no input column.
func ExprCount() *AggExpr {
	return agg(Lit(1), AggTypeCount)
}

// CastExpr converts its input to a target dtype.
type CastExpr struct {
	Inner      Expr
	TargetType DType
}

func (e *CastExpr) String() string {
	return fmt.Sprintf("%s.cast(%s)", e.Inner, e.TargetType)
}

func (e *CastExpr) Clone() Expr {
	return &CastExpr{Inner: e.Inner.Clone(), TargetType: e.TargetType}
}

func (e *CastExpr) columns() []string { return e.Inner.columns() }

func (e *CastExpr) Alias(name string) *AliasExpr { return aliased(e, name) }

// allColsExpr selects every column; only meaningful inside Select.
type allColsExpr struct{}

// AllCols selects all columns (*).
func AllCols() *allColsExpr { return &allColsExpr{} }

func (e *allColsExpr) String() string    { return "*" }
func (e *allColsExpr) Clone() Expr       { return &allColsExpr{} }
func (e *allColsExpr) columns() []string { return nil }

// WhenExpr picks ThenExpr where Condition holds, and Otherwise (or
// null when nil) elsewhere.
type WhenExpr struct {
	Condition Expr
	ThenExpr  Expr
	Otherwise Expr
}

func (e *WhenExpr) String() string {
	if e.Otherwise == nil {
		return fmt.Sprintf("when(%s).then(%s)", e.Condition, e.ThenExpr)
	}
	return fmt.Sprintf("when(%s).then(%s).otherwise(%s)", e.Condition, e.ThenExpr, e.Otherwise)
}

func (e *WhenExpr) Clone() Expr {
	c := &WhenExpr{Condition: e.Condition.Clone(), ThenExpr: e.ThenExpr.Clone()}
	if e.Otherwise != nil {
		c.Otherwise = e.Otherwise.Clone()
	}
	return c
}

func (e *WhenExpr) columns() []string {
	cols := append(e.Condition.columns(), e.ThenExpr.columns()...)
	if e.Otherwise != nil {
		cols = append(cols, e.Otherwise.columns()...)
	}
	return cols
}

func (e *WhenExpr) Alias(name string) *AliasExpr { return aliased(e, name) }

// WhenBuilder carries the condition of a when/then chain.
type WhenBuilder struct {
	condition Expr
}

// When starts a conditional expression.
func When(condition Expr) *WhenBuilder {
	return &WhenBuilder{condition: condition}
}

// Then sets the value where the condition holds.
func (w *WhenBuilder) Then(value Expr) *ThenBuilder {
	return &ThenBuilder{condition: w.condition, thenValue: value}
}

// ThenBuilder carries a condition and its then-value until the
// otherwise clause closes the expression.
type ThenBuilder struct {
	condition Expr
	thenValue Expr
}

// Otherwise sets the value where the condition fails.
func (t *ThenBuilder) Otherwise(value Expr) *WhenExpr {
	return &WhenExpr{Condition: t.condition, ThenExpr: t.thenValue, Otherwise: value}
}

// OtherwiseLit is Otherwise with a literal value.
func (t *ThenBuilder) OtherwiseLit(value interface{}) *WhenExpr {
	return t.Otherwise(Lit(value))
}

// OtherwiseNull yields null where the condition fails.
func (t *ThenBuilder) OtherwiseNull() *WhenExpr {
	return &WhenExpr{Condition: t.condition, ThenExpr: t.thenValue}
}

// IsNullExpr tests rows for null.
type IsNullExpr struct {
	Input Expr
}

func (e *IsNullExpr) String() string    { return fmt.Sprintf("%s.is_null()", e.Input) }
func (e *IsNullExpr) Clone() Expr       { return &IsNullExpr{Input: e.Input.Clone()} }
func (e *IsNullExpr) columns() []string { return e.Input.columns() }

func (e *IsNullExpr) Alias(name string) *AliasExpr { return aliased(e, name) }

// IsNotNullExpr tests rows for non-null.
type IsNotNullExpr struct {
	Input Expr
}

func (e *IsNotNullExpr) String() string    { return fmt.Sprintf("%s.is_not_null()", e.Input) }
func (e *IsNotNullExpr) Clone() Expr       { return &IsNotNullExpr{Input: e.Input.Clone()} }
func (e *IsNotNullExpr) columns() []string { return e.Input.columns() }

func (e *IsNotNullExpr) Alias(name string) *AliasExpr { return aliased(e, name) }

// FillNullExpr substitutes FillValue on null rows of Input.
type FillNullExpr struct {
	Input     Expr
	FillValue Expr
}

func (e *FillNullExpr) String() string {
	return fmt.Sprintf("%s.fill_null(%s)", e.Input, e.FillValue)
}

func (e *FillNullExpr) Clone() Expr {
	return &FillNullExpr{Input: e.Input.Clone(), FillValue: e.FillValue.Clone()}
}

func (e *FillNullExpr) columns() []string {
	return append(e.Input.columns(), e.FillValue.columns()...)
}

func (e *FillNullExpr) Alias(name string) *AliasExpr { return aliased(e, name) }

// CoalesceExpr picks each row's first non-null value across Inputs.
type CoalesceExpr struct {
	Inputs []Expr
}

// Coalesce returns the first non-null value per row.
func Coalesce(exprs ...Expr) *CoalesceExpr {
	return &CoalesceExpr{Inputs: exprs}
}

func (e *CoalesceExpr) String() string {
	parts := make([]string, len(e.Inputs))
	for i, in := range e.Inputs {
		parts[i] = in.String()
	}
	return "coalesce(" + strings.Join(parts, ", ") + ")"
}

func (e *CoalesceExpr) Clone() Expr {
	inputs := make([]Expr, len(e.Inputs))
	for i, in := range e.Inputs {
		inputs[i] = in.Clone()
	}
	return &CoalesceExpr{Inputs: inputs}
}

func (e *CoalesceExpr) columns() []string {
	var cols []string
	for _, in := range e.Inputs {
		cols = append(cols, in.columns()...)
	}
	return cols
}

func (e *CoalesceExpr) Alias(name string) *AliasExpr { return aliased(e, name) }

// StrOp identifies a vectorized string operation.
type StrOp int

const (
	StrOpContains StrOp = iota
	StrOpStartsWith
	StrOpEndsWith
	StrOpMatch
	StrOpCount
	StrOpExtract
	StrOpReplace
	StrOpReplaceAll
	StrOpLower
	StrOpUpper
	StrOpTrim
	StrOpLength
)

var strOpNames = [...]string{
	StrOpContains:   "contains",
	StrOpStartsWith: "starts_with",
	StrOpEndsWith:   "ends_with",
	StrOpMatch:      "match",
	StrOpCount:      "count",
	StrOpExtract:    "extract",
	StrOpReplace:    "replace",
	StrOpReplaceAll: "replace_all",
	StrOpLower:      "lower",
	StrOpUpper:      "upper",
	StrOpTrim:       "trim",
	StrOpLength:     "length",
}

func (op StrOp) String() string {
	if int(op) < len(strOpNames) {
		return strOpNames[op]
	}
	return "?"
}

// StrExpr applies a string operation elementwise to a string column.
type StrExpr struct {
	Input   Expr
	Op      StrOp
	Pattern string // search pattern (literal or regex, per Regex)
	Repl    string // replacement text for replace operations
	Regex   bool   // interpret Pattern as a regular expression
}

func (e *StrExpr) String() string {
	return fmt.Sprintf("%s.str.%s(%q)", e.Input, e.Op, e.Pattern)
}

func (e *StrExpr) Clone() Expr {
	return &StrExpr{Input: e.Input.Clone(), Op: e.Op, Pattern: e.Pattern, Repl: e.Repl, Regex: e.Regex}
}

func (e *StrExpr) columns() []string { return e.Input.columns() }

func (e *StrExpr) Alias(name string) *AliasExpr { return aliased(e, name) }

// StrNamespace hangs the string operations off a column reference.
type StrNamespace struct {
	col *ColExpr
}

// Str opens the string operation namespace on a column.
func (e *ColExpr) Str() *StrNamespace {
	return &StrNamespace{col: e}
}

func (s *StrNamespace) op(op StrOp, pattern, repl string, regex bool) *StrExpr {
	return &StrExpr{Input: s.col, Op: op, Pattern: pattern, Repl: repl, Regex: regex}
}

// Contains tests whether each value contains the literal substring.
func (s *StrNamespace) Contains(substr string) *StrExpr {
	return s.op(StrOpContains, substr, "", false)
}

// StartsWith tests whether each value starts with the literal prefix.
func (s *StrNamespace) StartsWith(prefix string) *StrExpr {
	return s.op(StrOpStartsWith, prefix, "", false)
}

// EndsWith tests whether each value ends with the literal suffix.
func (s *StrNamespace) EndsWith(suffix string) *StrExpr {
	return s.op(StrOpEndsWith, suffix, "", false)
}

// Match tests each value against a regular expression.
func (s *StrNamespace) Match(pattern string) *StrExpr {
	return s.op(StrOpMatch, pattern, "", true)
}

// CountMatches counts non-overlapping occurrences of the literal
// substring.
func (s *StrNamespace) CountMatches(substr string) *StrExpr {
	return s.op(StrOpCount, substr, "", false)
}

// Extract returns the first regex match per value, null where none.
func (s *StrNamespace) Extract(pattern string) *StrExpr {
	return s.op(StrOpExtract, pattern, "", true)
}

// Replace replaces the first occurrence of the literal substring.
func (s *StrNamespace) Replace(old, new string) *StrExpr {
	return s.op(StrOpReplace, old, new, false)
}

// ReplaceAll replaces every occurrence of the literal substring.
func (s *StrNamespace) ReplaceAll(old, new string) *StrExpr {
	return s.op(StrOpReplaceAll, old, new, false)
}

// Lower converts each value to lower case.
func (s *StrNamespace) Lower() *StrExpr {
	return s.op(StrOpLower, "", "", false)
}

// Upper converts each value to upper case.
func (s *StrNamespace) Upper() *StrExpr {
	return s.op(StrOpUpper, "", "", false)
}

// Trim removes leading and trailing whitespace from each value.
func (s *StrNamespace) Trim() *StrExpr {
	return s.op(StrOpTrim, "", "", false)
}

// Length returns the length in runes of each value.
func (s *StrNamespace) Length() *StrExpr {
	return s.op(StrOpLength, "", "", false)
}
