package caravel

import (
	"fmt"
	"math"
	"sort"
)

// Series is a named, typed column of values.
// Storage is a typed Go slice per dtype plus an optional validity slice
// for null tracking (nil validity means every value is present).
type Series struct {
	name   string
	dtype  DType
	length int

	f64 []float64
	f32 []float32
	i64 []int64
	i32 []int32
	b   []bool
	str []string
	cat *catData
	fr  []*DataFrame

	// valid[i] == false marks row i as null. nil means all valid.
	valid []bool
}

// ============================================================================
// Constructors
// ============================================================================

// NewSeriesFloat64 creates a float64 Series
func NewSeriesFloat64(name string, data []float64) *Series {
	return &Series{name: name, dtype: Float64, length: len(data), f64: data}
}

// NewSeriesFloat32 creates a float32 Series
func NewSeriesFloat32(name string, data []float32) *Series {
	return &Series{name: name, dtype: Float32, length: len(data), f32: data}
}

// NewSeriesInt64 creates an int64 Series
func NewSeriesInt64(name string, data []int64) *Series {
	return &Series{name: name, dtype: Int64, length: len(data), i64: data}
}

// NewSeriesInt32 creates an int32 Series
func NewSeriesInt32(name string, data []int32) *Series {
	return &Series{name: name, dtype: Int32, length: len(data), i32: data}
}

// NewSeriesBool creates a bool Series
func NewSeriesBool(name string, data []bool) *Series {
	return &Series{name: name, dtype: Bool, length: len(data), b: data}
}

// NewSeriesString creates a string Series
func NewSeriesString(name string, data []string) *Series {
	return &Series{name: name, dtype: String, length: len(data), str: data}
}

// NewSeriesFloat64WithNulls creates a float64 Series with a validity slice.
// valid must be nil or the same length as data.
func NewSeriesFloat64WithNulls(name string, data []float64, valid []bool) *Series {
	s := NewSeriesFloat64(name, data)
	s.valid = valid
	return s
}

// NewSeriesInt64WithNulls creates an int64 Series with a validity slice
func NewSeriesInt64WithNulls(name string, data []int64, valid []bool) *Series {
	s := NewSeriesInt64(name, data)
	s.valid = valid
	return s
}

// NewSeriesStringWithNulls creates a string Series with a validity slice
func NewSeriesStringWithNulls(name string, data []string, valid []bool) *Series {
	s := NewSeriesString(name, data)
	s.valid = valid
	return s
}

// NewSeriesBoolWithNulls creates a bool Series with a validity slice
func NewSeriesBoolWithNulls(name string, data []bool, valid []bool) *Series {
	s := NewSeriesBool(name, data)
	s.valid = valid
	return s
}

// NewSeriesFrame creates a Series whose cells hold nested DataFrames
func NewSeriesFrame(name string, frames []*DataFrame) *Series {
	return &Series{name: name, dtype: Frame, length: len(frames), fr: frames}
}

// ============================================================================
// Basic Accessors
// ============================================================================

// Name returns the series name
func (s *Series) Name() string { return s.name }

// DType returns the data type
func (s *Series) DType() DType { return s.dtype }

// Len returns the number of rows
func (s *Series) Len() int { return s.length }

// IsEmpty returns true if the series has no rows
func (s *Series) IsEmpty() bool { return s.length == 0 }

// Float64 returns the underlying float64 data.
// Panics if the series is not Float64.
func (s *Series) Float64() []float64 {
	if s.dtype != Float64 {
		panic(fmt.Sprintf("series %q is %s, not Float64", s.name, s.dtype))
	}
	return s.f64
}

// Float32 returns the underlying float32 data
func (s *Series) Float32() []float32 {
	if s.dtype != Float32 {
		panic(fmt.Sprintf("series %q is %s, not Float32", s.name, s.dtype))
	}
	return s.f32
}

// Int64 returns the underlying int64 data
func (s *Series) Int64() []int64 {
	if s.dtype != Int64 {
		panic(fmt.Sprintf("series %q is %s, not Int64", s.name, s.dtype))
	}
	return s.i64
}

// Int32 returns the underlying int32 data
func (s *Series) Int32() []int32 {
	if s.dtype != Int32 {
		panic(fmt.Sprintf("series %q is %s, not Int32", s.name, s.dtype))
	}
	return s.i32
}

// Bool returns the underlying bool data
func (s *Series) Bool() []bool {
	if s.dtype != Bool {
		panic(fmt.Sprintf("series %q is %s, not Bool", s.name, s.dtype))
	}
	return s.b
}

// Strings returns the values as a string slice.
// For Categorical series the dictionary is materialized; null rows yield "".
func (s *Series) Strings() []string {
	switch s.dtype {
	case String:
		return s.str
	case Categorical:
		return s.cat.materialize()
	default:
		panic(fmt.Sprintf("series %q is %s, not a string type", s.name, s.dtype))
	}
}

// Frames returns the nested DataFrames of a Frame series
func (s *Series) Frames() []*DataFrame {
	if s.dtype != Frame {
		panic(fmt.Sprintf("series %q is %s, not Frame", s.name, s.dtype))
	}
	return s.fr
}

// Get returns the value at index i as an interface, or nil if the row is null
func (s *Series) Get(i int) interface{} {
	if i < 0 || i >= s.length {
		return nil
	}
	if !s.IsValid(i) {
		return nil
	}
	switch s.dtype {
	case Float64:
		return s.f64[i]
	case Float32:
		return s.f32[i]
	case Int64:
		return s.i64[i]
	case Int32:
		return s.i32[i]
	case Bool:
		return s.b[i]
	case String:
		return s.str[i]
	case Categorical:
		lbl, ok := s.cat.labelAt(i)
		if !ok {
			return nil
		}
		return lbl
	case Frame:
		return s.fr[i]
	default:
		return nil
	}
}

// IsValid returns true if the row at index i is not null
func (s *Series) IsValid(i int) bool {
	if s.dtype == Categorical {
		return s.cat.codes[i] >= 0
	}
	if s.valid == nil {
		return true
	}
	return s.valid[i]
}

// NullCount returns the number of null rows
func (s *Series) NullCount() int {
	n := 0
	for i := 0; i < s.length; i++ {
		if !s.IsValid(i) {
			n++
		}
	}
	return n
}

// HasNulls returns true if any row is null
func (s *Series) HasNulls() bool {
	for i := 0; i < s.length; i++ {
		if !s.IsValid(i) {
			return true
		}
	}
	return false
}

// Rename returns a copy of the series with a new name.
// The underlying data is shared.
func (s *Series) Rename(name string) *Series {
	out := *s
	out.name = name
	return &out
}

// Clone returns a deep copy of the series
func (s *Series) Clone() *Series {
	out := &Series{name: s.name, dtype: s.dtype, length: s.length}
	if s.f64 != nil {
		out.f64 = append([]float64{}, s.f64...)
	}
	if s.f32 != nil {
		out.f32 = append([]float32{}, s.f32...)
	}
	if s.i64 != nil {
		out.i64 = append([]int64{}, s.i64...)
	}
	if s.i32 != nil {
		out.i32 = append([]int32{}, s.i32...)
	}
	if s.b != nil {
		out.b = append([]bool{}, s.b...)
	}
	if s.str != nil {
		out.str = append([]string{}, s.str...)
	}
	if s.fr != nil {
		out.fr = append([]*DataFrame{}, s.fr...)
	}
	if s.cat != nil {
		out.cat = s.cat.clone()
	}
	if s.valid != nil {
		out.valid = append([]bool{}, s.valid...)
	}
	return out
}

// ============================================================================
// Slicing
// ============================================================================

// Slice returns rows [start, end)
func (s *Series) Slice(start, end int) *Series {
	if start < 0 {
		start = 0
	}
	if end > s.length {
		end = s.length
	}
	if start > end {
		start = end
	}
	idx := make([]int, end-start)
	for i := range idx {
		idx[i] = start + i
	}
	return s.Take(idx)
}

// Head returns the first n rows
func (s *Series) Head(n int) *Series {
	if n > s.length {
		n = s.length
	}
	return s.Slice(0, n)
}

// Tail returns the last n rows
func (s *Series) Tail(n int) *Series {
	if n > s.length {
		n = s.length
	}
	return s.Slice(s.length-n, s.length)
}

// Take returns a new series containing the rows at the given indices
func (s *Series) Take(indices []int) *Series {
	n := len(indices)
	out := &Series{name: s.name, dtype: s.dtype, length: n}

	if s.valid != nil {
		out.valid = make([]bool, n)
		for i, idx := range indices {
			out.valid[i] = s.valid[idx]
		}
	}

	switch s.dtype {
	case Float64:
		out.f64 = make([]float64, n)
		for i, idx := range indices {
			out.f64[i] = s.f64[idx]
		}
	case Float32:
		out.f32 = make([]float32, n)
		for i, idx := range indices {
			out.f32[i] = s.f32[idx]
		}
	case Int64:
		out.i64 = make([]int64, n)
		for i, idx := range indices {
			out.i64[i] = s.i64[idx]
		}
	case Int32:
		out.i32 = make([]int32, n)
		for i, idx := range indices {
			out.i32[i] = s.i32[idx]
		}
	case Bool:
		out.b = make([]bool, n)
		for i, idx := range indices {
			out.b[i] = s.b[idx]
		}
	case String:
		out.str = make([]string, n)
		for i, idx := range indices {
			out.str[i] = s.str[idx]
		}
	case Categorical:
		out.cat = s.cat.take(indices)
	case Frame:
		out.fr = make([]*DataFrame, n)
		for i, idx := range indices {
			out.fr[i] = s.fr[idx]
		}
	}
	return out
}

// filterByMask returns rows where mask[i] != 0
func (s *Series) filterByMask(mask []byte) *Series {
	indices := make([]int, 0, len(mask))
	for i, m := range mask {
		if m != 0 {
			indices = append(indices, i)
		}
	}
	return s.Take(indices)
}

// ============================================================================
// Sorting
// ============================================================================

// Argsort returns the row permutation that sorts the series.
// The sort is stable; null rows sort last.
func (s *Series) Argsort(ascending bool) []int {
	idx := make([]int, s.length)
	for i := range idx {
		idx[i] = i
	}

	less := s.lessFn()
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		vi, vj := s.IsValid(i), s.IsValid(j)
		if !vi || !vj {
			return vi && !vj
		}
		if ascending {
			return less(i, j)
		}
		return less(j, i)
	})
	return idx
}

func (s *Series) lessFn() func(i, j int) bool {
	switch s.dtype {
	case Float64:
		return func(i, j int) bool { return s.f64[i] < s.f64[j] }
	case Float32:
		return func(i, j int) bool { return s.f32[i] < s.f32[j] }
	case Int64:
		return func(i, j int) bool { return s.i64[i] < s.i64[j] }
	case Int32:
		return func(i, j int) bool { return s.i32[i] < s.i32[j] }
	case Bool:
		return func(i, j int) bool { return !s.b[i] && s.b[j] }
	case String:
		return func(i, j int) bool { return s.str[i] < s.str[j] }
	case Categorical:
		return func(i, j int) bool {
			li, _ := s.cat.labelAt(i)
			lj, _ := s.cat.labelAt(j)
			return li < lj
		}
	default:
		return func(i, j int) bool { return false }
	}
}

// ============================================================================
// Scalar Arithmetic
// ============================================================================

// Add returns a new float64 series with the scalar added to every value
func (s *Series) Add(scalar float64) *Series {
	data := s.toFloat64()
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = v + scalar
	}
	return &Series{name: s.name, dtype: Float64, length: s.length, f64: out, valid: s.valid}
}

// Mul returns a new float64 series with every value multiplied by the scalar
func (s *Series) Mul(scalar float64) *Series {
	data := s.toFloat64()
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = v * scalar
	}
	return &Series{name: s.name, dtype: Float64, length: s.length, f64: out, valid: s.valid}
}

func (s *Series) toFloat64() []float64 {
	switch s.dtype {
	case Float64:
		return s.f64
	case Float32:
		out := make([]float64, s.length)
		for i, v := range s.f32 {
			out[i] = float64(v)
		}
		return out
	case Int64:
		out := make([]float64, s.length)
		for i, v := range s.i64 {
			out[i] = float64(v)
		}
		return out
	case Int32:
		out := make([]float64, s.length)
		for i, v := range s.i32 {
			out[i] = float64(v)
		}
		return out
	case Bool:
		out := make([]float64, s.length)
		for i, v := range s.b {
			if v {
				out[i] = 1
			}
		}
		return out
	default:
		return nil
	}
}

// ============================================================================
// Aggregations
// ============================================================================

// numericValues returns the non-null values as float64s
func (s *Series) numericValues() []float64 {
	data := s.toFloat64()
	if data == nil {
		return nil
	}
	if s.valid == nil {
		return data
	}
	out := make([]float64, 0, len(data))
	for i, v := range data {
		if s.valid[i] {
			out = append(out, v)
		}
	}
	return out
}

// Sum returns the sum of non-null values (0 for an empty series)
func (s *Series) Sum() float64 {
	total := 0.0
	for _, v := range s.numericValues() {
		total += v
	}
	return total
}

// Mean returns the mean of non-null values (NaN for an empty series)
func (s *Series) Mean() float64 {
	vals := s.numericValues()
	if len(vals) == 0 {
		return math.NaN()
	}
	return s.Sum() / float64(len(vals))
}

// Min returns the minimum non-null value (NaN for an empty series)
func (s *Series) Min() float64 {
	vals := s.numericValues()
	if len(vals) == 0 {
		return math.NaN()
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Max returns the maximum non-null value (NaN for an empty series)
func (s *Series) Max() float64 {
	vals := s.numericValues()
	if len(vals) == 0 {
		return math.NaN()
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Var returns the sample variance of non-null values
func (s *Series) Var() float64 {
	vals := s.numericValues()
	n := len(vals)
	if n < 2 {
		return math.NaN()
	}
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(n)
	ss := 0.0
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return ss / float64(n-1)
}

// Std returns the sample standard deviation of non-null values
func (s *Series) Std() float64 {
	return math.Sqrt(s.Var())
}

// Median returns the median of non-null values
func (s *Series) Median() float64 {
	return s.Quantile(0.5)
}

// Quantile returns the q-th quantile (linear interpolation, q in [0, 1])
func (s *Series) Quantile(q float64) float64 {
	vals := append([]float64{}, s.numericValues()...)
	if len(vals) == 0 || q < 0 || q > 1 {
		return math.NaN()
	}
	sort.Float64s(vals)
	if len(vals) == 1 {
		return vals[0]
	}
	pos := q * float64(len(vals)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return vals[lo]
	}
	frac := pos - float64(lo)
	return vals[lo]*(1-frac) + vals[hi]*frac
}

// Count returns the number of non-null rows
func (s *Series) Count() int {
	return s.length - s.NullCount()
}

// ============================================================================
// Casting
// ============================================================================

// Cast converts the series to the target dtype.
// Null rows stay null; non-convertible dtypes are an error.
func (s *Series) Cast(target DType) (*Series, error) {
	if s.dtype == target {
		return s, nil
	}

	switch target {
	case Float64, Float32, Int64, Int32, Bool:
		data := s.toFloat64()
		if data == nil {
			return nil, fmt.Errorf("cannot cast %s series %q to %s", s.dtype, s.name, target)
		}
		return castFromFloat64(s.name, data, s.valid, target)

	case String:
		out := make([]string, s.length)
		valid := make([]bool, s.length)
		for i := 0; i < s.length; i++ {
			if !s.IsValid(i) {
				continue
			}
			out[i] = formatValue(s.Get(i), false)
			valid[i] = true
		}
		if s.HasNulls() {
			return NewSeriesStringWithNulls(s.name, out, valid), nil
		}
		return NewSeriesString(s.name, out), nil

	case Categorical:
		if !s.dtype.IsTextual() {
			return nil, fmt.Errorf("cannot cast %s series %q to Categorical", s.dtype, s.name)
		}
		return NewSeriesCategorical(s.name, s.Strings()), nil

	default:
		return nil, fmt.Errorf("unsupported cast from %s to %s", s.dtype, target)
	}
}

func castFromFloat64(name string, data []float64, valid []bool, target DType) (*Series, error) {
	n := len(data)
	switch target {
	case Float64:
		return &Series{name: name, dtype: Float64, length: n, f64: append([]float64{}, data...), valid: valid}, nil
	case Float32:
		out := make([]float32, n)
		for i, v := range data {
			out[i] = float32(v)
		}
		return &Series{name: name, dtype: Float32, length: n, f32: out, valid: valid}, nil
	case Int64:
		out := make([]int64, n)
		for i, v := range data {
			out[i] = int64(v)
		}
		return &Series{name: name, dtype: Int64, length: n, i64: out, valid: valid}, nil
	case Int32:
		out := make([]int32, n)
		for i, v := range data {
			out[i] = int32(v)
		}
		return &Series{name: name, dtype: Int32, length: n, i32: out, valid: valid}, nil
	case Bool:
		out := make([]bool, n)
		for i, v := range data {
			out[i] = v != 0
		}
		return &Series{name: name, dtype: Bool, length: n, b: out, valid: valid}, nil
	default:
		return nil, fmt.Errorf("unsupported numeric cast to %s", target)
	}
}

// ============================================================================
// Elementwise Mapping
// ============================================================================

// MapFloat64 applies fn to every non-null value of a numeric series
func (s *Series) MapFloat64(fn func(float64) float64) (*Series, error) {
	data := s.toFloat64()
	if data == nil {
		return nil, fmt.Errorf("MapFloat64 requires a numeric series, %q is %s", s.name, s.dtype)
	}
	out := make([]float64, len(data))
	for i, v := range data {
		if s.IsValid(i) {
			out[i] = fn(v)
		}
	}
	return &Series{name: s.name, dtype: Float64, length: s.length, f64: out, valid: s.valid}, nil
}

// MapString applies fn to every non-null value of a string series
func (s *Series) MapString(fn func(string) string) (*Series, error) {
	if !s.dtype.IsTextual() {
		return nil, fmt.Errorf("MapString requires a string series, %q is %s", s.name, s.dtype)
	}
	src := s.Strings()
	out := make([]string, len(src))
	valid := make([]bool, len(src))
	hasNull := false
	for i, v := range src {
		if s.IsValid(i) {
			out[i] = fn(v)
			valid[i] = true
		} else {
			hasNull = true
		}
	}
	if hasNull {
		return NewSeriesStringWithNulls(s.name, out, valid), nil
	}
	return NewSeriesString(s.name, out), nil
}

// String renders the Series using the global display configuration.
func (s *Series) String() string {
	return SeriesStringWithConfig(s, GetDisplayConfig())
}
