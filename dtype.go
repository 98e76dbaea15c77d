package caravel

import "fmt"

// DType identifies the storage type of a Series.
type DType uint8

const (
	Float64 DType = iota
	Float32
	Int64
	Int32
	Bool
	String

	// Categorical stores dictionary-encoded strings.
	Categorical

	// Frame holds a nested DataFrame per row (produced by Nest).
	Frame

	Null
)

var dtypeNames = [...]string{
	Float64:     "Float64",
	Float32:     "Float32",
	Int64:       "Int64",
	Int32:       "Int32",
	Bool:        "Bool",
	String:      "String",
	Categorical: "Categorical",
	Frame:       "Frame",
	Null:        "Null",
}

func (d DType) String() string {
	if int(d) < len(dtypeNames) {
		return dtypeNames[d]
	}
	return fmt.Sprintf("Unknown(%d)", d)
}

// IsNumeric reports whether d is a float or integer type.
func (d DType) IsNumeric() bool {
	return d.IsFloat() || d.IsInteger()
}

// IsFloat reports whether d is a floating point type.
func (d DType) IsFloat() bool {
	return d == Float64 || d == Float32
}

// IsInteger reports whether d is an integer type.
func (d DType) IsInteger() bool {
	return d == Int64 || d == Int32
}

// IsCategorical reports whether d is Categorical.
func (d DType) IsCategorical() bool {
	return d == Categorical
}

// IsTextual reports whether rows carry string values (String or
// Categorical).
func (d DType) IsTextual() bool {
	return d == String || d == Categorical
}

// Size returns the fixed per-row byte width, -1 for variable-width
// types and 0 for Null.
func (d DType) Size() int {
	switch d {
	case Float64, Int64:
		return 8
	case Float32, Int32, Categorical:
		return 4
	case Bool:
		return 1
	case String, Frame:
		return -1
	default:
		return 0
	}
}

// Schema pairs ordered column names with their dtypes.
type Schema struct {
	names  []string
	dtypes []DType
}

// NewSchema builds a schema, rejecting length mismatches and duplicate
// names.
func NewSchema(names []string, dtypes []DType) (*Schema, error) {
	if len(names) != len(dtypes) {
		return nil, fmt.Errorf("names and dtypes must have same length: %d != %d", len(names), len(dtypes))
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("duplicate column name: %s", name)
		}
		seen[name] = true
	}
	s := &Schema{
		names:  make([]string, len(names)),
		dtypes: make([]DType, len(dtypes)),
	}
	copy(s.names, names)
	copy(s.dtypes, dtypes)
	return s, nil
}

// Len returns the column count.
func (s *Schema) Len() int { return len(s.names) }

// Names returns a copy of the column names.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// DTypes returns a copy of the column dtypes.
func (s *Schema) DTypes() []DType {
	out := make([]DType, len(s.dtypes))
	copy(out, s.dtypes)
	return out
}

// GetDType looks up a column's dtype by name.
func (s *Schema) GetDType(name string) (DType, bool) {
	if i, ok := s.GetIndex(name); ok {
		return s.dtypes[i], true
	}
	return Null, false
}

// GetIndex looks up a column's position by name.
func (s *Schema) GetIndex(name string) (int, bool) {
	for i, n := range s.names {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

func (s *Schema) String() string {
	out := "Schema{\n"
	for i, name := range s.names {
		out += fmt.Sprintf("  %s: %s\n", name, s.dtypes[i])
	}
	return out + "}"
}
