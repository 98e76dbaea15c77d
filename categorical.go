package caravel

import "fmt"

// catData is the dictionary storage behind a Categorical series:
// an ordered label set plus one int32 code per row. Code -1 marks a
// missing value.
type catData struct {
	labels []string
	codes  []int32
}

func (c *catData) clone() *catData {
	return &catData{
		labels: append([]string{}, c.labels...),
		codes:  append([]int32{}, c.codes...),
	}
}

func (c *catData) take(indices []int) *catData {
	codes := make([]int32, len(indices))
	for i, idx := range indices {
		codes[i] = c.codes[idx]
	}
	return &catData{labels: append([]string{}, c.labels...), codes: codes}
}

func (c *catData) labelAt(i int) (string, bool) {
	code := c.codes[i]
	if code < 0 {
		return "", false
	}
	return c.labels[code], true
}

// materialize expands codes back to a string slice; missing rows yield ""
func (c *catData) materialize() []string {
	out := make([]string, len(c.codes))
	for i, code := range c.codes {
		if code >= 0 {
			out[i] = c.labels[code]
		}
	}
	return out
}

func (c *catData) labelIndex(label string) int {
	for i, l := range c.labels {
		if l == label {
			return i
		}
	}
	return -1
}

// ============================================================================
// Constructors
// ============================================================================

// NewSeriesCategorical creates a Categorical series from string values.
// Labels are collected in first-appearance order.
func NewSeriesCategorical(name string, values []string) *Series {
	labels := make([]string, 0)
	index := make(map[string]int32)
	codes := make([]int32, len(values))
	for i, v := range values {
		code, ok := index[v]
		if !ok {
			code = int32(len(labels))
			index[v] = code
			labels = append(labels, v)
		}
		codes[i] = code
	}
	return &Series{
		name:   name,
		dtype:  Categorical,
		length: len(values),
		cat:    &catData{labels: labels, codes: codes},
	}
}

// NewSeriesCategoricalWithLabels creates a Categorical series with an
// explicit label set. The set may contain labels no value uses; a value
// outside the set is an error.
func NewSeriesCategoricalWithLabels(name string, values []string, labels []string) (*Series, error) {
	index := make(map[string]int32, len(labels))
	for i, l := range labels {
		if _, dup := index[l]; dup {
			return nil, fmt.Errorf("duplicate label %q", l)
		}
		index[l] = int32(i)
	}
	codes := make([]int32, len(values))
	for i, v := range values {
		code, ok := index[v]
		if !ok {
			return nil, fmt.Errorf("value %q at row %d is not in the label set", v, i)
		}
		codes[i] = code
	}
	return &Series{
		name:   name,
		dtype:  Categorical,
		length: len(values),
		cat:    &catData{labels: append([]string{}, labels...), codes: codes},
	}, nil
}

// newSeriesCategoricalFromCodes builds a Categorical series directly from
// dictionary parts. Used by the Arrow and groupby paths.
func newSeriesCategoricalFromCodes(name string, labels []string, codes []int32) *Series {
	return &Series{
		name:   name,
		dtype:  Categorical,
		length: len(codes),
		cat:    &catData{labels: labels, codes: codes},
	}
}

// ============================================================================
// Categorical Accessors
// ============================================================================

// Labels returns the ordered label set of a Categorical series
func (s *Series) Labels() []string {
	s.requireCategorical("Labels")
	return append([]string{}, s.cat.labels...)
}

// Codes returns the per-row dictionary codes (-1 marks a missing value)
func (s *Series) Codes() []int32 {
	s.requireCategorical("Codes")
	return append([]int32{}, s.cat.codes...)
}

// LabelAt returns the label assigned to row i, and false if the row is missing
func (s *Series) LabelAt(i int) (string, bool) {
	s.requireCategorical("LabelAt")
	return s.cat.labelAt(i)
}

// ToStringSeries converts a Categorical series back to a plain String series
func (s *Series) ToStringSeries() *Series {
	s.requireCategorical("ToStringSeries")
	data := s.cat.materialize()
	if s.HasNulls() {
		valid := make([]bool, s.length)
		for i := range valid {
			valid[i] = s.cat.codes[i] >= 0
		}
		return NewSeriesStringWithNulls(s.name, data, valid)
	}
	return NewSeriesString(s.name, data)
}

func (s *Series) requireCategorical(op string) {
	if s.dtype != Categorical {
		panic(fmt.Sprintf("%s: series %q is %s, not Categorical", op, s.name, s.dtype))
	}
}

// ============================================================================
// Label-Set Operations
// ============================================================================

// Relabel returns a series with label text rewritten per the mapping.
// Per-row assignment identity never changes: a row labeled x before is
// labeled mapping[x] after. Mapping two old labels onto one new label
// merges them into a single label.
func (s *Series) Relabel(mapping map[string]string) (*Series, error) {
	s.requireCategorical("Relabel")
	for old := range mapping {
		if s.cat.labelIndex(old) < 0 {
			return nil, fmt.Errorf("unknown label %q", old)
		}
	}

	newLabels := make([]string, 0, len(s.cat.labels))
	newIndex := make(map[string]int32, len(s.cat.labels))
	remap := make([]int32, len(s.cat.labels))
	for i, old := range s.cat.labels {
		name := old
		if renamed, ok := mapping[old]; ok {
			name = renamed
		}
		code, seen := newIndex[name]
		if !seen {
			code = int32(len(newLabels))
			newIndex[name] = code
			newLabels = append(newLabels, name)
		}
		remap[i] = code
	}

	codes := make([]int32, len(s.cat.codes))
	for i, c := range s.cat.codes {
		if c < 0 {
			codes[i] = -1
		} else {
			codes[i] = remap[c]
		}
	}
	return newSeriesCategoricalFromCodes(s.name, newLabels, codes), nil
}

// ReorderLabels returns a series whose label set follows the given order.
// order must be a permutation of the current label set; row assignments
// are unchanged.
func (s *Series) ReorderLabels(order []string) (*Series, error) {
	s.requireCategorical("ReorderLabels")
	if len(order) != len(s.cat.labels) {
		return nil, fmt.Errorf("order has %d labels, series has %d", len(order), len(s.cat.labels))
	}
	remap := make([]int32, len(s.cat.labels))
	seen := make(map[string]bool, len(order))
	for newCode, label := range order {
		if seen[label] {
			return nil, fmt.Errorf("duplicate label %q in order", label)
		}
		seen[label] = true
		oldCode := s.cat.labelIndex(label)
		if oldCode < 0 {
			return nil, fmt.Errorf("unknown label %q in order", label)
		}
		remap[oldCode] = int32(newCode)
	}

	codes := make([]int32, len(s.cat.codes))
	for i, c := range s.cat.codes {
		if c < 0 {
			codes[i] = -1
		} else {
			codes[i] = remap[c]
		}
	}
	return newSeriesCategoricalFromCodes(s.name, append([]string{}, order...), codes), nil
}

// AddLabels returns a series with extra labels appended to the label set.
// Labels already present are an error; row assignments are unchanged.
func (s *Series) AddLabels(extra ...string) (*Series, error) {
	s.requireCategorical("AddLabels")
	labels := append([]string{}, s.cat.labels...)
	added := make(map[string]bool, len(extra))
	for _, l := range extra {
		if s.cat.labelIndex(l) >= 0 || added[l] {
			return nil, fmt.Errorf("label %q already present", l)
		}
		added[l] = true
		labels = append(labels, l)
	}
	return newSeriesCategoricalFromCodes(s.name, labels, append([]int32{}, s.cat.codes...)), nil
}

// DropUnusedLabels removes labels no row is assigned to.
// Applying it twice gives the same result as applying it once.
func (s *Series) DropUnusedLabels() *Series {
	s.requireCategorical("DropUnusedLabels")
	used := make([]bool, len(s.cat.labels))
	for _, c := range s.cat.codes {
		if c >= 0 {
			used[c] = true
		}
	}

	labels := make([]string, 0, len(s.cat.labels))
	remap := make([]int32, len(s.cat.labels))
	for i, l := range s.cat.labels {
		if used[i] {
			remap[i] = int32(len(labels))
			labels = append(labels, l)
		} else {
			remap[i] = -1
		}
	}

	codes := make([]int32, len(s.cat.codes))
	for i, c := range s.cat.codes {
		if c < 0 {
			codes[i] = -1
		} else {
			codes[i] = remap[c]
		}
	}
	return newSeriesCategoricalFromCodes(s.name, labels, codes)
}
