package caravel

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a search pattern for the vectorized string operations:
// either a literal substring or a compiled regular expression.
type Pattern struct {
	text  string
	regex bool
	re    *regexp.Regexp
}

// Literal creates a pattern matched as a plain substring
func Literal(text string) Pattern {
	return Pattern{text: text}
}

// Regex compiles a regular expression pattern
func Regex(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return Pattern{text: expr, regex: true, re: re}, nil
}

// MustRegex compiles a regular expression pattern, panicking on error
func MustRegex(expr string) Pattern {
	p, err := Regex(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// IsRegex returns true for regex patterns
func (p Pattern) IsRegex() bool { return p.regex }

func (p Pattern) String() string {
	if p.regex {
		return fmt.Sprintf("regex(%q)", p.text)
	}
	return fmt.Sprintf("literal(%q)", p.text)
}

// broadcastPatterns resolves the pattern for row i. A single pattern
// broadcasts against any number of texts; otherwise lengths must match.
func broadcastPatterns(nTexts int, patterns []Pattern) (func(i int) Pattern, error) {
	switch len(patterns) {
	case 0:
		return nil, fmt.Errorf("no patterns given")
	case 1:
		p := patterns[0]
		return func(int) Pattern { return p }, nil
	case nTexts:
		return func(i int) Pattern { return patterns[i] }, nil
	default:
		return nil, fmt.Errorf("pattern vector length %d does not broadcast against %d texts", len(patterns), nTexts)
	}
}

// Match describes one pattern occurrence inside a text
type Match struct {
	Found  bool
	Start  int // byte offset of the match
	End    int // byte offset just past the match
	Text   string
	Groups []string // regex capture groups, empty for literal patterns
}

// ============================================================================
// Search and Count
// ============================================================================

// StrDetect reports, per text, whether the pattern occurs
func StrDetect(texts []string, patterns []Pattern) ([]bool, error) {
	at, err := broadcastPatterns(len(texts), patterns)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(texts))
	for i, t := range texts {
		p := at(i)
		if p.regex {
			out[i] = p.re.MatchString(t)
		} else {
			out[i] = strings.Contains(t, p.text)
		}
	}
	return out, nil
}

// StrCount counts non-overlapping pattern occurrences per text
func StrCount(texts []string, patterns []Pattern) ([]int, error) {
	at, err := broadcastPatterns(len(texts), patterns)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(texts))
	for i, t := range texts {
		p := at(i)
		if p.regex {
			out[i] = len(p.re.FindAllStringIndex(t, -1))
		} else if p.text == "" {
			out[i] = 0
		} else {
			out[i] = strings.Count(t, p.text)
		}
	}
	return out, nil
}

// StrFind locates the first pattern occurrence per text
func StrFind(texts []string, patterns []Pattern) ([]Match, error) {
	at, err := broadcastPatterns(len(texts), patterns)
	if err != nil {
		return nil, err
	}
	out := make([]Match, len(texts))
	for i, t := range texts {
		out[i] = findOne(t, at(i))
	}
	return out, nil
}

// StrFindAll locates every pattern occurrence per text
func StrFindAll(texts []string, patterns []Pattern) ([][]Match, error) {
	at, err := broadcastPatterns(len(texts), patterns)
	if err != nil {
		return nil, err
	}
	out := make([][]Match, len(texts))
	for i, t := range texts {
		p := at(i)
		if p.regex {
			for _, loc := range p.re.FindAllStringSubmatchIndex(t, -1) {
				out[i] = append(out[i], matchFromLoc(t, loc))
			}
			continue
		}
		if p.text == "" {
			continue
		}
		from := 0
		for {
			pos := strings.Index(t[from:], p.text)
			if pos < 0 {
				break
			}
			start := from + pos
			end := start + len(p.text)
			out[i] = append(out[i], Match{Found: true, Start: start, End: end, Text: p.text})
			from = end
		}
	}
	return out, nil
}

func findOne(t string, p Pattern) Match {
	if p.regex {
		loc := p.re.FindStringSubmatchIndex(t)
		if loc == nil {
			return Match{}
		}
		return matchFromLoc(t, loc)
	}
	pos := strings.Index(t, p.text)
	if pos < 0 || p.text == "" {
		return Match{}
	}
	return Match{Found: true, Start: pos, End: pos + len(p.text), Text: p.text}
}

func matchFromLoc(t string, loc []int) Match {
	m := Match{Found: true, Start: loc[0], End: loc[1], Text: t[loc[0]:loc[1]]}
	for g := 1; g*2 < len(loc); g++ {
		if loc[g*2] < 0 {
			m.Groups = append(m.Groups, "")
		} else {
			m.Groups = append(m.Groups, t[loc[g*2]:loc[g*2+1]])
		}
	}
	return m
}

// ============================================================================
// Extraction and Splitting
// ============================================================================

// StrExtract returns the first match per text. found[i] == false marks
// a text with no occurrence, distinct from a text matching "".
func StrExtract(texts []string, patterns []Pattern) (values []string, found []bool, err error) {
	at, err := broadcastPatterns(len(texts), patterns)
	if err != nil {
		return nil, nil, err
	}
	values = make([]string, len(texts))
	found = make([]bool, len(texts))
	for i, t := range texts {
		m := findOne(t, at(i))
		if m.Found {
			values[i] = m.Text
			found[i] = true
		}
	}
	return values, found, nil
}

// StrSplit splits each text on the pattern
func StrSplit(texts []string, patterns []Pattern) ([][]string, error) {
	at, err := broadcastPatterns(len(texts), patterns)
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(texts))
	for i, t := range texts {
		p := at(i)
		if p.regex {
			out[i] = p.re.Split(t, -1)
		} else {
			out[i] = strings.Split(t, p.text)
		}
	}
	return out, nil
}

// ============================================================================
// Replacement
// ============================================================================

// StrReplace replaces the first pattern occurrence per text.
// For regex patterns the replacement may reference capture groups ($1).
func StrReplace(texts []string, patterns []Pattern, repl string) ([]string, error) {
	return replace(texts, patterns, repl, false)
}

// StrReplaceAll replaces every pattern occurrence per text
func StrReplaceAll(texts []string, patterns []Pattern, repl string) ([]string, error) {
	return replace(texts, patterns, repl, true)
}

func replace(texts []string, patterns []Pattern, repl string, all bool) ([]string, error) {
	at, err := broadcastPatterns(len(texts), patterns)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		p := at(i)
		switch {
		case p.regex && all:
			out[i] = p.re.ReplaceAllString(t, repl)
		case p.regex:
			done := false
			out[i] = p.re.ReplaceAllStringFunc(t, func(m string) string {
				if done {
					return m
				}
				done = true
				return p.re.ReplaceAllString(m, repl)
			})
		case all:
			out[i] = strings.ReplaceAll(t, p.text, repl)
		default:
			out[i] = strings.Replace(t, p.text, repl, 1)
		}
	}
	return out, nil
}

// ============================================================================
// Padding and Casing
// ============================================================================

// PadSide selects which side of the text receives padding
type PadSide int

const (
	PadLeft PadSide = iota
	PadRight
	PadBoth
)

// StrPad pads each text with the pad rune until it is width runes long.
// Texts already at or past the width are unchanged.
func StrPad(texts []string, width int, side PadSide, pad rune) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		n := len([]rune(t))
		if n >= width {
			out[i] = t
			continue
		}
		missing := width - n
		switch side {
		case PadLeft:
			out[i] = strings.Repeat(string(pad), missing) + t
		case PadRight:
			out[i] = t + strings.Repeat(string(pad), missing)
		case PadBoth:
			left := missing / 2
			out[i] = strings.Repeat(string(pad), left) + t + strings.Repeat(string(pad), missing-left)
		}
	}
	return out
}

// StrTrim removes leading and trailing whitespace from each text
func StrTrim(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = strings.TrimSpace(t)
	}
	return out
}

// StrLower lower-cases each text
func StrLower(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = strings.ToLower(t)
	}
	return out
}

// StrUpper upper-cases each text
func StrUpper(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = strings.ToUpper(t)
	}
	return out
}

// StrLength returns the length in runes of each text
func StrLength(texts []string) []int {
	out := make([]int, len(texts))
	for i, t := range texts {
		out[i] = len([]rune(t))
	}
	return out
}

// StrSub returns the rune range [start, end) of each text, clamped to
// the text's bounds. A negative end counts from the end of the text.
func StrSub(texts []string, start, end int) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		runes := []rune(t)
		s, e := start, end
		if e < 0 {
			e = len(runes) + e
		}
		if s < 0 {
			s = 0
		}
		if e > len(runes) {
			e = len(runes)
		}
		if s >= e {
			out[i] = ""
			continue
		}
		out[i] = string(runes[s:e])
	}
	return out
}

// ============================================================================
// Series Wrappers
// ============================================================================

func (s *Series) stringValues(op string) ([]string, error) {
	if !s.dtype.IsTextual() {
		return nil, fmt.Errorf("%s requires a string series, %q is %s", op, s.name, s.dtype)
	}
	return s.Strings(), nil
}

// StrDetect returns a Bool series marking rows containing the pattern.
// Null rows stay null.
func (s *Series) StrDetect(p Pattern) (*Series, error) {
	texts, err := s.stringValues("StrDetect")
	if err != nil {
		return nil, err
	}
	vals, err := StrDetect(texts, []Pattern{p})
	if err != nil {
		return nil, err
	}
	return NewSeriesBoolWithNulls(s.name, vals, s.validitySlice()), nil
}

// StrCount returns an Int64 series of pattern occurrence counts
func (s *Series) StrCount(p Pattern) (*Series, error) {
	texts, err := s.stringValues("StrCount")
	if err != nil {
		return nil, err
	}
	counts, err := StrCount(texts, []Pattern{p})
	if err != nil {
		return nil, err
	}
	vals := make([]int64, len(counts))
	for i, c := range counts {
		vals[i] = int64(c)
	}
	return NewSeriesInt64WithNulls(s.name, vals, s.validitySlice()), nil
}

// StrExtract returns a String series of first matches. Rows with no
// match are null, not empty strings.
func (s *Series) StrExtract(p Pattern) (*Series, error) {
	texts, err := s.stringValues("StrExtract")
	if err != nil {
		return nil, err
	}
	vals, found, err := StrExtract(texts, []Pattern{p})
	if err != nil {
		return nil, err
	}
	for i := range found {
		if !s.IsValid(i) {
			found[i] = false
		}
	}
	return NewSeriesStringWithNulls(s.name, vals, found), nil
}

// StrReplaceAll returns a String series with every pattern occurrence replaced
func (s *Series) StrReplaceAll(p Pattern, repl string) (*Series, error) {
	texts, err := s.stringValues("StrReplaceAll")
	if err != nil {
		return nil, err
	}
	vals, err := StrReplaceAll(texts, []Pattern{p}, repl)
	if err != nil {
		return nil, err
	}
	return NewSeriesStringWithNulls(s.name, vals, s.validitySlice()), nil
}

// validitySlice materializes the validity of each row, or nil when all
// rows are valid.
func (s *Series) validitySlice() []bool {
	if !s.HasNulls() {
		return nil
	}
	out := make([]bool, s.length)
	for i := range out {
		out[i] = s.IsValid(i)
	}
	return out
}
