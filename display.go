package caravel

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// DisplayConfig controls how frames and series render as text tables.
type DisplayConfig struct {
	// MaxRows caps the rows shown; larger frames show head and tail
	// halves around an ellipsis row. Default: 10
	MaxRows int

	// MaxCols caps the columns shown; hidden middle columns collapse
	// into a single ellipsis column. Default: 10
	MaxCols int

	// MaxColWidth truncates longer cell content. Default: 25
	MaxColWidth int

	// MinColWidth pads narrower columns for alignment. Default: 8
	MinColWidth int

	// FloatPrecision is the decimal count for float cells. Default: 4
	FloatPrecision int

	// ShowDTypes adds a dtype line under the column names. Default: true
	ShowDTypes bool

	// ShowShape adds a "shape: (rows, cols)" line on top. Default: true
	ShowShape bool

	// TableStyle picks the border set: "rounded", "sharp", "ascii" or
	// "minimal". Default: "rounded"
	TableStyle string
}

// DefaultDisplayConfig returns the default display configuration.
func DefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		MaxRows:        10,
		MaxCols:        10,
		MaxColWidth:    25,
		MinColWidth:    8,
		FloatPrecision: 4,
		ShowDTypes:     true,
		ShowShape:      true,
		TableStyle:     "rounded",
	}
}

// borderSet holds the glyphs for one table style. The j* fields are the
// junction characters: top, bottom, left, right and interior cross.
type borderSet struct {
	tl, tr, bl, br     string
	h, v               string
	jt, jb, jl, jr, jx string
}

var borderSets = map[string]borderSet{
	"rounded": {"╭", "╮", "╰", "╯", "─", "│", "┬", "┴", "├", "┤", "┼"},
	"sharp":   {"┌", "┐", "└", "┘", "─", "│", "┬", "┴", "├", "┤", "┼"},
	"ascii":   {"+", "+", "+", "+", "-", "|", "+", "+", "+", "+", "+"},
	"minimal": {" ", " ", " ", " ", "─", " ", " ", " ", " ", " ", " "},
}

// bordersFor resolves a style name, falling back to rounded.
func bordersFor(style string) borderSet {
	if b, ok := borderSets[style]; ok {
		return b
	}
	return borderSets["rounded"]
}

var (
	displayMu     sync.RWMutex
	displayConfig = DefaultDisplayConfig()
)

// SetDisplayConfig replaces the global display configuration.
func SetDisplayConfig(cfg DisplayConfig) {
	displayMu.Lock()
	displayConfig = cfg
	displayMu.Unlock()
}

// GetDisplayConfig returns the current global display configuration.
func GetDisplayConfig() DisplayConfig {
	displayMu.RLock()
	defer displayMu.RUnlock()
	return displayConfig
}

// SetMaxDisplayRows caps the rows shown by String.
func SetMaxDisplayRows(n int) {
	displayMu.Lock()
	displayConfig.MaxRows = n
	displayMu.Unlock()
}

// SetMaxDisplayCols caps the columns shown by String.
func SetMaxDisplayCols(n int) {
	displayMu.Lock()
	displayConfig.MaxCols = n
	displayMu.Unlock()
}

// SetFloatPrecision sets the decimal count for float cells.
func SetFloatPrecision(n int) {
	displayMu.Lock()
	displayConfig.FloatPrecision = n
	displayMu.Unlock()
}

// SetTableStyle switches the border style. Unknown names are ignored.
func SetTableStyle(style string) {
	displayMu.Lock()
	if _, ok := borderSets[style]; ok {
		displayConfig.TableStyle = style
	}
	displayMu.Unlock()
}

// previewWindow picks which of total indices to show under a cap of max.
// Oversized inputs yield the head half, a -1 ellipsis marker, then the
// tail half.
func previewWindow(total, max int) []int {
	if total <= max {
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out
	}
	head := max / 2
	tail := max - head
	out := make([]int, 0, max+1)
	for i := 0; i < head; i++ {
		out = append(out, i)
	}
	out = append(out, -1)
	for i := total - tail; i < total; i++ {
		out = append(out, i)
	}
	return out
}

// clip shortens s to at most width characters, marking the cut.
func clip(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}

// cellText renders one cell. Null rows render as "null".
func cellText(s *Series, row int, cfg DisplayConfig) string {
	if !s.IsValid(row) {
		return "null"
	}
	var text string
	switch s.dtype {
	case Float64:
		text = strconv.FormatFloat(s.f64[row], 'f', cfg.FloatPrecision, 64)
	case Float32:
		text = strconv.FormatFloat(float64(s.f32[row]), 'f', cfg.FloatPrecision, 32)
	case Int64:
		text = strconv.FormatInt(s.i64[row], 10)
	case Int32:
		text = strconv.FormatInt(int64(s.i32[row]), 10)
	case Bool:
		text = strconv.FormatBool(s.b[row])
	case String:
		text = s.str[row]
	case Categorical:
		text, _ = s.cat.labelAt(row)
	default:
		text = fmt.Sprintf("%v", s.Get(row))
	}
	return clip(text, cfg.MaxColWidth)
}

// tableWriter accumulates bordered rows over fixed column widths.
type tableWriter struct {
	sb     strings.Builder
	b      borderSet
	widths []int
}

// rule writes a horizontal border line with the given edge glyphs.
func (w *tableWriter) rule(left, junction, right string) {
	w.sb.WriteString(left)
	for i, width := range w.widths {
		if i > 0 {
			w.sb.WriteString(junction)
		}
		w.sb.WriteString(strings.Repeat(w.b.h, width+2))
	}
	w.sb.WriteString(right)
	w.sb.WriteString("\n")
}

// row writes one content line. Cells align left when leftAlign is set,
// right otherwise.
func (w *tableWriter) row(cells []string, leftAlign bool) {
	w.sb.WriteString(w.b.v)
	for i, cell := range cells {
		if leftAlign {
			fmt.Fprintf(&w.sb, " %-*s ", w.widths[i], cell)
		} else {
			fmt.Fprintf(&w.sb, " %*s ", w.widths[i], cell)
		}
		w.sb.WriteString(w.b.v)
	}
	w.sb.WriteString("\n")
}

// String renders the DataFrame with the global display configuration.
func (df *DataFrame) String() string {
	return df.StringWithConfig(GetDisplayConfig())
}

// StringWithConfig renders the DataFrame with an explicit configuration.
func (df *DataFrame) StringWithConfig(cfg DisplayConfig) string {
	if df.height == 0 || len(df.columns) == 0 {
		return "DataFrame(empty)"
	}

	colWindow := previewWindow(len(df.columns), cfg.MaxCols)
	rowWindow := previewWindow(df.height, cfg.MaxRows)

	// Header cells and per-column widths for the visible window.
	names := make([]string, len(colWindow))
	dtypes := make([]string, len(colWindow))
	widths := make([]int, len(colWindow))
	for i, c := range colWindow {
		if c < 0 {
			names[i], dtypes[i] = "…", "…"
			widths[i] = 3
			continue
		}
		col := df.columns[c]
		names[i] = clip(col.Name(), cfg.MaxColWidth)
		dtypes[i] = clip(col.DType().String(), cfg.MaxColWidth)
		widths[i] = len(names[i])
		if cfg.ShowDTypes && len(dtypes[i]) > widths[i] {
			widths[i] = len(dtypes[i])
		}
		for _, r := range rowWindow {
			if r < 0 {
				continue
			}
			if n := len(cellText(col, r, cfg)); n > widths[i] {
				widths[i] = n
			}
		}
		if widths[i] < cfg.MinColWidth {
			widths[i] = cfg.MinColWidth
		}
		if widths[i] > cfg.MaxColWidth {
			widths[i] = cfg.MaxColWidth
		}
	}

	w := tableWriter{b: bordersFor(cfg.TableStyle), widths: widths}
	if cfg.ShowShape {
		fmt.Fprintf(&w.sb, "shape: (%d, %d)\n", df.height, len(df.columns))
	}

	w.rule(w.b.tl, w.b.jt, w.b.tr)
	w.row(names, true)
	if cfg.ShowDTypes {
		w.row(dtypes, true)
	}
	w.rule(w.b.jl, w.b.jx, w.b.jr)

	cells := make([]string, len(colWindow))
	for _, r := range rowWindow {
		for i, c := range colWindow {
			switch {
			case r < 0 || c < 0:
				cells[i] = "…"
			default:
				cells[i] = cellText(df.columns[c], r, cfg)
			}
		}
		w.row(cells, false)
	}
	w.rule(w.b.bl, w.b.jb, w.b.br)

	return strings.TrimSuffix(w.sb.String(), "\n")
}

// SeriesStringWithConfig renders the Series with an explicit configuration.
func SeriesStringWithConfig(s *Series, cfg DisplayConfig) string {
	if s.Len() == 0 {
		return fmt.Sprintf("Series: '%s' (%s)\nlength: 0\n[]", s.Name(), s.DType())
	}

	window := previewWindow(s.Len(), cfg.MaxRows)

	idxWidth := len(strconv.Itoa(s.Len() - 1))
	if idxWidth < 3 {
		idxWidth = 3
	}
	valWidth := cfg.MinColWidth
	for _, r := range window {
		if r < 0 {
			continue
		}
		if n := len(cellText(s, r, cfg)); n > valWidth {
			valWidth = n
		}
	}
	if valWidth > cfg.MaxColWidth {
		valWidth = cfg.MaxColWidth
	}

	w := tableWriter{b: bordersFor(cfg.TableStyle), widths: []int{idxWidth, valWidth}}
	fmt.Fprintf(&w.sb, "Series: '%s' (%s)\n", s.Name(), s.DType())
	fmt.Fprintf(&w.sb, "length: %d\n", s.Len())

	w.rule(w.b.tl, w.b.jt, w.b.tr)
	for _, r := range window {
		if r < 0 {
			w.row([]string{"…", "…"}, false)
			continue
		}
		w.row([]string{strconv.Itoa(r), cellText(s, r, cfg)}, false)
	}
	w.rule(w.b.bl, w.b.jb, w.b.br)

	return strings.TrimSuffix(w.sb.String(), "\n")
}
