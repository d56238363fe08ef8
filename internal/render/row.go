package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/ajramos/leavebehind/internal/config"
	"github.com/derailed/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// RowKind selects how a row is drawn
type RowKind int

const (
	RowMessage RowKind = iota
	RowPlaceholder
)

// Row is the plain display state of one list row. Renderers read it; nothing
// in a Row knows how it will be drawn.
type Row struct {
	ID       string
	Kind     RowKind
	Sender   string
	Subject  string
	Snippet  string
	Received time.Time
	Labels   []string
	Selected bool
	// UndoText is the description shown while the row is a placeholder
	UndoText string
}

// Renderer turns rows into terminal text
type Renderer interface {
	Render(row Row, width int) (string, tcell.Color)
	MeasureHeight(content string, width int) int
}

// Palette holds the colors of list rows
type Palette struct {
	Normal      tcell.Color
	Selected    tcell.Color
	Placeholder tcell.Color
	UndoKey     tcell.Color
	Error       tcell.Color
}

// NewPalette creates the default palette
func NewPalette() *Palette {
	p := &Palette{}
	p.UpdateFromStyles(config.DefaultColors())
	return p
}

// UpdateFromStyles updates colors from configuration
func (p *Palette) UpdateFromStyles(colors *config.ColorsConfig) {
	p.Normal = colors.List.NormalColor.Color()
	p.Selected = colors.List.SelectedColor.Color()
	p.Placeholder = colors.List.PlaceholderColor.Color()
	p.UndoKey = colors.List.UndoKeyColor.Color()
	p.Error = colors.List.ErrorColor.Color()
}

// TextRenderer draws fixed-width columns: Sender | Subject [chips] | Date
type TextRenderer struct {
	palette *Palette
	undoKey string
	now     func() time.Time
	// system labels are hidden from the chips
	hidden map[string]bool
}

// NewTextRenderer creates a renderer with the default palette
func NewTextRenderer() *TextRenderer {
	return &TextRenderer{
		palette: NewPalette(),
		undoKey: "u",
		now:     time.Now,
		hidden: map[string]bool{
			"INBOX": true, "TRASH": true, "SPAM": true, "STARRED": true, "MUTED": true,
		},
	}
}

// SetUndoKey sets the key advertised on placeholders
func (r *TextRenderer) SetUndoKey(key string) { r.undoKey = key }

// SetClock overrides the time source used for relative dates
func (r *TextRenderer) SetClock(now func() time.Time) { r.now = now }

// Palette returns the colors in use
func (r *TextRenderer) Palette() *Palette { return r.palette }

// UpdateFromConfig updates the renderer with new configuration
func (r *TextRenderer) UpdateFromConfig(colors *config.ColorsConfig) {
	r.palette.UpdateFromStyles(colors)
}

// Render formats row for a line of width cells
func (r *TextRenderer) Render(row Row, width int) (string, tcell.Color) {
	if width < 40 {
		width = 40
	}
	if row.Kind == RowPlaceholder {
		return r.renderPlaceholder(row, width), r.palette.Placeholder
	}

	sender := extractSenderName(row.Sender)
	if sender == "" {
		sender = "(No sender)"
	}
	subject := row.Subject
	if subject == "" {
		subject = "(No subject)"
	}
	date := r.formatRelativeTime(row.Received)

	senderWidth := 22
	dateWidth := 8
	suffix := r.chips(row.Labels)
	suffixWidth := runewidth.StringWidth(suffix)
	// account for separators and spaces (" | ", " | ") = 6
	subjectWidth := width - senderWidth - dateWidth - 6 - suffixWidth
	if subjectWidth < 10 {
		subjectWidth = 10
	}

	text := fmt.Sprintf("%s | %s%s | %s",
		fitWidth(sender, senderWidth), fitWidth(subject, subjectWidth), suffix, fitWidth(date, dateWidth))
	color := r.palette.Normal
	if row.Selected {
		color = r.palette.Selected
	}
	return text, color
}

func (r *TextRenderer) renderPlaceholder(row Row, width int) string {
	action := fmt.Sprintf("[%s] Undo", r.undoKey)
	textWidth := width - runewidth.StringWidth(action) - 2
	if textWidth < 1 {
		textWidth = 1
	}
	return fitWidth("  "+row.UndoText, textWidth) + rightFit(action, width-textWidth)
}

func (r *TextRenderer) chips(labels []string) string {
	var b strings.Builder
	shown := 0
	for _, l := range labels {
		if r.hidden[l] {
			continue
		}
		if shown == 2 {
			b.WriteString(" [+]")
			break
		}
		fmt.Fprintf(&b, " [%s]", l)
		shown++
	}
	return b.String()
}

// MeasureHeight returns how many lines content wraps to at width
func (r *TextRenderer) MeasureHeight(content string, width int) int {
	return MeasureHeight(content, width)
}

// MeasureHeight returns how many lines content wraps to at width
func MeasureHeight(content string, width int) int {
	if width <= 0 {
		return 1
	}
	lines := 0
	for _, line := range strings.Split(content, "\n") {
		w := runewidth.StringWidth(line)
		if w == 0 {
			lines++
			continue
		}
		lines += (w + width - 1) / width
	}
	return lines
}

func extractSenderName(from string) string {
	if from == "" {
		return ""
	}
	// Handle "Name <email@domain.com>" format
	if i := strings.Index(from, "<"); i > 0 && strings.Contains(from, ">") {
		return strings.Trim(strings.TrimSpace(from[:i]), `"`)
	}
	return from
}

// fitWidth truncates and pads on the right to fit a fixed width
func fitWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	// Truncate by display width with ellipsis
	s = runewidth.Truncate(s, width, "...")
	// Pad on the right to exact width
	pad := width - runewidth.StringWidth(s)
	if pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

// rightFit truncates and right-aligns/pads to width
func rightFit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	// Truncate from the left by display width
	s = runewidth.TruncateLeft(s, width, "")
	// Pad on the left
	pad := width - runewidth.StringWidth(s)
	if pad > 0 {
		s = strings.Repeat(" ", pad) + s
	}
	return s
}

func (r *TextRenderer) formatRelativeTime(date time.Time) string {
	if date.IsZero() {
		return ""
	}
	diff := r.now().Sub(date)

	if diff < time.Minute {
		return "now"
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh", int(diff.Hours()))
	} else if diff < 7*24*time.Hour {
		return fmt.Sprintf("%dd", int(diff.Hours()/24))
	}
	return date.Format("Jan 2")
}
