package complete

import (
	"strings"
	"unicode/utf8"
)

// minDropdownWidth is the narrowest content width of a dropdown.
const minDropdownWidth = 20

// Dropdown is the placement of the visible suggestion window. Coordinates
// are zero-based terminal cells.
type Dropdown struct {
	Row     int
	Col     int
	Width   int
	Height  int
	Entries []DropdownEntry
}

// DropdownEntry is one rendered row.
type DropdownEntry struct {
	Text     string
	Index    int
	Selected bool
}

// Layout places the dropdown relative to the cursor inside a maxRow by
// maxCol screen. It opens below the cursor when there is room and above it
// otherwise, and is nudged left so it never runs past maxCol. ok is false
// while the engine is hidden.
func (e *Engine) Layout(cursorRow, cursorCol, maxRow, maxCol int) (d Dropdown, ok bool) {
	if !e.visible || len(e.suggestions) == 0 {
		return Dropdown{}, false
	}

	height := min(e.window, len(e.suggestions))
	start := e.offset
	end := min(start+height, len(e.suggestions))

	d.Height = height
	if cursorRow+height+1 < maxRow {
		d.Row = cursorRow + 1
	} else {
		d.Row = max(0, cursorRow-height)
	}

	content := minDropdownWidth
	for _, s := range e.suggestions[start:end] {
		content = max(content, utf8.RuneCountInString(s))
	}
	d.Width = content + 2

	d.Col = cursorCol
	if cursorCol+d.Width > maxCol {
		d.Col = max(0, maxCol-d.Width)
	}

	for i := start; i < end; i++ {
		d.Entries = append(d.Entries, DropdownEntry{
			Text:     e.suggestions[i],
			Index:    i,
			Selected: i == e.selected,
		})
	}
	return d, true
}

// Lines renders each entry padded to the dropdown width, one space of
// margin on either side.
func (d Dropdown) Lines() []string {
	lines := make([]string, 0, len(d.Entries))
	inner := d.Width - 2
	for _, entry := range d.Entries {
		pad := max(0, inner-utf8.RuneCountInString(entry.Text))
		lines = append(lines, " "+entry.Text+strings.Repeat(" ", pad)+" ")
	}
	return lines
}
