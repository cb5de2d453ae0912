// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// NodeState is how a row's expansion marker is drawn.
type NodeState int

const (
	NodeLeaf NodeState = iota
	NodeCollapsed
	NodeExpanded
	NodeLoading
)

// TreeRow is one visible ingredient line.
type TreeRow struct {
	Depth     int
	Name      string
	Quantity  int
	UnitPrice string
	Cost      decimal.Decimal
	Complete  bool
	Share     decimal.Decimal
	State     NodeState
	Stale     bool

	// Stock columns are drawn when HasStock is set.
	HasStock bool
	Owned    int
	Missing  int
}

// TreeComponent renders the ingredient table with a cursor and a
// scrolling window.
type TreeComponent struct {
	rows   []TreeRow
	cursor int
	height int
	offset int
}

// NewTreeComponent creates a tree showing at most height rows.
func NewTreeComponent(height int) *TreeComponent {
	return &TreeComponent{height: max(height, 1)}
}

// SetRows replaces the rows and clamps the cursor.
func (t *TreeComponent) SetRows(rows []TreeRow) {
	t.rows = rows
	t.SetCursor(t.cursor)
}

// SetCursor moves the highlighted row and scrolls it into view.
func (t *TreeComponent) SetCursor(i int) {
	t.cursor = min(max(i, 0), max(len(t.rows)-1, 0))
	t.scroll()
}

// SetHeight changes how many rows fit in the window.
func (t *TreeComponent) SetHeight(h int) {
	t.height = max(h, 1)
	t.scroll()
}

// Cursor returns the highlighted row index.
func (t *TreeComponent) Cursor() int {
	return t.cursor
}

func (t *TreeComponent) scroll() {
	if t.cursor < t.offset {
		t.offset = t.cursor
	}
	if t.cursor >= t.offset+t.height {
		t.offset = t.cursor - t.height + 1
	}
	t.offset = min(t.offset, max(len(t.rows)-t.height, 0))
}

// View renders the visible window. spinner is drawn as the marker of
// loading rows.
func (t *TreeComponent) View(spinner string) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	cursorStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#374151"))

	if len(t.rows) == 0 {
		return dimStyle.Render("No ingredients")
	}

	stock := t.rows[0].HasStock

	var sb strings.Builder
	header := fmt.Sprintf("  %-34s %6s %12s %14s %7s", "Ingredient", "Qty", "Unit", "Cost", "Share")
	if stock {
		header += fmt.Sprintf(" %6s %7s", "Owned", "Missing")
	}
	sb.WriteString(headerStyle.Render(header))
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("  " + strings.Repeat("─", lipgloss.Width(header)-2)))
	sb.WriteString("\n")

	end := min(t.offset+t.height, len(t.rows))
	for i := t.offset; i < end; i++ {
		r := t.rows[i]

		name := strings.Repeat("  ", r.Depth) + marker(r.State, spinner) + " " + r.Name
		cost := r.Cost.StringFixed(0)
		if !r.Complete {
			cost += "*"
		}
		unit := r.UnitPrice
		if r.Stale {
			unit = "!" + unit
		}

		line := fmt.Sprintf("  %-34s %6d %12s %14s %6s%%", truncate(name, 34), r.Quantity, unit, cost, r.Share.StringFixed(1))
		if stock {
			line += fmt.Sprintf(" %6d %7d", r.Owned, r.Missing)
		}

		switch {
		case i == t.cursor:
			line = cursorStyle.Render(line)
		case r.Stale:
			line = warnStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if len(t.rows) > t.height {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  %d-%d of %d", t.offset+1, end, len(t.rows))))
		sb.WriteString("\n")
	}
	return sb.String()
}

func marker(s NodeState, spinner string) string {
	switch s {
	case NodeCollapsed:
		return "▸"
	case NodeExpanded:
		return "▾"
	case NodeLoading:
		return spinner
	default:
		return "·"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
