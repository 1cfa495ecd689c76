package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m *Model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	b.WriteString(m.renderHeader(width))
	b.WriteString("\n")
	b.WriteString(m.renderTabs(width))
	b.WriteString("\n")

	body := m.renderBody(width)
	b.WriteString(body)
	b.WriteString("\n")

	if m.activeTab == tabData {
		b.WriteString(m.renderFilterBar(width))
		b.WriteString("\n")
	}
	b.WriteString(m.renderStatusBar(width))
	b.WriteString("\n")
	b.WriteString(m.renderFooter(width))
	return b.String()
}

func (m *Model) bodyHeight() int {
	h := m.height - 4
	if m.activeTab == tabData {
		h--
	}
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) dataPageRows() int {
	page := m.bodyHeight() - 1
	if page < 1 {
		page = 1
	}
	return page
}

func (m *Model) renderBody(width int) string {
	if m.showHelp {
		return m.fitBody(m.renderHelp(), width)
	}
	if m.showColumns {
		return m.fitBody(m.renderColumnSelector(), width)
	}

	var body string
	switch m.activeTab {
	case tabData:
		body = m.renderData(width)
	case tabSchema:
		body = m.renderSchema(width)
	case tabSnapshots:
		body = m.renderSnapshots(width)
	case tabFiles:
		body = m.renderManifests(width)
	case tabProperties:
		body = m.renderProperties(width)
	}
	return m.fitBody(body, width)
}

// fitBody pads or trims the body to exactly bodyHeight lines so the
// status bar and footer stay glued to the bottom.
func (m *Model) fitBody(body string, width int) string {
	lines := strings.Split(body, "\n")
	h := m.bodyHeight()
	if len(lines) > h {
		lines = lines[:h]
	}
	for len(lines) < h {
		lines = append(lines, "")
	}
	for i, line := range lines {
		lines[i] = truncate(line, width)
	}
	return strings.Join(lines, "\n")
}

// ---------------------------------------------------------------------------
// Frame
// ---------------------------------------------------------------------------

func (m *Model) renderHeader(width int) string {
	name := m.tableName
	if name == "" {
		name = "(no table)"
	}
	left := headerAppStyle.Render(appName) + "  " + headerTableStyle.Render(name)

	right := ""
	if !m.viewingHead() {
		right = pinMarkerStyle.Render(fmt.Sprintf("@ snapshot %d", *m.snapshotID))
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}
	return headerBarStyle.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m *Model) renderTabs(width int) string {
	parts := make([]string, 0, tabCount)
	for i, name := range tabNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if i == m.activeTab {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, inactiveTabStyle.Render(label))
		}
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	return padRight(row, width)
}

func (m *Model) renderFilterBar(width int) string {
	if m.filterFocused {
		line := m.filterInput.View()
		if m.filterErr != "" {
			line += "  " + errorStyle.Render(m.filterErr)
		}
		return truncate(line, width)
	}
	if m.filterText != "" {
		return truncate(filterPromptStyle.Render("filter: ")+m.filterText, width)
	}
	return dimStyle.Render("/ to filter")
}

func (m *Model) renderStatusBar(width int) string {
	var parts []string

	if m.loading {
		parts = append(parts, loadingStyle.Render("⣾ "+m.loadingLabel))
	}
	if m.status != "" {
		if m.statusErr {
			parts = append(parts, errorStyle.Render(m.status))
		} else {
			parts = append(parts, m.status)
		}
	}
	if m.totalKnown {
		parts = append(parts, fmt.Sprintf("table total %s", formatCount(m.totalRows)))
	}
	if len(m.grid.rows) > 0 && m.activeTab == tabData {
		parts = append(parts, fmt.Sprintf("row %d/%d", m.cursor+1, len(m.grid.rows)))
	}
	return statusBarStyle.Width(width).Render(strings.Join(parts, "  ·  "))
}

func (m *Model) renderFooter(width int) string {
	pairs := m.footerKeys()
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, helpKeyStyle.Render(pairs[i])+" "+helpDescStyle.Render(pairs[i+1]))
	}
	return footerStyle.Width(width).Render(strings.Join(parts, "  "))
}

func (m *Model) footerKeys() []string {
	if m.filterFocused {
		return []string{"enter", "apply", "esc", "cancel"}
	}
	if m.showColumns {
		return []string{"space", "toggle", "a", "all", "n", "none", "enter", "apply", "esc", "close"}
	}
	switch m.activeTab {
	case tabData:
		keys := []string{"↑↓", "move", "←→", "columns", "/", "filter", "c", "pick columns"}
		if m.hasMore && !m.noLimit {
			keys = append(keys, "m", "more rows")
		}
		return append(keys, "?", "help", "q", "quit")
	case tabSnapshots:
		return []string{"↑↓", "move", "enter", "view snapshot", "?", "help", "q", "quit"}
	case tabFiles:
		if m.focusRight {
			return []string{"↑↓", "move", "enter", "file detail", "←", "manifests", "?", "help", "q", "quit"}
		}
		return []string{"↑↓", "move", "→", "files", "?", "help", "q", "quit"}
	default:
		return []string{"tab", "next tab", "r", "refresh", "?", "help", "q", "quit"}
	}
}

// ---------------------------------------------------------------------------
// Data tab
// ---------------------------------------------------------------------------

const maxCellWidth = 32

func (m *Model) renderData(width int) string {
	cols := m.visibleColumnIdx()
	if len(cols) == 0 {
		if m.loading {
			return dimStyle.Render("loading…")
		}
		return dimStyle.Render("no data")
	}

	widths := m.columnWidths(cols)
	first, last := m.fitColumns(widths, width)

	var b strings.Builder

	var header strings.Builder
	for v := first; v <= last; v++ {
		header.WriteString(cellText(m.grid.columns[cols[v]], widths[v]))
		header.WriteString("  ")
	}
	b.WriteString(tableHeaderStyle.Render(strings.TrimRight(header.String(), " ")))
	b.WriteString("\n")

	page := m.dataPageRows()
	start := window(m.rowOffset, page, len(m.grid.rows))
	end := start + page
	if end > len(m.grid.rows) {
		end = len(m.grid.rows)
	}

	for r := start; r < end; r++ {
		var row strings.Builder
		for v := first; v <= last; v++ {
			cell := m.grid.rows[r][cols[v]]
			text := cellText(cell, widths[v])
			if cell == "NULL" && r != m.cursor {
				text = nullCellStyle.Render(text)
			}
			row.WriteString(text)
			row.WriteString("  ")
		}
		line := strings.TrimRight(row.String(), " ")
		if r == m.cursor {
			line = cursorRowStyle.Render(padRight(line, width))
		}
		b.WriteString(line)
		if r < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// columnWidths sizes each visible column to its header and the widest
// cell in the visible window, capped so one wide value cannot eat the
// screen.
func (m *Model) columnWidths(cols []int) []int {
	widths := make([]int, len(cols))
	for v, c := range cols {
		widths[v] = len(m.grid.columns[c])
	}

	page := m.dataPageRows()
	start := window(m.rowOffset, page, len(m.grid.rows))
	end := start + page
	if end > len(m.grid.rows) {
		end = len(m.grid.rows)
	}
	for r := start; r < end; r++ {
		for v, c := range cols {
			if n := len(m.grid.rows[r][c]); n > widths[v] {
				widths[v] = n
			}
		}
	}
	for v := range widths {
		if widths[v] > maxCellWidth {
			widths[v] = maxCellWidth
		}
		if widths[v] < 2 {
			widths[v] = 2
		}
	}
	return widths
}

// fitColumns picks the contiguous visible-column range starting at the
// horizontal offset that fits the width.
func (m *Model) fitColumns(widths []int, width int) (first, last int) {
	first = m.colOffset
	if first >= len(widths) {
		first = len(widths) - 1
	}
	if first < 0 {
		first = 0
	}
	used := 0
	last = first
	for c := first; c < len(widths); c++ {
		used += widths[c] + 2
		if used > width && c > first {
			break
		}
		last = c
	}
	return first, last
}
