package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jask/floe/internal/tablestore"
)

// ---------------------------------------------------------------------------
// Schema tab
// ---------------------------------------------------------------------------

func (m *Model) renderSchema(width int) string {
	sc := m.displaySchema()
	if sc == nil {
		return dimStyle.Render("no metadata yet")
	}

	var lines []string
	title := fmt.Sprintf("schema %d", sc.SchemaID)
	if m.pinnedSchemaID != nil {
		title += pinMarkerStyle.Render("  (pinned by snapshot)")
	} else if m.meta != nil && sc.SchemaID == m.meta.CurrentSchema.SchemaID {
		title += dimStyle.Render("  (current)")
	}
	lines = append(lines, sectionTitleStyle.Render(title), "")

	header := fmt.Sprintf("%s  %s  %s  %s",
		cellText("id", 5), cellText("name", 28), cellText("type", 24), "req")
	lines = append(lines, tableHeaderStyle.Render(header))
	for _, f := range sc.Fields {
		lines = appendFieldLines(lines, f, 0)
	}

	page := m.bodyHeight()
	m.schemaOffset = window(m.schemaOffset, page, len(lines))
	return strings.Join(sliceWindow(lines, m.schemaOffset, page), "\n")
}

func appendFieldLines(lines []string, f tablestore.FieldInfo, depth int) []string {
	indent := strings.Repeat("  ", depth)
	req := " "
	if f.Required {
		req = "*"
	}
	line := fmt.Sprintf("%s  %s  %s  %s",
		cellText(fmt.Sprintf("%d", f.ID), 5),
		cellText(indent+f.Name, 28),
		cellText(f.Type, 24),
		req)
	if f.Doc != "" {
		line += "  " + dimStyle.Render(f.Doc)
	}
	lines = append(lines, line)
	for _, child := range f.Children {
		lines = appendFieldLines(lines, child, depth+1)
	}
	return lines
}

// ---------------------------------------------------------------------------
// Snapshots tab
// ---------------------------------------------------------------------------

func (m *Model) renderSnapshots(width int) string {
	snaps := m.sortedSnapshots()
	if len(snaps) == 0 {
		return dimStyle.Render("table has no snapshots")
	}

	var lines []string
	header := fmt.Sprintf("   %s  %s  %s  %s  %s",
		cellText("snapshot", 20), cellText("committed (UTC)", 19),
		cellText("operation", 10), cellText("records", 10), "summary")
	lines = append(lines, tableHeaderStyle.Render(header))

	for i, snap := range snaps {
		marker := "  "
		if m.meta.CurrentSnapshotID != nil && snap.SnapshotID == *m.meta.CurrentSnapshotID {
			marker = headMarkerStyle.Render("● ")
		}
		if m.snapshotID != nil && snap.SnapshotID == *m.snapshotID {
			marker = pinMarkerStyle.Render("▸ ")
		}

		line := fmt.Sprintf("%s %s  %s  %s  %s  %s",
			marker,
			cellText(fmt.Sprintf("%d", snap.SnapshotID), 20),
			cellText(formatTimestampMs(snap.TimestampMs), 19),
			cellText(snap.Operation, 10),
			cellText(snap.Summary["total-records"], 10),
			truncate(summaryHighlights(snap.Summary), 40))
		if i == m.snapCursor {
			line = cursorRowStyle.Render(padRight(line, width))
		}
		lines = append(lines, line)
	}

	page := m.bodyHeight()
	offset := window(m.snapCursor-page/2, page, len(lines))
	return strings.Join(sliceWindow(lines, offset, page), "\n")
}

// summaryHighlights picks the interesting commit summary counters.
func summaryHighlights(summary map[string]string) string {
	var parts []string
	for _, key := range []string{"added-records", "deleted-records", "added-data-files", "deleted-data-files"} {
		if v, ok := summary[key]; ok && v != "0" {
			parts = append(parts, key+"="+v)
		}
	}
	return strings.Join(parts, " ")
}

// ---------------------------------------------------------------------------
// Manifests tab
// ---------------------------------------------------------------------------

// renderManifests lays out two panes: the snapshot's manifest list on
// the left and the file stats of the manifest under the cursor on the
// right. Enter on a file swaps the right pane for its detail view.
func (m *Model) renderManifests(width int) string {
	if m.manifestsPending && len(m.manSummaries) == 0 {
		return dimStyle.Render("loading manifests…")
	}
	if len(m.manSummaries) == 0 {
		return dimStyle.Render("no manifests for this snapshot")
	}

	leftWidth := width * 2 / 5
	if leftWidth < 30 {
		leftWidth = 30
	}
	rightWidth := width - leftWidth - 3
	if rightWidth < 20 {
		rightWidth = 20
	}

	left := m.renderManifestList(leftWidth)
	right := m.renderManifestFiles(rightWidth)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "   ", right)
}

func (m *Model) renderManifestList(width int) string {
	title := "manifests"
	if !m.focusRight {
		title = sectionTitleStyle.Render(title)
	} else {
		title = dimStyle.Render(title)
	}
	lines := []string{padRight(title, width)}

	for i, s := range m.manSummaries {
		line := fmt.Sprintf("%s  %s  %s",
			cellText(pathTail(s.Path, 1), max(12, width-28)),
			cellText(s.Content, 8),
			cellText(fmt.Sprintf("+%d ~%d -%d", s.AddedFiles, s.ExistingFiles, s.DeletedFiles), 14))
		line = truncate(line, width)
		if i == m.manCursor {
			if m.focusRight {
				line = dimStyle.Render("▸ " + line)
			} else {
				line = cursorRowStyle.Render(padRight("▸ "+line, width))
			}
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}

	page := m.bodyHeight() - 1
	m.manOffset = window(m.manCursor-page/2, page, len(lines)-1)
	body := append(lines[:1:1], sliceWindow(lines[1:], m.manOffset, page)...)
	return strings.Join(body, "\n")
}

func (m *Model) renderManifestFiles(width int) string {
	title := "data files"
	if m.focusRight {
		title = sectionTitleStyle.Render(title)
	} else {
		title = dimStyle.Render(title)
	}

	files := m.selectedFiles()
	if m.manFiles == nil {
		return title + "\n" + dimStyle.Render("loading file stats…")
	}
	if len(files) == 0 {
		return title + "\n" + dimStyle.Render("no file stats")
	}
	if m.fileDetail && m.fileCursor < len(files) {
		return title + "\n" + m.renderFileDetail(files[m.fileCursor], width)
	}

	lines := []string{title}
	for i, f := range files {
		line := fmt.Sprintf("%s  %s  %s rows  %s",
			cellText(pathTail(f.Path, 2), max(12, width-32)),
			cellText(f.Format, 7),
			cellText(formatCount(f.RecordCount), 6),
			formatBytes(f.SizeBytes))
		line = truncate(line, width-2)
		if i == m.fileCursor && m.focusRight {
			line = cursorRowStyle.Render(padRight(line, width-2))
		}
		lines = append(lines, line)
	}

	page := m.bodyHeight() - 1
	offset := window(m.fileCursor-page/2, page, len(lines)-1)
	body := append(lines[:1:1], sliceWindow(lines[1:], offset, page)...)
	return strings.Join(body, "\n")
}

// renderFileDetail shows the column-level stats of one data file.
func (m *Model) renderFileDetail(f tablestore.DataFileStat, width int) string {
	var lines []string
	add := func(k, v string) {
		lines = append(lines, fmt.Sprintf("%s  %s", cellText(k, 14), truncate(v, width-16)))
	}

	add("path", f.Path)
	add("format", f.Format)
	add("rows", formatCount(f.RecordCount))
	add("size", formatBytes(f.SizeBytes))
	if len(f.Partition) > 0 {
		add("partition", kvList(stringKV(f.Partition)))
	}
	if len(f.NullCounts) > 0 {
		add("null counts", kvList(intKV(f.NullCounts)))
	}
	if len(f.LowerBounds) > 0 {
		add("lower bounds", kvList(boundsKV(f.LowerBounds)))
	}
	if len(f.UpperBounds) > 0 {
		add("upper bounds", kvList(boundsKV(f.UpperBounds)))
	}
	lines = append(lines, "", dimStyle.Render("enter to go back"))
	return strings.Join(lines, "\n")
}

func stringKV(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return parts
}

func intKV(m map[int]int64) []string {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("#%d=%d", k, m[k])
	}
	return parts
}

func boundsKV(m map[int]string) []string {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("#%d=%s", k, m[k])
	}
	return parts
}

func kvList(parts []string) string {
	return strings.Join(parts, " ")
}

// ---------------------------------------------------------------------------
// Properties tab
// ---------------------------------------------------------------------------

func (m *Model) renderProperties(width int) string {
	if m.meta == nil {
		return dimStyle.Render("no metadata yet")
	}

	var lines []string
	add := func(k, v string) {
		lines = append(lines, fmt.Sprintf("%s  %s", cellText(k, 26), truncate(v, width-28)))
	}

	lines = append(lines, sectionTitleStyle.Render("table"))
	add("location", m.meta.Location)
	add("table uuid", m.meta.TableUUID)
	add("format version", fmt.Sprintf("%d", m.meta.FormatVersion))
	add("last updated", formatTimestampMs(m.meta.LastUpdatedMs))
	if m.meta.CurrentSnapshotID != nil {
		add("current snapshot", fmt.Sprintf("%d", *m.meta.CurrentSnapshotID))
	}

	if len(m.meta.PartitionSpecs) > 0 {
		lines = append(lines, "", sectionTitleStyle.Render("partition specs"))
		for _, spec := range m.meta.PartitionSpecs {
			parts := make([]string, len(spec.Fields))
			for i, f := range spec.Fields {
				parts[i] = fmt.Sprintf("%s(%d)→%s", f.Transform, f.SourceID, f.Name)
			}
			desc := strings.Join(parts, ", ")
			if desc == "" {
				desc = "unpartitioned"
			}
			add(fmt.Sprintf("spec %d", spec.SpecID), desc)
		}
	}

	if len(m.meta.SortOrders) > 0 {
		lines = append(lines, "", sectionTitleStyle.Render("sort orders"))
		for _, order := range m.meta.SortOrders {
			parts := make([]string, len(order.Fields))
			for i, f := range order.Fields {
				parts[i] = fmt.Sprintf("%s(%d) %s %s", f.Transform, f.SourceID, f.Direction, f.NullOrder)
			}
			desc := strings.Join(parts, ", ")
			if desc == "" {
				desc = "unsorted"
			}
			add(fmt.Sprintf("order %d", order.OrderID), desc)
		}
	}

	if len(m.meta.Properties) > 0 {
		lines = append(lines, "", sectionTitleStyle.Render("properties"))
		keys := make([]string, 0, len(m.meta.Properties))
		for k := range m.meta.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			add(k, m.meta.Properties[k])
		}
	}

	page := m.bodyHeight()
	m.propOffset = window(m.propOffset, page, len(lines))
	return strings.Join(sliceWindow(lines, m.propOffset, page), "\n")
}

// ---------------------------------------------------------------------------
// Overlays
// ---------------------------------------------------------------------------

func (m *Model) renderColumnSelector() string {
	var b strings.Builder
	b.WriteString(sectionTitleStyle.Render("columns"))
	b.WriteString("\n\n")
	for i, name := range m.colSelNames {
		mark := "[ ]"
		if m.colSelPicked[name] {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s", mark, name)
		if i == m.colSelCursor {
			line = cursorRowStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return modalStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m *Model) renderHelp() string {
	rows := [][2]string{
		{"tab / shift+tab", "cycle tabs"},
		{"1-5", "jump to tab"},
		{"↑↓ / jk", "move cursor"},
		{"←→ / hl", "scroll columns"},
		{"/", "edit filter"},
		{"m", "load more rows"},
		{"c", "pick columns"},
		{"r", "rescan"},
		{"enter", "select snapshot / open file detail"},
		{"?", "toggle help"},
		{"q", "quit"},
	}
	var b strings.Builder
	b.WriteString(sectionTitleStyle.Render("keys"))
	b.WriteString("\n\n")
	for _, row := range rows {
		b.WriteString(helpKeyStyle.Render(padRight(row[0], 18)))
		b.WriteString(helpDescStyle.Render(row[1]))
		b.WriteString("\n")
	}
	return modalStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func sliceWindow(lines []string, offset, page int) []string {
	if offset >= len(lines) {
		return nil
	}
	end := offset + page
	if end > len(lines) {
		end = len(lines)
	}
	return lines[offset:end]
}
