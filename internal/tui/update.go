package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/floe/internal/filter"
	"github.com/jask/floe/internal/tablestore"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filterInput.Width = max(16, msg.Width-len(m.filterInput.Prompt)-4)
		m.clampCursor()
		return m, nil
	case busMsg:
		m.handleTask(msg.inner)
		return m, m.bus.await()
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// ---------------------------------------------------------------------------
// Background task completions
// ---------------------------------------------------------------------------

func (m *Model) handleTask(msg tea.Msg) {
	switch msg := msg.(type) {
	case loadingStartedMsg:
		m.loading = true
		m.loadingLabel = msg.label
	case loadingFinishedMsg:
		m.loading = false
		m.loadingLabel = ""
	case errorMsg:
		m.setError(msg.text)
	case metadataReadyMsg:
		m.meta = msg.meta
	case dataReadyMsg:
		if msg.gen != m.gens.scan {
			m.log.Debug().Uint64("got", msg.gen).Uint64("want", m.gens.scan).Msg("stale scan dropped")
			return
		}
		m.grid = msg.grid
		m.hasMore = msg.hasMore
		m.clampCursor()
		suffix := ""
		if msg.hasMore {
			suffix = "+"
		}
		m.setStatus(fmt.Sprintf("%d%s rows", len(msg.grid.rows), suffix))
	case manifestsReadyMsg:
		if msg.gen != m.gens.manifest {
			m.log.Debug().Uint64("got", msg.gen).Uint64("want", m.gens.manifest).Msg("stale manifest load dropped")
			return
		}
		m.manSummaries = msg.summaries
		m.manFiles = nil
		if m.manCursor >= len(m.manSummaries) {
			m.manCursor = max(0, len(m.manSummaries)-1)
		}
	case fileStatsReadyMsg:
		if msg.gen != m.gens.manifest {
			return
		}
		m.manFiles = msg.groups
		m.manifestsFresh = true
		m.manifestsPending = false
	case manifestsFailedMsg:
		if msg.gen != m.gens.manifest {
			return
		}
		// Stays stale so the next tab visit retries.
		m.manifestsPending = false
	case totalRowCountMsg:
		if msg.gen != m.gens.count {
			return
		}
		m.totalRows = msg.total
		m.totalKnown = true
	}
}

// ---------------------------------------------------------------------------
// Key handling
// ---------------------------------------------------------------------------

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.filterFocused {
		return m.handleFilterKey(msg)
	}
	if m.showColumns {
		return m.handleColumnSelectorKey(msg)
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "?":
		m.showHelp = true
		return m, nil
	case "tab":
		m.switchTab((m.activeTab + 1) % tabCount)
		return m, nil
	case "shift+tab":
		m.switchTab((m.activeTab + tabCount - 1) % tabCount)
		return m, nil
	case "1", "2", "3", "4", "5":
		m.switchTab(int(msg.String()[0] - '1'))
		return m, nil
	case "/":
		m.filterFocused = true
		m.filterErr = ""
		m.filterInput.SetValue(m.filterText)
		m.filterInput.CursorEnd()
		return m, m.filterInput.Focus()
	case "r":
		m.spawnScan()
		return m, nil
	case "m":
		m.increaseLimit()
		return m, nil
	}

	switch m.activeTab {
	case tabData:
		return m.handleDataKey(msg)
	case tabSchema:
		m.schemaOffset = scrollBy(m.schemaOffset, msg)
		return m, nil
	case tabSnapshots:
		return m.handleSnapshotsKey(msg)
	case tabFiles:
		return m.handleManifestsKey(msg)
	case tabProperties:
		m.propOffset = scrollBy(m.propOffset, msg)
		return m, nil
	}
	return m, nil
}

func (m *Model) switchTab(tab int) {
	m.activeTab = tab
	if tab == tabFiles {
		m.ensureManifestsLoaded()
	}
}

func scrollBy(offset int, msg tea.KeyMsg) int {
	switch msg.String() {
	case "up", "k":
		offset--
	case "down", "j":
		offset++
	case "pgup":
		offset -= 10
	case "pgdown":
		offset += 10
	case "home", "g":
		offset = 0
	}
	return max(0, offset)
}

// ---------------------------------------------------------------------------
// Data tab
// ---------------------------------------------------------------------------

func (m *Model) handleDataKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.cursor--
	case "down", "j":
		m.cursor++
	case "pgup":
		m.cursor -= m.dataPageRows()
	case "pgdown":
		m.cursor += m.dataPageRows()
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = len(m.grid.rows) - 1
	case "left", "h":
		m.colOffset = max(0, m.colOffset-1)
	case "right", "l":
		if m.colOffset < len(m.visibleColumnIdx())-1 {
			m.colOffset++
		}
	case "c":
		m.openColumnSelector()
	}
	m.clampCursor()
	return m, nil
}

// increaseLimit grows the page by one page size and rescans. A no-op
// when the current result is already complete.
func (m *Model) increaseLimit() {
	if m.noLimit || !m.hasMore {
		return
	}
	m.limit += m.pageSize
	m.spawnScan()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.grid.rows) {
		m.cursor = len(m.grid.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	page := m.dataPageRows()
	if m.cursor < m.rowOffset {
		m.rowOffset = m.cursor
	}
	if m.cursor >= m.rowOffset+page {
		m.rowOffset = m.cursor - page + 1
	}
	if m.rowOffset < 0 {
		m.rowOffset = 0
	}
}

// ---------------------------------------------------------------------------
// Filter bar
// ---------------------------------------------------------------------------

func (m *Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.filterFocused = false
		m.filterErr = ""
		m.filterInput.Blur()
		return m, nil
	case tea.KeyEnter:
		m.submitFilter()
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

// submitFilter compiles and applies the filter text. An empty text
// clears the filter; either way the page limit resets and a fresh scan
// starts. Compile errors keep the bar open with the message shown.
func (m *Model) submitFilter() {
	text := strings.TrimSpace(m.filterInput.Value())
	if text == "" {
		m.pred = nil
		m.filterText = ""
	} else {
		pred, err := filter.Compile(text)
		if err != nil {
			m.filterErr = err.Error()
			m.setError("filter error: " + err.Error())
			return
		}
		m.pred = pred
		m.filterText = text
	}
	m.filterErr = ""
	m.filterFocused = false
	m.filterInput.Blur()
	m.limit = m.initialLimit()
	m.cursor = 0
	m.rowOffset = 0
	m.spawnScan()
}

func (m *Model) initialLimit() int {
	return m.pageSize
}

// ---------------------------------------------------------------------------
// Snapshots tab
// ---------------------------------------------------------------------------

func (m *Model) handleSnapshotsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snaps := m.sortedSnapshots()
	switch msg.String() {
	case "up", "k":
		m.snapCursor = max(0, m.snapCursor-1)
	case "down", "j":
		if m.snapCursor < len(snaps)-1 {
			m.snapCursor++
		}
	case "home", "g":
		m.snapCursor = 0
	case "enter":
		m.selectSnapshot(snaps)
	}
	return m, nil
}

// selectSnapshot pins the data view to the highlighted snapshot, or
// back to the live head when the highlighted one is the head. Either
// way the projection resets, the page limit resets, the schema pin
// follows the snapshot, manifests go stale, and a fresh count starts.
func (m *Model) selectSnapshot(snaps []tablestore.SnapshotInfo) {
	if m.snapCursor >= len(snaps) {
		return
	}
	sel := snaps[m.snapCursor]

	if m.meta.CurrentSnapshotID != nil && sel.SnapshotID == *m.meta.CurrentSnapshotID {
		m.snapshotID = nil
		m.pinnedSchemaID = nil
	} else {
		id := sel.SnapshotID
		m.snapshotID = &id
		m.pinnedSchemaID = sel.SchemaID
	}

	m.columns = nil
	m.colMask = nil
	m.limit = m.initialLimit()
	m.cursor = 0
	m.rowOffset = 0
	m.colOffset = 0
	m.invalidateManifests()
	if m.activeTab == tabFiles {
		m.ensureManifestsLoaded()
	}
	m.spawnCount()
	m.spawnScan()
}

// ---------------------------------------------------------------------------
// Manifests tab
// ---------------------------------------------------------------------------

// handleManifestsKey drives the two panes: the manifest list on the
// left, the selected manifest's files on the right. Left/right move
// focus; up/down move within the focused pane.
func (m *Model) handleManifestsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h", "[":
		m.focusRight = false
	case "right", "l", "]":
		m.focusRight = true
	case "up", "k":
		if m.focusRight {
			m.fileCursor = max(0, m.fileCursor-1)
		} else {
			m.setManCursor(m.manCursor - 1)
		}
	case "down", "j":
		if m.focusRight {
			if m.fileCursor < len(m.selectedFiles())-1 {
				m.fileCursor++
			}
		} else {
			m.setManCursor(m.manCursor + 1)
		}
	case "enter":
		if m.focusRight {
			m.fileDetail = !m.fileDetail
		} else {
			m.focusRight = true
		}
	case "home", "g":
		if m.focusRight {
			m.fileCursor = 0
		} else {
			m.setManCursor(0)
		}
	}
	return m, nil
}

func (m *Model) setManCursor(v int) {
	if v < 0 {
		v = 0
	}
	if v > len(m.manSummaries)-1 {
		v = len(m.manSummaries) - 1
	}
	if v != m.manCursor {
		m.manCursor = v
		m.fileCursor = 0
		m.fileDetail = false
	}
}

// selectedFiles returns the file stats of the manifest under the
// cursor, nil while stats are still in flight.
func (m *Model) selectedFiles() []tablestore.DataFileStat {
	if m.manFiles == nil || m.manCursor >= len(m.manFiles) {
		return nil
	}
	return m.manFiles[m.manCursor]
}

// ---------------------------------------------------------------------------
// Column selector
// ---------------------------------------------------------------------------

// openColumnSelector offers the already-fetched grid columns for
// masking. Nothing here touches the scan projection.
func (m *Model) openColumnSelector() {
	if len(m.grid.columns) == 0 {
		return
	}
	m.colSelNames = make([]string, len(m.grid.columns))
	copy(m.colSelNames, m.grid.columns)
	m.colSelPicked = make(map[string]bool, len(m.colSelNames))
	for _, name := range m.colSelNames {
		m.colSelPicked[name] = m.colMask == nil || m.colMask[name]
	}
	m.colSelCursor = 0
	m.showColumns = true
}

func (m *Model) handleColumnSelectorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.showColumns = false
	case "up", "k":
		m.colSelCursor = max(0, m.colSelCursor-1)
	case "down", "j":
		if m.colSelCursor < len(m.colSelNames)-1 {
			m.colSelCursor++
		}
	case " ":
		name := m.colSelNames[m.colSelCursor]
		m.colSelPicked[name] = !m.colSelPicked[name]
	case "a":
		for _, name := range m.colSelNames {
			m.colSelPicked[name] = true
		}
	case "n":
		for _, name := range m.colSelNames {
			m.colSelPicked[name] = false
		}
	case "enter":
		m.applyColumnSelection()
	}
	return m, nil
}

// applyColumnSelection installs the picked set as the display mask.
// All picked means no mask; none picked is rejected. Masking never
// triggers a rescan, it only hides fetched columns.
func (m *Model) applyColumnSelection() {
	picked := 0
	for _, name := range m.colSelNames {
		if m.colSelPicked[name] {
			picked++
		}
	}
	if picked == 0 {
		m.setError("select at least one column")
		return
	}
	if picked == len(m.colSelNames) {
		m.colMask = nil
	} else {
		mask := make(map[string]bool, picked)
		for _, name := range m.colSelNames {
			if m.colSelPicked[name] {
				mask[name] = true
			}
		}
		m.colMask = mask
	}
	m.showColumns = false
	m.colOffset = 0
}
