package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jask/floe/internal/filter"
	"github.com/jask/floe/internal/tablestore"
)

func mustCompile(t *testing.T, text string) filter.Predicate {
	t.Helper()
	pred, err := filter.Compile(text)
	if err != nil {
		t.Fatalf("compile %q: %v", text, err)
	}
	return pred
}

func newTestModel(ft *fakeTable) *Model {
	m := New(Options{
		Open:      func(context.Context) (tablestore.Table, error) { return ft, nil },
		TableName: "db.events",
		PageSize:  10,
		Logger:    zerolog.Nop(),
	})
	if ft != nil {
		m.tasks.slot.set(ft)
	}
	m.meta = testMetadata()
	m.width = 100
	m.height = 30
	return m
}

func key(s string) tea.KeyMsg {
	if len(s) == 1 {
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// fill installs a grid as if a scan had completed at the current
// generation.
func (m *Model) fill(rows int, hasMore bool) {
	grid := dataGrid{columns: []string{"id", "name"}}
	for i := 0; i < rows; i++ {
		grid.rows = append(grid.rows, []string{"1", "x"})
	}
	m.handleTask(dataReadyMsg{gen: m.gens.scan, grid: grid, hasMore: hasMore})
}

// ---------------------------------------------------------------------------
// Limit growth
// ---------------------------------------------------------------------------

func TestIncreaseLimitNoOpWhenComplete(t *testing.T) {
	m := newTestModel(&fakeTable{scanRows: 1})
	m.fill(5, false)

	gen := m.gens.scan
	m.increaseLimit()

	if m.limit != 10 {
		t.Fatalf("limit = %d", m.limit)
	}
	if m.gens.scan != gen {
		t.Fatal("no scan should have been spawned")
	}
}

func TestIncreaseLimitGrowsByPageSize(t *testing.T) {
	ft := &fakeTable{scanRows: 1}
	m := newTestModel(ft)
	m.fill(10, true)

	m.increaseLimit()

	if m.limit != 20 {
		t.Fatalf("limit = %d", m.limit)
	}
	msgs := collectUntil(t, m.bus, func(got []tea.Msg) bool {
		return indexOf[dataReadyMsg](got) >= 0
	})
	data := msgs[indexOf[dataReadyMsg](msgs)].(dataReadyMsg)
	if data.gen != m.gens.scan {
		t.Fatalf("gen = %d, want %d", data.gen, m.gens.scan)
	}
	if req := ft.lastScan(); req.Limit == nil || *req.Limit != 20 {
		t.Fatalf("scan limit = %v", req.Limit)
	}
}

func TestIncreaseLimitNoOpWithoutLimit(t *testing.T) {
	m := newTestModel(&fakeTable{})
	m.noLimit = true
	m.fill(10, true)

	gen := m.gens.scan
	m.increaseLimit()
	if m.gens.scan != gen {
		t.Fatal("no scan should have been spawned")
	}
}

// ---------------------------------------------------------------------------
// Staleness
// ---------------------------------------------------------------------------

func TestStaleScanResultDropped(t *testing.T) {
	m := newTestModel(&fakeTable{})
	m.fill(3, false)

	m.gens.scan += 2
	m.handleTask(dataReadyMsg{gen: m.gens.scan - 1, grid: dataGrid{columns: []string{"x"}}, hasMore: true})

	if len(m.grid.rows) != 3 || m.hasMore {
		t.Fatal("stale result must not replace the grid")
	}
}

func TestStaleManifestLoadDropped(t *testing.T) {
	m := newTestModel(&fakeTable{})
	m.gens.manifest = 5
	m.handleTask(manifestsReadyMsg{gen: 4, summaries: []tablestore.ManifestSummary{{Path: "m1.avro"}}})
	m.handleTask(fileStatsReadyMsg{gen: 4, groups: [][]tablestore.DataFileStat{nil}})
	if m.manSummaries != nil || m.manifestsFresh {
		t.Fatal("stale manifests must be dropped")
	}
}

func TestStaleCountDropped(t *testing.T) {
	m := newTestModel(&fakeTable{})
	m.gens.count = 3
	m.handleTask(totalRowCountMsg{gen: 2, total: 99})
	if m.totalKnown {
		t.Fatal("stale count must be dropped")
	}
	m.handleTask(totalRowCountMsg{gen: 3, total: 42})
	if !m.totalKnown || m.totalRows != 42 {
		t.Fatalf("total = %d known=%v", m.totalRows, m.totalKnown)
	}
}

// ---------------------------------------------------------------------------
// Snapshot selection
// ---------------------------------------------------------------------------

func TestSelectSnapshotHeadClearsPin(t *testing.T) {
	m := newTestModel(&fakeTable{scanRows: 1})
	m.snapshotID = int64Ptr(2)
	m.pinnedSchemaID = intPtr(0)
	m.snapCursor = 0 // newest first, snapshot 3 is the head

	m.selectSnapshot(m.sortedSnapshots())

	if m.snapshotID != nil {
		t.Fatalf("snapshotID = %v, want nil for head", *m.snapshotID)
	}
	if m.pinnedSchemaID != nil {
		t.Fatal("schema pin should clear when back on head")
	}
}

func TestSelectSnapshotPinsHistorical(t *testing.T) {
	ft := &fakeTable{scanRows: 1}
	m := newTestModel(ft)
	m.columns = []string{"name"}
	m.limit = 50
	m.hasMore = true
	m.manifestsFresh = true
	m.manSummaries = []tablestore.ManifestSummary{{Path: "m1.avro"}}
	m.totalKnown = true
	m.snapCursor = 1 // snapshot 2

	manGen := m.gens.manifest
	countGen := m.gens.count
	m.selectSnapshot(m.sortedSnapshots())

	if m.snapshotID == nil || *m.snapshotID != 2 {
		t.Fatalf("snapshotID = %v", m.snapshotID)
	}
	if m.pinnedSchemaID == nil || *m.pinnedSchemaID != 0 {
		t.Fatalf("pinned schema = %v", m.pinnedSchemaID)
	}
	if m.columns != nil {
		t.Fatal("projection should reset")
	}
	if m.limit != 10 {
		t.Fatalf("limit = %d, want page size reset", m.limit)
	}
	if m.manifestsFresh || m.manSummaries != nil {
		t.Fatal("manifests should be invalidated")
	}
	if m.gens.manifest == manGen {
		t.Fatal("manifest generation should advance")
	}
	if m.gens.count == countGen || m.totalKnown {
		t.Fatal("a fresh count should be in flight")
	}

	collectUntil(t, m.bus, func(got []tea.Msg) bool {
		return indexOf[dataReadyMsg](got) >= 0
	})
	if req := ft.lastScan(); req.SnapshotID == nil || *req.SnapshotID != 2 {
		t.Fatalf("scan snapshot = %v", req.SnapshotID)
	}
}

func TestDisplaySchemaFollowsPin(t *testing.T) {
	m := newTestModel(&fakeTable{})
	if sc := m.displaySchema(); sc.SchemaID != 1 {
		t.Fatalf("schema = %d, want current", sc.SchemaID)
	}
	m.pinnedSchemaID = intPtr(0)
	if sc := m.displaySchema(); sc.SchemaID != 0 {
		t.Fatalf("schema = %d, want pinned", sc.SchemaID)
	}
	m.pinnedSchemaID = intPtr(99)
	if sc := m.displaySchema(); sc.SchemaID != 1 {
		t.Fatalf("schema = %d, want fallback to current", sc.SchemaID)
	}
}

// ---------------------------------------------------------------------------
// Filter bar
// ---------------------------------------------------------------------------

func TestSubmitFilterCompilesAndRescans(t *testing.T) {
	ft := &fakeTable{scanRows: 1}
	m := newTestModel(ft)
	m.limit = 30
	m.filterFocused = true
	m.filterInput.SetValue("id > 5")

	m.submitFilter()

	if m.pred == nil || m.filterText != "id > 5" {
		t.Fatalf("pred=%v text=%q", m.pred, m.filterText)
	}
	if m.filterFocused {
		t.Fatal("bar should close on success")
	}
	if m.limit != 10 {
		t.Fatalf("limit = %d, want page size reset", m.limit)
	}
	collectUntil(t, m.bus, func(got []tea.Msg) bool {
		return indexOf[dataReadyMsg](got) >= 0
	})
	if ft.lastScan().Filter == nil {
		t.Fatal("scan should carry the compiled filter")
	}
}

func TestSubmitFilterErrorKeepsBarOpen(t *testing.T) {
	ft := &fakeTable{scanRows: 1}
	m := newTestModel(ft)
	m.filterFocused = true
	m.filterInput.SetValue("this is not a filter")

	gen := m.gens.scan
	m.submitFilter()

	if m.filterErr == "" {
		t.Fatal("expected a compile error")
	}
	if !m.filterFocused {
		t.Fatal("bar should stay open on error")
	}
	if !m.statusErr || !strings.Contains(m.status, "filter error") {
		t.Fatalf("status = %q err=%v, compile failure should reach the status bar", m.status, m.statusErr)
	}
	if m.gens.scan != gen || ft.scanCount() != 0 {
		t.Fatal("no scan should have been spawned")
	}
}

func TestSubmitEmptyFilterClearsAndRescans(t *testing.T) {
	ft := &fakeTable{scanRows: 1}
	m := newTestModel(ft)
	m.filterText = "id > 5"
	m.pred = mustCompile(t, "id > 5")
	m.filterFocused = true
	m.filterInput.SetValue("")

	gen := m.gens.scan
	m.submitFilter()

	if m.pred != nil || m.filterText != "" {
		t.Fatal("filter should clear")
	}
	if m.gens.scan == gen {
		t.Fatal("clearing the filter still rescans")
	}
	collectUntil(t, m.bus, func(got []tea.Msg) bool {
		return indexOf[dataReadyMsg](got) >= 0
	})
	if ft.lastScan().Filter != nil {
		t.Fatal("scan should be unfiltered")
	}
}

// ---------------------------------------------------------------------------
// Manifests tab one-shot load
// ---------------------------------------------------------------------------

func TestManifestsTabLoadsOnce(t *testing.T) {
	ft := &fakeTable{manifests: []tablestore.Manifest{
		fakeManifest{summary: tablestore.ManifestSummary{Path: "m1.avro"}},
	}}
	m := newTestModel(ft)

	m.switchTab(tabFiles)
	gen := m.gens.manifest
	if !m.manifestsPending {
		t.Fatal("first visit should spawn a load")
	}

	m.switchTab(tabData)
	m.switchTab(tabFiles)
	if m.gens.manifest != gen {
		t.Fatal("revisiting while pending must not spawn another load")
	}

	msgs := collectUntil(t, m.bus, func(got []tea.Msg) bool {
		return indexOf[fileStatsReadyMsg](got) >= 0
	})
	m.handleTask(msgs[indexOf[manifestsReadyMsg](msgs)])
	m.handleTask(msgs[indexOf[fileStatsReadyMsg](msgs)])
	if !m.manifestsFresh || m.manifestsPending {
		t.Fatal("arrival should settle the tab")
	}

	m.switchTab(tabData)
	m.switchTab(tabFiles)
	if m.gens.manifest != gen {
		t.Fatal("fresh manifests must not reload on revisit")
	}
}

func TestFilesTabRetriesAfterFailedLoad(t *testing.T) {
	ft := &fakeTable{manErr: errors.New("manifest list unavailable")}
	m := newTestModel(ft)

	m.switchTab(tabFiles)
	gen := m.gens.manifest
	msgs := collectUntil(t, m.bus, func(got []tea.Msg) bool {
		return indexOf[loadingFinishedMsg](got) >= 0
	})
	for _, msg := range msgs {
		m.handleTask(msg)
	}
	if m.manifestsPending || m.manifestsFresh {
		t.Fatalf("pending=%v fresh=%v, failure should leave the tab stale",
			m.manifestsPending, m.manifestsFresh)
	}

	// The backing store recovers; revisiting the tab loads again.
	ft.manErr = nil
	m.switchTab(tabData)
	m.switchTab(tabFiles)
	if m.gens.manifest == gen {
		t.Fatal("re-entering after a failure should spawn a fresh load")
	}
	if !m.manifestsPending {
		t.Fatal("retry should mark the load pending")
	}
}

func TestManifestPanesFocusAndFileDetail(t *testing.T) {
	m := newTestModel(&fakeTable{})
	m.activeTab = tabFiles
	m.manSummaries = []tablestore.ManifestSummary{{Path: "m1.avro"}, {Path: "m2.avro"}}
	m.manFiles = [][]tablestore.DataFileStat{
		{{Path: "a.parquet"}, {Path: "b.parquet"}},
		{{Path: "c.parquet"}},
	}
	m.manifestsFresh = true

	m.handleManifestsKey(key("l"))
	if !m.focusRight {
		t.Fatal("l should focus the file pane")
	}
	m.handleManifestsKey(key("down"))
	if m.fileCursor != 1 {
		t.Fatalf("fileCursor = %d, want 1", m.fileCursor)
	}
	m.handleManifestsKey(key("enter"))
	if !m.fileDetail {
		t.Fatal("enter on a file should open its detail")
	}

	m.handleManifestsKey(key("h"))
	if m.focusRight {
		t.Fatal("h should focus the manifest pane")
	}
	m.handleManifestsKey(key("down"))
	if m.manCursor != 1 {
		t.Fatalf("manCursor = %d, want 1", m.manCursor)
	}
	if m.fileCursor != 0 || m.fileDetail {
		t.Fatal("moving to another manifest should reset the file pane")
	}
	if files := m.selectedFiles(); len(files) != 1 || files[0].Path != "c.parquet" {
		t.Fatalf("selectedFiles() = %v", files)
	}
}

// ---------------------------------------------------------------------------
// Column selector
// ---------------------------------------------------------------------------

func TestColumnSelectorMasksDisplayOnly(t *testing.T) {
	m := newTestModel(&fakeTable{})
	m.fill(2, false)

	m.openColumnSelector()
	if !m.showColumns {
		t.Fatal("selector should open")
	}
	if !m.colSelPicked["id"] || !m.colSelPicked["name"] {
		t.Fatalf("initial picks = %v, want all fetched columns", m.colSelPicked)
	}

	gen := m.gens.scan
	m.colSelPicked["name"] = false
	m.applyColumnSelection()

	if m.colMask == nil || !m.colMask["id"] || m.colMask["name"] {
		t.Fatalf("mask = %v", m.colMask)
	}
	if got := m.visibleColumnIdx(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("visible columns = %v, want only id", got)
	}
	if m.gens.scan != gen {
		t.Fatal("masking must never rescan")
	}
	if m.showColumns {
		t.Fatal("selector should close on apply")
	}
}

func TestColumnSelectorAllPickedClearsMask(t *testing.T) {
	m := newTestModel(&fakeTable{})
	m.fill(1, false)
	m.colMask = map[string]bool{"id": true}

	m.openColumnSelector()
	if m.colSelPicked["name"] {
		t.Fatal("masked-out column should start unpicked")
	}
	m.colSelPicked["name"] = true
	m.applyColumnSelection()

	if m.colMask != nil {
		t.Fatalf("mask = %v, want nil when everything is picked", m.colMask)
	}
}

func TestColumnSelectorNeedsFetchedColumns(t *testing.T) {
	m := newTestModel(&fakeTable{})
	m.openColumnSelector()
	if m.showColumns {
		t.Fatal("selector must not open before any data arrives")
	}
}

func TestColumnSelectorRejectsEmptyPick(t *testing.T) {
	m := newTestModel(&fakeTable{})
	m.fill(1, false)
	m.openColumnSelector()
	for name := range m.colSelPicked {
		m.colSelPicked[name] = false
	}

	gen := m.gens.scan
	m.applyColumnSelection()

	if !m.showColumns {
		t.Fatal("selector should stay open")
	}
	if m.gens.scan != gen {
		t.Fatal("no scan should have been spawned")
	}
	if !m.statusErr {
		t.Fatal("expected an error status")
	}
}

func TestIncreaseLimitBoundGlobally(t *testing.T) {
	ft := &fakeTable{scanRows: 1}
	m := newTestModel(ft)
	m.fill(10, true)
	m.activeTab = tabSnapshots

	gen := m.gens.scan
	m.handleKey(key("m"))
	if m.limit != 20 {
		t.Fatalf("limit = %d, want one page more", m.limit)
	}
	if m.gens.scan == gen {
		t.Fatal("m should rescan from any tab")
	}
}

// ---------------------------------------------------------------------------
// Update plumbing
// ---------------------------------------------------------------------------

func TestBusMessagesRearmAwait(t *testing.T) {
	m := newTestModel(&fakeTable{})
	_, cmd := m.Update(busMsg{inner: errorMsg{text: "boom"}})
	if cmd == nil {
		t.Fatal("handling a bus message must re-arm the await command")
	}
	if m.status != "boom" || !m.statusErr {
		t.Fatalf("status = %q err=%v", m.status, m.statusErr)
	}
}

func TestLoadingIndicatorLabelFollowsLastStart(t *testing.T) {
	m := newTestModel(&fakeTable{})
	m.handleTask(loadingStartedMsg{label: "opening table"})
	m.handleTask(loadingStartedMsg{label: "scanning data"})
	if !m.loading || m.loadingLabel != "scanning data" {
		t.Fatalf("loading=%v label=%q", m.loading, m.loadingLabel)
	}
	m.handleTask(loadingFinishedMsg{})
	if m.loading {
		t.Fatal("one finish clears the indicator")
	}
}

func TestQuitKeys(t *testing.T) {
	m := newTestModel(&fakeTable{})
	_, cmd := m.handleKey(key("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	_, cmd = m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
}

func TestViewRendersWithoutData(t *testing.T) {
	m := newTestModel(&fakeTable{})
	if out := m.View(); out == "" {
		t.Fatal("view should render before any data arrives")
	}
	m.fill(3, true)
	out := m.View()
	if out == "" {
		t.Fatal("view should render with data")
	}
}

func TestViewHidesMaskedColumns(t *testing.T) {
	m := newTestModel(&fakeTable{})
	m.fill(2, false)

	if out := m.View(); !strings.Contains(out, "name") {
		t.Fatal("unmasked view should show every fetched column")
	}

	m.colMask = map[string]bool{"id": true}
	if out := m.View(); strings.Contains(out, "name") {
		t.Fatal("masked column should not render")
	}
}

func TestViewRendersManifestPanes(t *testing.T) {
	m := newTestModel(&fakeTable{})
	m.activeTab = tabFiles
	m.manSummaries = []tablestore.ManifestSummary{{Path: "m0.avro", Content: "data"}}
	m.manFiles = [][]tablestore.DataFileStat{
		{{Path: "data/a.parquet", Format: "PARQUET", RecordCount: 3}},
	}
	m.manifestsFresh = true

	out := m.View()
	if !strings.Contains(out, "m0.avro") {
		t.Fatal("manifest list should render the manifest name")
	}
	if !strings.Contains(out, "a.parquet") {
		t.Fatal("file pane should render the selected manifest's files")
	}

	m.focusRight = true
	m.fileDetail = true
	if out := m.View(); !strings.Contains(out, "data/a.parquet") {
		t.Fatal("file detail should render the full path")
	}
}
