package tui

import (
	"sort"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jask/floe/internal/filter"
	"github.com/jask/floe/internal/tablestore"
)

const appName = "floe"

// Tab indices
const (
	tabData = iota
	tabSchema
	tabSnapshots
	tabFiles
	tabProperties
	tabCount
)

var tabNames = [tabCount]string{"Data", "Schema", "Snapshots", "Files", "Properties"}

// Options configures the viewer before the first load.
type Options struct {
	// Open produces the table handle (path or catalog, the model does
	// not care).
	Open OpenFunc
	// TableName is shown in the header.
	TableName string
	// PageSize is the increment for "load more"; also the initial limit.
	PageSize int
	// Limit overrides the initial limit when > 0.
	Limit int
	// NoLimit disables row limiting entirely.
	NoLimit bool
	// Columns is the initial projection; empty means all columns.
	Columns []string
	Logger  zerolog.Logger
}

// generations hands out one token per message kind. A completion whose
// token no longer matches is stale and gets dropped on arrival.
type generations struct {
	scan     uint64
	manifest uint64
	count    uint64
}

// Model is the single-threaded view state. Every mutation happens in
// Update; background tasks only ever talk to it through the bus.
type Model struct {
	open  OpenFunc
	bus   *bus
	tasks *orchestrator
	log   zerolog.Logger
	gens  generations

	tableName string
	width     int
	height    int
	activeTab int

	// data tab
	grid      dataGrid
	hasMore   bool
	pageSize  int
	limit     int
	noLimit   bool
	columns   []string        // scan-time projection, set at startup only
	colMask   map[string]bool // display mask; nil shows everything
	cursor    int
	rowOffset int
	colOffset int

	// filter
	filterInput   textinput.Model
	filterFocused bool
	filterText    string
	filterErr     string
	pred          filter.Predicate

	// snapshot selection
	meta           *tablestore.TableMetadata
	snapshotID     *int64
	pinnedSchemaID *int
	snapCursor     int

	// manifests tab: left pane lists manifests, right pane shows the
	// selected manifest's data files
	manSummaries     []tablestore.ManifestSummary
	manFiles         [][]tablestore.DataFileStat
	manifestsFresh   bool
	manifestsPending bool
	manCursor        int
	fileCursor       int
	fileDetail       bool
	focusRight       bool

	// totals
	totalRows  int64
	totalKnown bool

	// scrolling for text tabs
	schemaOffset int
	propOffset   int
	manOffset    int

	loading      bool
	loadingLabel string
	status       string
	statusErr    bool
	showHelp     bool

	// column selector overlay
	showColumns  bool
	colSelCursor int
	colSelNames  []string
	colSelPicked map[string]bool
}

// New builds the model. The first load is spawned from Init.
func New(opts Options) *Model {
	if opts.PageSize <= 0 {
		opts.PageSize = 500
	}
	limit := opts.PageSize
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	input := textinput.New()
	input.Prompt = "filter> "
	input.PromptStyle = filterPromptStyle
	input.Placeholder = `col = value AND other > 10`
	input.CharLimit = 512

	b := newBus()
	return &Model{
		open:        opts.Open,
		bus:         b,
		tasks:       newOrchestrator(b, opts.Logger),
		log:         opts.Logger,
		tableName:   opts.TableName,
		pageSize:    opts.PageSize,
		limit:       limit,
		noLimit:     opts.NoLimit,
		columns:     opts.Columns,
		filterInput: input,
	}
}

func (m *Model) Init() tea.Cmd {
	m.gens.scan++
	m.gens.count++
	m.tasks.initialLoad(m.open, m.scanRequest(), m.gens.scan, m.gens.count)
	return m.bus.await()
}

func (m *Model) scanRequest() tablestore.ScanRequest {
	req := tablestore.ScanRequest{
		Columns:    m.columns,
		Filter:     m.pred,
		SnapshotID: m.snapshotID,
	}
	if !m.noLimit {
		lim := m.limit
		req.Limit = &lim
	}
	return req
}

// spawnScan hands the current request to a fresh scan task and bumps
// the scan generation so older in-flight scans land dead.
func (m *Model) spawnScan() {
	m.gens.scan++
	m.tasks.rescan(m.gens.scan, m.scanRequest())
}

func (m *Model) spawnCount() {
	m.gens.count++
	m.totalKnown = false
	m.tasks.countRows(m.gens.count, m.snapshotID)
}

// invalidateManifests marks the manifests tab stale. The next visit
// triggers exactly one reload; in-flight loads are orphaned by the
// generation bump.
func (m *Model) invalidateManifests() {
	m.gens.manifest++
	m.manSummaries = nil
	m.manFiles = nil
	m.manifestsFresh = false
	m.manifestsPending = false
	m.manCursor = 0
	m.fileCursor = 0
	m.fileDetail = false
	m.focusRight = false
	m.manOffset = 0
}

func (m *Model) ensureManifestsLoaded() {
	if m.manifestsFresh || m.manifestsPending {
		return
	}
	m.manifestsPending = true
	m.gens.manifest++
	m.tasks.loadManifests(m.gens.manifest, m.snapshotID)
}

// sortedSnapshots returns snapshots newest first, the order the
// snapshots tab displays and the cursor indexes.
func (m *Model) sortedSnapshots() []tablestore.SnapshotInfo {
	if m.meta == nil {
		return nil
	}
	snaps := make([]tablestore.SnapshotInfo, len(m.meta.Snapshots))
	copy(snaps, m.meta.Snapshots)
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].TimestampMs > snaps[j].TimestampMs
	})
	return snaps
}

// displaySchema resolves the schema shown on the schema tab: the pinned
// one when a snapshot selection pinned it, otherwise the current.
func (m *Model) displaySchema() *tablestore.SchemaInfo {
	if m.meta == nil {
		return nil
	}
	if m.pinnedSchemaID != nil {
		if sc := m.meta.SchemaByID(*m.pinnedSchemaID); sc != nil {
			return sc
		}
	}
	return &m.meta.CurrentSchema
}

// visibleColumnIdx lists the grid column indices that pass the display
// mask. Masking hides already-fetched columns; it never rescans.
func (m *Model) visibleColumnIdx() []int {
	idx := make([]int, 0, len(m.grid.columns))
	for i, name := range m.grid.columns {
		if m.colMask == nil || m.colMask[name] {
			idx = append(idx, i)
		}
	}
	return idx
}

// viewingHead reports whether the data tab tracks the current snapshot
// rather than a pinned historical one.
func (m *Model) viewingHead() bool {
	return m.snapshotID == nil
}

func (m *Model) setError(text string) {
	m.status = text
	m.statusErr = true
}

func (m *Model) setStatus(text string) {
	m.status = text
	m.statusErr = false
}
