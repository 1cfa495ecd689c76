package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/floe/internal/tablestore"
)

// busMsg wraps one message delivered from the background bus. The
// update loop re-arms the await command whenever it sees one.
type busMsg struct {
	inner tea.Msg
}

// loadingStartedMsg turns the loading indicator on. A task may raise it
// more than once with different labels; the last label wins.
type loadingStartedMsg struct {
	label string
}

type loadingFinishedMsg struct{}

type errorMsg struct {
	text string
}

type metadataReadyMsg struct {
	meta *tablestore.TableMetadata
}

// dataGrid is the fully materialized form of a scan result. Tasks build
// it off the update loop so arrow buffers can be released immediately.
type dataGrid struct {
	columns []string
	rows    [][]string
}

type dataReadyMsg struct {
	gen     uint64
	grid    dataGrid
	hasMore bool
}

// manifestsReadyMsg carries the manifest summaries for a snapshot. The
// heavier per-manifest file stats follow in a fileStatsReadyMsg with
// the same generation.
type manifestsReadyMsg struct {
	gen       uint64
	summaries []tablestore.ManifestSummary
}

// fileStatsReadyMsg groups data file stats by manifest, index-aligned
// with the summaries. A manifest whose stats failed to load has an
// empty group.
type fileStatsReadyMsg struct {
	gen    uint64
	groups [][]tablestore.DataFileStat
}

// manifestsFailedMsg terminates a manifest load that produced nothing,
// so the tab stays stale and retries on its next visit.
type manifestsFailedMsg struct {
	gen uint64
}

type totalRowCountMsg struct {
	gen   uint64
	total int64
}

func gridFromResult(res *tablestore.ScanResult) dataGrid {
	grid := dataGrid{columns: res.ColumnNames()}
	total := res.TotalRows()
	grid.rows = make([][]string, total)
	for row := 0; row < total; row++ {
		cells := make([]string, len(grid.columns))
		for col := range grid.columns {
			cells[col] = res.Cell(row, col)
		}
		grid.rows[row] = cells
	}
	return grid
}
