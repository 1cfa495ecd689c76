package tui

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jask/floe/internal/tablestore"
)

// OpenFunc produces the table handle. Injected by the caller so the
// model never knows whether the table came from a path or a catalog.
type OpenFunc func(ctx context.Context) (tablestore.Table, error)

// handleSlot guards the single live table handle. Tasks copy the handle
// out under the lock and do all I/O without holding it.
type handleSlot struct {
	mu  sync.Mutex
	tbl tablestore.Table
}

func (s *handleSlot) get() tablestore.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tbl
}

func (s *handleSlot) set(tbl tablestore.Table) {
	s.mu.Lock()
	s.tbl = tbl
	s.mu.Unlock()
}

// orchestrator spawns one goroutine per requested action and reports
// everything back through the bus. Tasks are never cancelled; the
// model discards stale completions by generation instead.
type orchestrator struct {
	bus  *bus
	slot *handleSlot
	log  zerolog.Logger
}

func newOrchestrator(b *bus, log zerolog.Logger) *orchestrator {
	return &orchestrator{bus: b, slot: &handleSlot{}, log: log}
}

// initialLoad opens the table, extracts metadata, and runs the first
// scan. The handle is installed once open and metadata succeed, even
// when the first scan fails, so a reload can recover from a transient
// scan error. The open phase and the scan phase each raise the loading
// indicator; a single finish clears it.
func (o *orchestrator) initialLoad(open OpenFunc, req tablestore.ScanRequest, scanGen, countGen uint64) {
	go func() {
		ctx := context.Background()
		o.bus.publish(loadingStartedMsg{label: "opening table"})

		tbl, err := open(ctx)
		if err != nil {
			o.log.Error().Err(err).Msg("open table")
			o.fail(err)
			return
		}

		meta, err := tbl.ExtractMetadata()
		if err != nil {
			o.log.Error().Err(err).Msg("extract metadata")
			o.fail(err)
			return
		}
		o.bus.publish(metadataReadyMsg{meta: meta})

		o.bus.publish(loadingStartedMsg{label: "scanning data"})
		res, err := tbl.Scan(ctx, req)
		if err != nil {
			o.log.Error().Err(err).Msg("initial scan")
			o.slot.set(tbl)
			o.fail(err)
			return
		}
		grid := gridFromResult(res)
		hasMore := res.HasMore
		res.Release()
		o.bus.publish(dataReadyMsg{gen: scanGen, grid: grid, hasMore: hasMore})

		o.slot.set(tbl)
		o.countRows(countGen, nil)
		o.bus.publish(loadingFinishedMsg{})
	}()
}

// rescan runs a fresh scan against the installed handle.
func (o *orchestrator) rescan(gen uint64, req tablestore.ScanRequest) {
	go func() {
		o.bus.publish(loadingStartedMsg{label: "scanning data"})
		tbl := o.slot.get()
		if tbl == nil {
			o.fail(tablestore.ErrNotLoaded)
			return
		}
		o.scan(context.Background(), tbl, gen, req)
		o.bus.publish(loadingFinishedMsg{})
	}()
}

func (o *orchestrator) scan(ctx context.Context, tbl tablestore.Table, gen uint64, req tablestore.ScanRequest) {
	res, err := tbl.Scan(ctx, req)
	if err != nil {
		o.log.Error().Err(err).Uint64("gen", gen).Msg("scan")
		o.bus.publish(errorMsg{text: err.Error()})
		return
	}
	grid := gridFromResult(res)
	hasMore := res.HasMore
	res.Release()

	o.log.Debug().Uint64("gen", gen).Int("rows", len(grid.rows)).Bool("has_more", hasMore).Msg("scan done")
	o.bus.publish(dataReadyMsg{gen: gen, grid: grid, hasMore: hasMore})
}

// countRows totals live rows across the snapshot's manifests. Counts
// are advisory; failures are logged, not surfaced.
func (o *orchestrator) countRows(gen uint64, snapshotID *int64) {
	go func() {
		tbl := o.slot.get()
		if tbl == nil {
			return
		}
		total, err := tbl.CountLiveRows(context.Background(), snapshotID)
		if err != nil {
			o.log.Warn().Err(err).Msg("count rows")
			return
		}
		o.bus.publish(totalRowCountMsg{gen: gen, total: total})
	}()
}

// loadManifests lists the snapshot's manifests, publishes the summaries
// right away, then fetches each manifest's data file stats in parallel.
// A failing manifest reports an error and leaves its group empty; the
// other groups still load. A missing snapshot yields empty results
// rather than an error.
func (o *orchestrator) loadManifests(gen uint64, snapshotID *int64) {
	go func() {
		ctx := context.Background()
		o.bus.publish(loadingStartedMsg{label: "loading manifests"})

		tbl := o.slot.get()
		if tbl == nil {
			o.bus.publish(manifestsFailedMsg{gen: gen})
			o.fail(tablestore.ErrNotLoaded)
			return
		}

		manifests, err := tbl.ListManifests(ctx, snapshotID)
		if errors.Is(err, tablestore.ErrNoSnapshot) {
			o.bus.publish(manifestsReadyMsg{gen: gen})
			o.bus.publish(fileStatsReadyMsg{gen: gen})
			o.bus.publish(loadingFinishedMsg{})
			return
		}
		if err != nil {
			o.log.Error().Err(err).Msg("list manifests")
			o.bus.publish(manifestsFailedMsg{gen: gen})
			o.fail(err)
			return
		}

		summaries := make([]tablestore.ManifestSummary, len(manifests))
		for i, man := range manifests {
			summaries[i] = man.Summary()
		}
		o.bus.publish(manifestsReadyMsg{gen: gen, summaries: summaries})

		groups := make([][]tablestore.DataFileStat, len(manifests))
		g := new(errgroup.Group)
		g.SetLimit(8)
		for i, man := range manifests {
			g.Go(func() error {
				files, err := man.Files(ctx)
				if err != nil {
					o.log.Warn().Err(err).Str("manifest", summaries[i].Path).Msg("fetch manifest entries")
					o.bus.publish(errorMsg{text: err.Error()})
					return nil
				}
				groups[i] = files
				return nil
			})
		}
		_ = g.Wait()

		o.bus.publish(fileStatsReadyMsg{gen: gen, groups: groups})
		o.bus.publish(loadingFinishedMsg{})
	}()
}

func (o *orchestrator) fail(err error) {
	o.bus.publish(errorMsg{text: err.Error()})
	o.bus.publish(loadingFinishedMsg{})
}
