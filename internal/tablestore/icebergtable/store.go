package icebergtable

import (
	"context"
	"fmt"
	"iter"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/iceberg-go"
	"github.com/apache/iceberg-go/table"
	"golang.org/x/sync/errgroup"

	icefs "github.com/apache/iceberg-go/io"

	"github.com/jask/floe/internal/tablestore"
)

// Handle wraps a loaded iceberg table. The underlying table is
// reference-like and read-only here, so copies of the handle may be
// passed freely to concurrent background tasks.
type Handle struct {
	tbl *table.Table
}

var _ tablestore.Table = Handle{}

// ExtractMetadata converts the table metadata into the display structs.
func (h Handle) ExtractMetadata() (*tablestore.TableMetadata, error) {
	return extractMetadata(h.tbl)
}

// Scan plans and executes a scan, collecting arrow record batches and
// truncating once the requested limit is reached. HasMore is true iff
// collection stopped at the limit.
func (h Handle) Scan(ctx context.Context, req tablestore.ScanRequest) (*tablestore.ScanResult, error) {
	opts := make([]table.ScanOption, 0, 3)
	if len(req.Columns) > 0 {
		opts = append(opts, table.WithSelectedFields(req.Columns...))
	}
	if req.Filter != nil {
		opts = append(opts, table.WithRowFilter(toExpr(req.Filter)))
	}
	if req.SnapshotID != nil {
		opts = append(opts, table.WithSnapshotID(*req.SnapshotID))
	}

	scan := h.tbl.Scan(opts...)
	_, itr, err := scan.ToArrowRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("execute scan: %w", err)
	}

	records, hasMore, err := collectRecords(itr, req.Limit)
	if err != nil {
		return nil, err
	}
	return &tablestore.ScanResult{Records: records, HasMore: hasMore}, nil
}

// collectRecords drains the scan iterator into retained record batches,
// slicing the final batch when the limit falls mid-batch. HasMore is
// true iff collection stopped at exactly the limit; a shorter result
// means the scan was exhausted and reports false.
func collectRecords(itr iter.Seq2[arrow.Record, error], limit *int) ([]arrow.Record, bool, error) {
	var records []arrow.Record
	collected := 0
	for rec, err := range itr {
		if err != nil {
			releaseAll(records)
			return nil, false, fmt.Errorf("collect scan results: %w", err)
		}
		if limit != nil {
			remaining := *limit - collected
			if remaining <= 0 {
				break
			}
			if int(rec.NumRows()) > remaining {
				records = append(records, rec.NewSlice(0, int64(remaining)))
				collected += remaining
				break
			}
		}
		rec.Retain()
		records = append(records, rec)
		collected += int(rec.NumRows())
		if limit != nil && collected >= *limit {
			break
		}
	}

	hasMore := limit != nil && collected >= *limit
	return records, hasMore, nil
}

func releaseAll(records []arrow.Record) {
	for _, r := range records {
		r.Release()
	}
}

// ListManifests resolves the snapshot (nil = current head) and returns
// one handle per manifest in its manifest list.
func (h Handle) ListManifests(ctx context.Context, snapshotID *int64) ([]tablestore.Manifest, error) {
	snap := h.resolveSnapshot(snapshotID)
	if snap == nil {
		return nil, tablestore.ErrNoSnapshot
	}

	fio := h.tbl.FS()
	files, err := snap.Manifests(fio)
	if err != nil {
		return nil, fmt.Errorf("load manifest list: %w", err)
	}

	out := make([]tablestore.Manifest, len(files))
	for i, mf := range files {
		out[i] = manifest{file: mf, fio: fio}
	}
	return out, nil
}

// CountLiveRows sums record counts over live entries of every manifest
// reachable from the chosen snapshot. Manifests are read in parallel.
func (h Handle) CountLiveRows(ctx context.Context, snapshotID *int64) (int64, error) {
	manifests, err := h.ListManifests(ctx, snapshotID)
	if err != nil {
		return 0, err
	}

	g, ctx := errgroup.WithContext(ctx)
	counts := make([]int64, len(manifests))
	for i, m := range manifests {
		g.Go(func() error {
			files, err := m.Files(ctx)
			if err != nil {
				return err
			}
			var n int64
			for _, f := range files {
				n += f.RecordCount
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func (h Handle) resolveSnapshot(snapshotID *int64) *table.Snapshot {
	meta := h.tbl.Metadata()
	if snapshotID != nil {
		return meta.SnapshotByID(*snapshotID)
	}
	return meta.CurrentSnapshot()
}

// manifest adapts one iceberg manifest file.
type manifest struct {
	file iceberg.ManifestFile
	fio  icefs.IO
}

func (m manifest) Summary() tablestore.ManifestSummary {
	return tablestore.ManifestSummary{
		Path:            m.file.FilePath(),
		Content:         contentLabel(m.file.ManifestContent()),
		AddedFiles:      m.file.AddedDataFiles(),
		ExistingFiles:   m.file.ExistingDataFiles(),
		DeletedFiles:    m.file.DeletedDataFiles(),
		AddedRows:       m.file.AddedRows(),
		ExistingRows:    m.file.ExistingRows(),
		DeletedRows:     m.file.DeletedRows(),
		SequenceNumber:  m.file.SequenceNum(),
		PartitionSpecID: m.file.PartitionSpecID(),
	}
}

// Files reads the manifest and returns stats for its live entries
// (added and existing; deleted entries are discarded).
func (m manifest) Files(ctx context.Context) ([]tablestore.DataFileStat, error) {
	entries, err := m.file.FetchEntries(m.fio, true)
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", m.file.FilePath(), err)
	}

	stats := make([]tablestore.DataFileStat, 0, len(entries))
	for _, entry := range entries {
		df := entry.DataFile()
		stats = append(stats, tablestore.DataFileStat{
			Path:        df.FilePath(),
			Format:      string(df.FileFormat()),
			RecordCount: df.Count(),
			SizeBytes:   df.FileSizeBytes(),
			NullCounts:  df.NullValueCounts(),
			LowerBounds: boundMap(df.LowerBoundValues()),
			UpperBounds: boundMap(df.UpperBoundValues()),
			Partition:   partitionMap(df.Partition()),
		})
	}
	return stats, nil
}

func contentLabel(c iceberg.ManifestContent) string {
	switch c {
	case iceberg.ManifestContentData:
		return "data"
	case iceberg.ManifestContentDeletes:
		return "deletes"
	default:
		return fmt.Sprintf("unknown(%d)", int32(c))
	}
}

func partitionMap(parts map[string]any) map[string]string {
	if len(parts) == 0 {
		return nil
	}
	out := make(map[string]string, len(parts))
	for k, v := range parts {
		out[k] = fmt.Sprint(v)
	}
	return out
}
