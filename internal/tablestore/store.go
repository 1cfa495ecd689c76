// Package tablestore defines the contract between the viewer core and
// the table-format backend: display-friendly metadata structs, scan
// request/result types, and the Table interface the orchestrator drives.
// Format internals (manifest decoding, file IO, catalogs) live behind
// implementations such as icebergtable.
package tablestore

import (
	"context"
	"errors"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/jask/floe/internal/filter"
)

// ErrNoSnapshot reports that a requested snapshot id does not resolve to
// any snapshot (including tables with no snapshots at all).
var ErrNoSnapshot = errors.New("snapshot not found")

// ErrNotLoaded reports an operation attempted before a table was opened.
var ErrNotLoaded = errors.New("no table loaded")

// ScanRequest describes one table scan.
type ScanRequest struct {
	// Columns projects the scan; nil or empty means all columns.
	Columns []string
	// Filter prunes rows; nil means unfiltered.
	Filter filter.Predicate
	// SnapshotID pins the scan to a snapshot; nil means current head.
	SnapshotID *int64
	// Limit caps collected rows; nil means unbounded.
	Limit *int
}

// ScanResult carries the collected record batches. HasMore is true iff
// the number of rows collected reached the requested limit, meaning the
// result may be truncated.
type ScanResult struct {
	Records []arrow.Record
	HasMore bool
}

// TotalRows sums rows across all batches.
func (r *ScanResult) TotalRows() int {
	if r == nil {
		return 0
	}
	total := 0
	for _, rec := range r.Records {
		total += int(rec.NumRows())
	}
	return total
}

// ColumnNames returns the schema column names of the first batch, or nil
// for an empty result.
func (r *ScanResult) ColumnNames() []string {
	if r == nil || len(r.Records) == 0 {
		return nil
	}
	fields := r.Records[0].Schema().Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// Cell renders one value from the flattened row space of the result.
// Row indexes run across batches in order.
func (r *ScanResult) Cell(row, col int) string {
	if r == nil {
		return ""
	}
	for _, rec := range r.Records {
		n := int(rec.NumRows())
		if row >= n {
			row -= n
			continue
		}
		if col < 0 || col >= int(rec.NumCols()) {
			return ""
		}
		arr := rec.Column(col)
		if arr.IsNull(row) {
			return "NULL"
		}
		return arr.ValueStr(row)
	}
	return ""
}

// Release drops the result's hold on the underlying arrow buffers. The
// result must not be read afterwards.
func (r *ScanResult) Release() {
	if r == nil {
		return
	}
	for _, rec := range r.Records {
		rec.Release()
	}
	r.Records = nil
}

// TableMetadata is the display model extracted from a loaded table.
type TableMetadata struct {
	Location          string
	CurrentSchema     SchemaInfo
	Schemas           []SchemaInfo
	Snapshots         []SnapshotInfo
	PartitionSpecs    []PartitionSpecInfo
	SortOrders        []SortOrderInfo
	Properties        map[string]string
	CurrentSnapshotID *int64
	FormatVersion     int
	TableUUID         string
	LastUpdatedMs     int64
}

// SnapshotByID finds a snapshot in the metadata, or nil.
func (m *TableMetadata) SnapshotByID(id int64) *SnapshotInfo {
	for i := range m.Snapshots {
		if m.Snapshots[i].SnapshotID == id {
			return &m.Snapshots[i]
		}
	}
	return nil
}

// SchemaByID finds a schema in the metadata, or nil.
func (m *TableMetadata) SchemaByID(id int) *SchemaInfo {
	for i := range m.Schemas {
		if m.Schemas[i].SchemaID == id {
			return &m.Schemas[i]
		}
	}
	return nil
}

// SchemaInfo describes one table schema version.
type SchemaInfo struct {
	SchemaID int
	Fields   []FieldInfo
}

// FieldInfo describes a single schema field. Struct, list and map fields
// carry their nested members in Children.
type FieldInfo struct {
	ID       int
	Name     string
	Type     string
	Required bool
	Doc      string
	Children []FieldInfo
}

// SnapshotInfo describes one immutable table version.
type SnapshotInfo struct {
	SnapshotID       int64
	ParentSnapshotID *int64
	SequenceNumber   int64
	TimestampMs      int64
	Operation        string
	Summary          map[string]string
	ManifestList     string
	SchemaID         *int
}

// PartitionSpecInfo describes a partition spec version.
type PartitionSpecInfo struct {
	SpecID int
	Fields []PartitionFieldInfo
}

// PartitionFieldInfo is one partition field (source column + transform).
type PartitionFieldInfo struct {
	Name      string
	Transform string
	SourceID  int
}

// SortOrderInfo describes a sort order version.
type SortOrderInfo struct {
	OrderID int
	Fields  []SortFieldInfo
}

// SortFieldInfo is one sort field.
type SortFieldInfo struct {
	SourceID  int
	Transform string
	Direction string
	NullOrder string
}

// ManifestSummary describes one manifest file as listed by a snapshot's
// manifest list.
type ManifestSummary struct {
	Path            string
	Content         string
	AddedFiles      int32
	ExistingFiles   int32
	DeletedFiles    int32
	AddedRows       int64
	ExistingRows    int64
	DeletedRows     int64
	SequenceNumber  int64
	PartitionSpecID int32
}

// DataFileStat carries file-level statistics for one live data file.
// The bound and null-count maps are keyed by schema field id.
type DataFileStat struct {
	Path        string
	Format      string
	RecordCount int64
	SizeBytes   int64
	NullCounts  map[int]int64
	LowerBounds map[int]string
	UpperBounds map[int]string
	Partition   map[string]string
}

// Manifest is a handle to one manifest: its summary is cheap, its file
// entries require a further read. Per-manifest granularity lets callers
// tolerate one manifest failing without losing the rest.
type Manifest interface {
	Summary() ManifestSummary
	Files(ctx context.Context) ([]DataFileStat, error)
}

// Table is the adapter contract consumed by the orchestration core.
// Implementations are cheap to copy and safe for concurrent readers;
// nothing in the viewer ever mutates a loaded table.
type Table interface {
	// ExtractMetadata converts the table's metadata into display structs.
	ExtractMetadata() (*TableMetadata, error)

	// Scan executes a scan and collects record batches, truncating at
	// the request limit.
	Scan(ctx context.Context, req ScanRequest) (*ScanResult, error)

	// ListManifests resolves the snapshot (nil = head) and returns its
	// manifests. Returns ErrNoSnapshot when the snapshot is missing.
	ListManifests(ctx context.Context, snapshotID *int64) ([]Manifest, error)

	// CountLiveRows sums record counts over all live data-file entries
	// reachable from the chosen snapshot (nil = head).
	CountLiveRows(ctx context.Context, snapshotID *int64) (int64, error)
}
