package icebergtable

import (
	"errors"
	"iter"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

func idBatch(t *testing.T, ids ...int64) arrow.Record {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues(ids, nil)
	return b.NewRecord()
}

func recordSeq(recs []arrow.Record, finalErr error) iter.Seq2[arrow.Record, error] {
	return func(yield func(arrow.Record, error) bool) {
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
		if finalErr != nil {
			yield(nil, finalErr)
		}
	}
}

func limitPtr(n int) *int { return &n }

func totalRows(records []arrow.Record) int {
	total := 0
	for _, r := range records {
		total += int(r.NumRows())
	}
	return total
}

func TestCollectRecordsNoLimitTakesEverything(t *testing.T) {
	batches := []arrow.Record{idBatch(t, 1, 2, 3), idBatch(t, 4, 5)}
	records, hasMore, err := collectRecords(recordSeq(batches, nil), nil)
	if err != nil {
		t.Fatalf("collectRecords: %v", err)
	}
	if hasMore {
		t.Fatal("unbounded collection can never report more rows")
	}
	if got := totalRows(records); got != 5 {
		t.Fatalf("rows = %d, want 5", got)
	}
}

func TestCollectRecordsUnderLimitReportsComplete(t *testing.T) {
	batches := []arrow.Record{idBatch(t, 1, 2, 3)}
	records, hasMore, err := collectRecords(recordSeq(batches, nil), limitPtr(10))
	if err != nil {
		t.Fatalf("collectRecords: %v", err)
	}
	if hasMore {
		t.Fatal("fewer rows than the limit means the scan was exhausted")
	}
	if got := totalRows(records); got != 3 {
		t.Fatalf("rows = %d, want 3", got)
	}
}

func TestCollectRecordsExactLimitReportsMore(t *testing.T) {
	batches := []arrow.Record{idBatch(t, 1, 2, 3), idBatch(t, 4, 5)}
	records, hasMore, err := collectRecords(recordSeq(batches, nil), limitPtr(5))
	if err != nil {
		t.Fatalf("collectRecords: %v", err)
	}
	if !hasMore {
		t.Fatal("stopping at exactly the limit must report a possibly truncated result")
	}
	if got := totalRows(records); got != 5 {
		t.Fatalf("rows = %d, want 5", got)
	}
}

func TestCollectRecordsSlicesMidBatch(t *testing.T) {
	batches := []arrow.Record{idBatch(t, 1, 2, 3), idBatch(t, 4, 5, 6)}
	records, hasMore, err := collectRecords(recordSeq(batches, nil), limitPtr(4))
	if err != nil {
		t.Fatalf("collectRecords: %v", err)
	}
	if !hasMore {
		t.Fatal("truncating mid-batch must report more rows")
	}
	if got := totalRows(records); got != 4 {
		t.Fatalf("rows = %d, want 4", got)
	}
	last := records[len(records)-1]
	if last.NumRows() != 1 {
		t.Fatalf("final batch rows = %d, want sliced to 1", last.NumRows())
	}
	if got := last.Column(0).(*array.Int64).Value(0); got != 4 {
		t.Fatalf("sliced batch starts at %d, want 4", got)
	}
}

func TestCollectRecordsPropagatesIteratorError(t *testing.T) {
	batches := []arrow.Record{idBatch(t, 1, 2)}
	boom := errors.New("parquet read failed")
	_, _, err := collectRecords(recordSeq(batches, boom), nil)
	if err == nil || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped iterator error", err)
	}
}
