package icebergtable

import (
	"encoding/hex"
	"unicode/utf8"

	"github.com/apache/iceberg-go"
	"github.com/apache/iceberg-go/table"
	"github.com/google/uuid"

	"github.com/jask/floe/internal/filter"
	"github.com/jask/floe/internal/tablestore"
)

func extractMetadata(tbl *table.Table) (*tablestore.TableMetadata, error) {
	meta := tbl.Metadata()

	schemas := make([]tablestore.SchemaInfo, 0, len(meta.Schemas()))
	for _, sc := range meta.Schemas() {
		schemas = append(schemas, schemaInfo(sc))
	}

	snapshots := make([]tablestore.SnapshotInfo, 0, len(meta.Snapshots()))
	for _, snap := range meta.Snapshots() {
		snapshots = append(snapshots, snapshotInfo(snap))
	}

	specs := make([]tablestore.PartitionSpecInfo, 0, len(meta.PartitionSpecs()))
	for _, spec := range meta.PartitionSpecs() {
		specs = append(specs, partitionSpecInfo(spec))
	}

	orders := make([]tablestore.SortOrderInfo, 0, len(meta.SortOrders()))
	for _, order := range meta.SortOrders() {
		orders = append(orders, sortOrderInfo(order))
	}

	props := make(map[string]string, len(meta.Properties()))
	for k, v := range meta.Properties() {
		props[k] = v
	}

	var currentID *int64
	if cur := meta.CurrentSnapshot(); cur != nil {
		id := cur.SnapshotID
		currentID = &id
	}

	return &tablestore.TableMetadata{
		Location:          meta.Location(),
		CurrentSchema:     schemaInfo(meta.CurrentSchema()),
		Schemas:           schemas,
		Snapshots:         snapshots,
		PartitionSpecs:    specs,
		SortOrders:        orders,
		Properties:        props,
		CurrentSnapshotID: currentID,
		FormatVersion:     meta.Version(),
		TableUUID:         uuidString(meta.TableUUID()),
		LastUpdatedMs:     meta.LastUpdatedMillis(),
	}, nil
}

func uuidString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func schemaInfo(sc *iceberg.Schema) tablestore.SchemaInfo {
	if sc == nil {
		return tablestore.SchemaInfo{}
	}
	fields := sc.Fields()
	infos := make([]tablestore.FieldInfo, 0, len(fields))
	for _, f := range fields {
		infos = append(infos, fieldInfo(f))
	}
	return tablestore.SchemaInfo{SchemaID: sc.ID, Fields: infos}
}

func fieldInfo(f iceberg.NestedField) tablestore.FieldInfo {
	info := tablestore.FieldInfo{
		ID:       f.ID,
		Name:     f.Name,
		Type:     f.Type.String(),
		Required: f.Required,
		Doc:      f.Doc,
	}

	switch ft := f.Type.(type) {
	case *iceberg.StructType:
		for _, child := range ft.Fields() {
			info.Children = append(info.Children, fieldInfo(child))
		}
	case *iceberg.ListType:
		info.Children = []tablestore.FieldInfo{{
			ID:       ft.ElementID,
			Name:     "element",
			Type:     ft.Element.String(),
			Required: ft.ElementRequired,
		}}
	case *iceberg.MapType:
		info.Children = []tablestore.FieldInfo{
			{ID: ft.KeyID, Name: "key", Type: ft.KeyType.String(), Required: true},
			{ID: ft.ValueID, Name: "value", Type: ft.ValueType.String(), Required: ft.ValueRequired},
		}
	}
	return info
}

func snapshotInfo(snap table.Snapshot) tablestore.SnapshotInfo {
	info := tablestore.SnapshotInfo{
		SnapshotID:       snap.SnapshotID,
		ParentSnapshotID: snap.ParentSnapshotID,
		SequenceNumber:   snap.SequenceNumber,
		TimestampMs:      snap.TimestampMs,
		ManifestList:     snap.ManifestList,
		SchemaID:         snap.SchemaID,
	}
	if snap.Summary != nil {
		info.Operation = string(snap.Summary.Operation)
		if len(snap.Summary.Properties) > 0 {
			info.Summary = make(map[string]string, len(snap.Summary.Properties))
			for k, v := range snap.Summary.Properties {
				info.Summary[k] = v
			}
		}
	}
	return info
}

func partitionSpecInfo(spec iceberg.PartitionSpec) tablestore.PartitionSpecInfo {
	info := tablestore.PartitionSpecInfo{SpecID: spec.ID()}
	for i := 0; i < spec.NumFields(); i++ {
		f := spec.Field(i)
		info.Fields = append(info.Fields, tablestore.PartitionFieldInfo{
			Name:      f.Name,
			Transform: f.Transform.String(),
			SourceID:  f.SourceID,
		})
	}
	return info
}

func sortOrderInfo(order table.SortOrder) tablestore.SortOrderInfo {
	info := tablestore.SortOrderInfo{OrderID: order.OrderID}
	for _, f := range order.Fields {
		info.Fields = append(info.Fields, tablestore.SortFieldInfo{
			SourceID:  f.SourceID,
			Transform: f.Transform.String(),
			Direction: string(f.Direction),
			NullOrder: string(f.NullOrder),
		})
	}
	return info
}

// boundMap renders field-id keyed byte bounds for display: valid UTF-8
// stays text, anything else becomes hex.
func boundMap(bounds map[int][]byte) map[int]string {
	if len(bounds) == 0 {
		return nil
	}
	out := make(map[int]string, len(bounds))
	for id, raw := range bounds {
		out[id] = boundString(raw)
	}
	return out
}

func boundString(raw []byte) string {
	if utf8.Valid(raw) && printable(raw) {
		return string(raw)
	}
	return "0x" + hex.EncodeToString(raw)
}

func printable(raw []byte) bool {
	for _, b := range raw {
		if b < 0x20 && b != '\t' {
			return false
		}
	}
	return true
}

// toExpr converts a compiled filter predicate into an iceberg scan
// expression. The filter tree is a closed union; the switch is
// exhaustive over it.
func toExpr(p filter.Predicate) iceberg.BooleanExpression {
	switch node := p.(type) {
	case filter.And:
		return iceberg.NewAnd(toExpr(node.Left), toExpr(node.Right))
	case filter.Or:
		return iceberg.NewOr(toExpr(node.Left), toExpr(node.Right))
	case filter.IsNull:
		return iceberg.IsNull(iceberg.Reference(node.Column))
	case filter.IsNotNull:
		return iceberg.NotNull(iceberg.Reference(node.Column))
	case filter.In:
		return inExpr(node)
	case filter.Compare:
		return compareExpr(node)
	default:
		return iceberg.AlwaysTrue{}
	}
}

func compareExpr(node filter.Compare) iceberg.BooleanExpression {
	switch node.Value.Kind {
	case filter.DatumLong:
		return typedCompare(node.Column, node.Op, node.Value.Long)
	case filter.DatumDouble:
		return typedCompare(node.Column, node.Op, node.Value.Double)
	case filter.DatumBool:
		return typedCompare(node.Column, node.Op, node.Value.Bool)
	default:
		return typedCompare(node.Column, node.Op, node.Value.Str)
	}
}

func typedCompare[T iceberg.LiteralType](col string, op filter.Op, v T) iceberg.BooleanExpression {
	ref := iceberg.Reference(col)
	switch op {
	case filter.OpNeq:
		return iceberg.NotEqualTo(ref, v)
	case filter.OpGt:
		return iceberg.GreaterThan(ref, v)
	case filter.OpLt:
		return iceberg.LessThan(ref, v)
	case filter.OpGtEq:
		return iceberg.GreaterThanEqual(ref, v)
	case filter.OpLtEq:
		return iceberg.LessThanEqual(ref, v)
	default:
		return iceberg.EqualTo(ref, v)
	}
}

// inExpr builds a membership expression. Zero values matches nothing.
// Homogeneous value lists keep their native type; mixed lists degrade
// to string comparison.
func inExpr(node filter.In) iceberg.BooleanExpression {
	if len(node.Values) == 0 {
		return iceberg.AlwaysFalse{}
	}
	ref := iceberg.Reference(node.Column)

	kind := node.Values[0].Kind
	homogeneous := true
	for _, v := range node.Values[1:] {
		if v.Kind != kind {
			homogeneous = false
			break
		}
	}

	if homogeneous {
		switch kind {
		case filter.DatumLong:
			vals := make([]int64, len(node.Values))
			for i, v := range node.Values {
				vals[i] = v.Long
			}
			return iceberg.IsIn(ref, vals...)
		case filter.DatumDouble:
			vals := make([]float64, len(node.Values))
			for i, v := range node.Values {
				vals[i] = v.Double
			}
			return iceberg.IsIn(ref, vals...)
		case filter.DatumBool:
			vals := make([]bool, len(node.Values))
			for i, v := range node.Values {
				vals[i] = v.Bool
			}
			return iceberg.IsIn(ref, vals...)
		}
	}

	vals := make([]string, len(node.Values))
	for i, v := range node.Values {
		vals[i] = datumText(v)
	}
	return iceberg.IsIn(ref, vals...)
}

// datumText is the unquoted textual form used when a mixed-type IN list
// falls back to string matching.
func datumText(d filter.Datum) string {
	if d.Kind == filter.DatumString {
		return d.Str
	}
	return d.String()
}
