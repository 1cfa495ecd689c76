// Package icebergtable adapts apache/iceberg-go to the tablestore
// contract. Format internals (catalogs, metadata files, manifest avro,
// parquet decoding, object storage) stay behind this package.
package icebergtable

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/iceberg-go"
	"github.com/apache/iceberg-go/catalog/rest"
	"github.com/apache/iceberg-go/table"

	icefs "github.com/apache/iceberg-go/io"

	"github.com/jask/floe/internal/tablestore"
)

// StorageProps carries object-storage credential pass-through. Zero
// values mean "use the environment" (AWS SDK default chain).
type StorageProps struct {
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3AllowHTTP bool
}

func (p StorageProps) properties() iceberg.Properties {
	props := iceberg.Properties{}
	if p.S3Endpoint != "" {
		props["s3.endpoint"] = p.S3Endpoint
	}
	if p.S3Region != "" {
		props["s3.region"] = p.S3Region
	}
	if p.S3AccessKey != "" {
		props["s3.access-key-id"] = p.S3AccessKey
	}
	if p.S3SecretKey != "" {
		props["s3.secret-access-key"] = p.S3SecretKey
	}
	if p.S3AllowHTTP {
		props["s3.allow-http"] = "true"
	}
	return props
}

// Open loads a table directly from its storage location, without a
// catalog. The path may be the table root (the latest metadata file is
// resolved through version-hint.text, or by scanning the metadata
// directory for local paths) or an explicit *.metadata.json location.
func Open(ctx context.Context, path string, storage StorageProps) (tablestore.Table, error) {
	props := storage.properties()
	fsys, err := icefs.LoadFS(ctx, props, path)
	if err != nil {
		return nil, fmt.Errorf("open storage for %s: %w", path, err)
	}

	metaLocation, err := resolveMetadataLocation(fsys, path)
	if err != nil {
		return nil, err
	}

	ident := table.Identifier{identName(path)}
	tbl, err := table.NewFromLocation(ident, metaLocation, fsys, nil)
	if err != nil {
		return nil, fmt.Errorf("load table from %s: %w", metaLocation, err)
	}
	return Handle{tbl: tbl}, nil
}

// OpenCatalog resolves a table through a REST catalog. The table name is
// a dot-separated identifier, e.g. "db.events".
func OpenCatalog(ctx context.Context, uri, name string, storage StorageProps) (tablestore.Table, error) {
	props := storage.properties()
	cat, err := rest.NewCatalog(ctx, "rest", uri, rest.WithAdditionalProps(props))
	if err != nil {
		return nil, fmt.Errorf("connect to catalog %s: %w", uri, err)
	}

	ident := table.Identifier(strings.Split(name, "."))
	tbl, err := cat.LoadTable(ctx, ident, props)
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", name, err)
	}
	return Handle{tbl: tbl}, nil
}

// resolveMetadataLocation finds the current metadata file for a table
// root. Preference order: explicit metadata path, version-hint.text,
// then (local paths only) the newest *.metadata.json in metadata/.
func resolveMetadataLocation(fsys icefs.IO, path string) (string, error) {
	if strings.HasSuffix(path, ".metadata.json") {
		return path, nil
	}
	root := strings.TrimRight(path, "/")

	if loc, ok := metadataFromVersionHint(fsys, root); ok {
		return loc, nil
	}
	if !strings.Contains(root, "://") {
		if loc, ok := newestLocalMetadata(root); ok {
			return loc, nil
		}
	}
	return "", fmt.Errorf("no metadata file found under %s (pass the *.metadata.json path directly)", path)
}

func metadataFromVersionHint(fsys icefs.IO, root string) (string, bool) {
	f, err := fsys.Open(root + "/metadata/version-hint.text")
	if err != nil {
		return "", false
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return "", false
	}
	hint := strings.TrimSpace(string(raw))
	if hint == "" {
		return "", false
	}
	if strings.HasSuffix(hint, ".metadata.json") {
		return root + "/metadata/" + hint, true
	}
	return fmt.Sprintf("%s/metadata/v%s.metadata.json", root, hint), true
}

func newestLocalMetadata(root string) (string, bool) {
	entries, err := os.ReadDir(filepath.Join(root, "metadata"))
	if err != nil {
		return "", false
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".metadata.json") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", false
	}
	// Version numbers are zero-padded in practice; lexical order is
	// good enough and matches what engines write.
	sort.Strings(names)
	return filepath.Join(root, "metadata", names[len(names)-1]), true
}

func identName(path string) string {
	base := filepath.Base(strings.TrimRight(path, "/"))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "table"
	}
	return strings.TrimSuffix(base, ".metadata.json")
}
