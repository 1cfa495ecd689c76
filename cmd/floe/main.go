package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jask/floe/internal/config"
	"github.com/jask/floe/internal/logging"
	"github.com/jask/floe/internal/tablestore"
	"github.com/jask/floe/internal/tablestore/icebergtable"
	"github.com/jask/floe/internal/tui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	cfg config.Config

	columns  []string
	limit    int
	noLimit  bool
	pageSize int
	logPath  string

	s3Endpoint  string
	s3Region    string
	s3AccessKey string
	s3SecretKey string
	s3AllowHTTP bool

	catalogURI string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "floe",
		Short:         "Terminal viewer for Apache Iceberg tables",
		Long:          "floe browses Iceberg table data, schemas, snapshots and manifests from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringSliceVar(&a.columns, "columns", nil, "initial column projection (comma separated)")
	pf.IntVar(&a.limit, "limit", 0, "initial row limit (default: page size)")
	pf.BoolVar(&a.noLimit, "no-limit", false, "scan without a row limit")
	pf.IntVar(&a.pageSize, "page-size", 0, "rows fetched per page")
	pf.StringVar(&a.logPath, "log", "", "debug log file")
	pf.StringVar(&a.s3Endpoint, "s3-endpoint", "", "S3 endpoint override")
	pf.StringVar(&a.s3Region, "s3-region", "", "S3 region")
	pf.StringVar(&a.s3AccessKey, "s3-access-key", "", "S3 access key id")
	pf.StringVar(&a.s3SecretKey, "s3-secret-key", "", "S3 secret access key")
	pf.BoolVar(&a.s3AllowHTTP, "s3-allow-http", false, "allow plain HTTP to the S3 endpoint")

	openCmd := &cobra.Command{
		Use:   "open <table-path>",
		Short: "Open a table by storage path or metadata file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			storage := a.storage(cmd.Flags())
			return a.launch(cmd.Flags(), path, func(ctx context.Context) (tablestore.Table, error) {
				return icebergtable.Open(ctx, path, storage)
			})
		},
	}

	catalogCmd := &cobra.Command{
		Use:   "catalog <namespace.table>",
		Short: "Open a table through a REST catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			uri := a.catalogURI
			if uri == "" {
				uri = a.cfg.Catalog.URI
			}
			if uri == "" {
				return errors.New("no catalog URI: pass --uri or set catalog.uri in the config")
			}
			storage := a.storage(cmd.Flags())
			return a.launch(cmd.Flags(), name, func(ctx context.Context) (tablestore.Table, error) {
				return icebergtable.OpenCatalog(ctx, uri, name, storage)
			})
		},
	}
	catalogCmd.Flags().StringVar(&a.catalogURI, "uri", "", "REST catalog URI")

	root.AddCommand(openCmd, catalogCmd)
	return root
}

// storage merges config-file credentials with explicit flag overrides.
func (a *app) storage(flags *pflag.FlagSet) icebergtable.StorageProps {
	props := icebergtable.StorageProps{
		S3Endpoint:  a.cfg.S3.Endpoint,
		S3Region:    a.cfg.S3.Region,
		S3AccessKey: a.cfg.S3.AccessKey,
		S3SecretKey: a.cfg.S3.SecretKey,
		S3AllowHTTP: a.cfg.S3.AllowHTTP,
	}
	if flags.Changed("s3-endpoint") {
		props.S3Endpoint = a.s3Endpoint
	}
	if flags.Changed("s3-region") {
		props.S3Region = a.s3Region
	}
	if flags.Changed("s3-access-key") {
		props.S3AccessKey = a.s3AccessKey
	}
	if flags.Changed("s3-secret-key") {
		props.S3SecretKey = a.s3SecretKey
	}
	if flags.Changed("s3-allow-http") {
		props.S3AllowHTTP = a.s3AllowHTTP
	}
	return props
}

func (a *app) launch(flags *pflag.FlagSet, name string, open tui.OpenFunc) error {
	logPath := a.cfg.Log.Path
	if flags.Changed("log") {
		logPath = a.logPath
	}
	log, logFile, err := logging.Open(logPath)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	pageSize := a.cfg.Viewer.PageSize
	if flags.Changed("page-size") && a.pageSize > 0 {
		pageSize = a.pageSize
	}

	log.Info().Str("table", name).Int("page_size", pageSize).Msg("starting")

	model := tui.New(tui.Options{
		Open:      open,
		TableName: name,
		PageSize:  pageSize,
		Limit:     a.limit,
		NoLimit:   a.noLimit,
		Columns:   a.columns,
		Logger:    log,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
