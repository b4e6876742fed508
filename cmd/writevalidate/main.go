// Command writevalidate drives one ingest call end to end: it loads a
// line-protocol file against a namespace, publishes any schema changes,
// buckets the qualified rows, and appends them to the row buffer.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/bobboyms/write-validator/pkg/catalog"
	"github.com/bobboyms/write-validator/pkg/config"
	"github.com/bobboyms/write-validator/pkg/precision"
	"github.com/bobboyms/write-validator/pkg/rowbuffer"
	"github.com/bobboyms/write-validator/pkg/validator"
)

func main() {
	var (
		configPath    = flag.String("config", "", "path to a config file (optional)")
		namespace     = flag.String("namespace", "default", "namespace to ingest into")
		lpPath        = flag.String("file", "", "path to a line-protocol file")
		acceptPartial = flag.Bool("accept-partial", false, "accept the batch even if some lines fail")
	)
	flag.Parse()

	if err := run(*configPath, *namespace, *lpPath, *acceptPartial); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, namespace, lpPath string, acceptPartial bool) error {
	if lpPath == "" {
		return fmt.Errorf("writevalidate: -file is required")
	}
	lpText, err := os.ReadFile(lpPath)
	if err != nil {
		return fmt.Errorf("writevalidate: read %s: %w", lpPath, err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("writevalidate: %w", err)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("writevalidate: %w", err)
	}
	defer logger.Sync()

	cat, err := catalog.Open(cfg.CatalogDir, cfg.WALOptions(), catalog.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("writevalidate: open catalog: %w", err)
	}
	defer cat.Close()

	rows, err := rowbuffer.NewManager(cfg.RowBufferDir)
	if err != nil {
		return fmt.Errorf("writevalidate: open row buffer: %w", err)
	}
	defer rows.Close()

	ingestTimeNs := time.Now().UnixNano()
	v, err := validator.Initialize(cat, namespace, ingestTimeNs, validator.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("writevalidate: initialize validator: %w", err)
	}

	parsed, err := v.ParseAndUpdateSchema(string(lpText), acceptPartial, ingestTimeNs, precision.Auto)
	if err != nil {
		return fmt.Errorf("writevalidate: parse and update schema: %w", err)
	}

	result, err := parsed.ConvertToWriteBatch(cfg.ChunkWindowNs)
	if err != nil {
		return fmt.Errorf("writevalidate: convert to write batch: %w", err)
	}

	if err := appendToRowBuffer(rows, result); err != nil {
		return fmt.Errorf("writevalidate: append rows: %w", err)
	}

	fmt.Printf("lines=%d valid_bytes=%d fields=%d tags=%d errors=%d catalog_updated=%t\n",
		result.LineCount, result.ValidBytesCount, result.FieldCount, result.IndexCount,
		len(result.Errors), result.CatalogUpdates != nil)
	for _, e := range result.Errors {
		fmt.Printf("line %d: %s\n", e.LineNumber, e.Message)
	}
	return nil
}

func appendToRowBuffer(mgr *rowbuffer.Manager, result *validator.ValidatedLines) error {
	var lsn uint64
	for _, tableID := range result.ValidData.TableIDs() {
		tbl, err := mgr.TableOrCreate(tableID)
		if err != nil {
			return err
		}
		chunks := result.ValidData.Chunks(tableID)
		for _, chunkTime := range chunks.ChunkTimes() {
			for _, row := range chunks.Rows(chunkTime) {
				lsn++
				if err := tbl.Append(row, lsn); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	return cfg.Build()
}
