// Package catalog implements the external catalog seam the validator
// depends on: db_or_create and apply_catalog_batch. It durably frames each
// published batch through an adapted copy of the storage engine's WAL and,
// on demand (Snapshot), writes the resolved schema as BSON using the
// engine's write-temp-then-rename checkpoint pattern.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/bobboyms/write-validator/pkg/catalogop"
	"github.com/bobboyms/write-validator/pkg/ids"
	"github.com/bobboyms/write-validator/pkg/schema"
	"github.com/bobboyms/write-validator/pkg/verrors"
	"github.com/bobboyms/write-validator/pkg/wal"
)

// Catalog is the long-lived, multi-writer shared resource that serializes
// apply_catalog_batch and assigns each published batch a total order.
type Catalog struct {
	mu sync.Mutex

	logger *zap.Logger

	dbIDs       ids.Allocator
	tableIDs    ids.TableIds
	columnIDs   ids.ColumnIds
	sequenceIDs ids.Allocator

	byName map[string]*schema.NamespaceSchema
	byID   map[ids.DatabaseId]*schema.NamespaceSchema

	walWriter  *wal.WALWriter
	snapshotDir string
}

// Option configures a Catalog at construction time.
type Option func(*Catalog)

// WithLogger attaches structured logging; the default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Catalog) { c.logger = logger }
}

// Open creates a catalog whose durable log lives under dir. An existing
// catalog.wal is appended to but not replayed, so the catalog starts with
// no databases and fresh id counters.
func Open(dir string, walOpts wal.Options, opts ...Option) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("catalog: create directory: %w", err)
	}

	walOpts.DirPath = dir
	writer, err := wal.NewWALWriter(filepath.Join(dir, "catalog.wal"), walOpts)
	if err != nil {
		return nil, fmt.Errorf("catalog: open wal: %w", err)
	}

	c := &Catalog{
		logger:      zap.NewNop(),
		byName:      make(map[string]*schema.NamespaceSchema),
		byID:        make(map[ids.DatabaseId]*schema.NamespaceSchema),
		walWriter:   writer,
		snapshotDir: dir,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close flushes and closes the durable log.
func (c *Catalog) Close() error {
	return c.walWriter.Close()
}

// NextTableID mints a fresh, process-wide TableId. Validators call this
// eagerly during Phase P; if Phase P later fails the id is simply abandoned.
func (c *Catalog) NextTableID() ids.TableId {
	return c.tableIDs.Next()
}

// NextColumnID mints a fresh, process-wide ColumnId. Same eager-mint
// contract as NextTableID.
func (c *Catalog) NextColumnID() ids.ColumnId {
	return c.columnIDs.Next()
}

// DbOrCreate idempotently looks up a namespace schema by name, minting a new
// DatabaseId and an empty schema on first use.
func (c *Catalog) DbOrCreate(name string) (*schema.NamespaceSchema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ns, ok := c.byName[name]; ok {
		return ns, nil
	}

	dbID := ids.DatabaseId(c.dbIDs.Next())
	ns := schema.NewNamespaceSchema(dbID, name)
	c.byName[name] = ns
	c.byID[dbID] = ns

	c.logger.Info("database created", zap.String("database", name), zap.Uint64("database_id", uint64(dbID)))
	return ns, nil
}

// ApplyCatalogBatch atomically applies an ordered batch of schema operations.
// It returns (nil, nil) when, after folding against the current version, the
// batch turns out to be a no-op; otherwise the sequenced record.
func (c *Catalog) ApplyCatalogBatch(batch catalogop.Batch) (*catalogop.OrderedBatch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ns, ok := c.byID[batch.DatabaseID]
	if !ok {
		return nil, &verrors.CatalogPublicationError{
			Message: fmt.Sprintf("unknown database id %d", batch.DatabaseID),
		}
	}

	// Validators hold the NamespaceSchema returned by DbOrCreate as an
	// immutable snapshot. Never mutate it in place: fold and apply against a
	// private clone, then swap the catalog's own pointer to the new version.
	working := ns.Clone()
	appliedOps, err := c.foldAndApply(working, batch.Ops)
	if err != nil {
		return nil, &verrors.CatalogPublicationError{Message: err.Error()}
	}
	if len(appliedOps) == 0 {
		return nil, nil
	}

	appliedBatch := catalogop.Batch{
		DatabaseID:   batch.DatabaseID,
		DatabaseName: batch.DatabaseName,
		WallTimeNs:   batch.WallTimeNs,
		Ops:          appliedOps,
	}

	seq := c.sequenceIDs.Next()
	if err := c.persist(seq, appliedBatch); err != nil {
		return nil, &verrors.CatalogPublicationError{Message: err.Error()}
	}

	// Only now, after the batch is durably framed, does the in-memory
	// catalog move to the new schema version — a failed persist must leave
	// readers and future writers seeing the pre-batch schema, not a
	// half-committed one.
	c.byID[batch.DatabaseID] = working
	c.byName[working.DatabaseName] = working

	c.logger.Info("catalog batch published",
		zap.Uint64("sequence", seq),
		zap.String("database", batch.DatabaseName),
		zap.Int("ops", len(appliedOps)),
	)

	return &catalogop.OrderedBatch{Sequence: seq, Batch: appliedBatch}, nil
}

// foldAndApply installs CreateTable ops and merges AddFields ops against the
// currently published schema, folding out anything that already exists by
// name — the canonicalization the concurrency model requires when two
// validators race to propose the same column. It returns only the ops that
// actually changed state, mutating ns in place.
func (c *Catalog) foldAndApply(ns *schema.NamespaceSchema, ops []catalogop.Op) ([]catalogop.Op, error) {
	var applied []catalogop.Op

	for _, op := range ops {
		switch op.Kind {
		case catalogop.OpCreateTable:
			if _, exists := ns.TableByName(op.TableName); exists {
				continue // another writer already created this table; fold.
			}
			columns := make([]schema.Column, 0, len(op.FieldDefinitions))
			for _, fd := range op.FieldDefinitions {
				columns = append(columns, schema.Column{ID: fd.ColumnID, Name: fd.Name, Type: fd.Type})
			}
			td, err := schema.NewTableDefinition(op.TableID, op.TableName, columns, op.SeriesKey)
			if err != nil {
				return nil, err
			}
			if err := ns.InstallTable(td); err != nil {
				return nil, err
			}
			applied = append(applied, op)

		case catalogop.OpAddFields:
			existing, ok := ns.TableByName(op.TableName)
			if !ok {
				return nil, &verrors.TableNotFoundError{Name: op.TableName}
			}
			var newFields []catalogop.FieldDefinition
			var newColumns []schema.Column
			for _, fd := range op.FieldDefinitions {
				if _, exists := existing.ColumnByName(fd.Name); exists {
					continue // folded: another writer already added this column.
				}
				newFields = append(newFields, fd)
				newColumns = append(newColumns, schema.Column{ID: fd.ColumnID, Name: fd.Name, Type: fd.Type})
			}
			if len(newColumns) == 0 {
				continue
			}
			clone := existing.Clone()
			if err := clone.AddColumns(newColumns); err != nil {
				return nil, err
			}
			ns.ReplaceTable(clone)
			applied = append(applied, catalogop.AddFields(op.DatabaseID, op.DatabaseName, op.TableID, op.TableName, newFields))
		}
	}

	return applied, nil
}

// persist durably frames the applied batch through the adapted WAL. It does
// not write a schema snapshot; Snapshot does that when called.
func (c *Catalog) persist(seq uint64, batch catalogop.Batch) error {
	payload, err := bson.Marshal(toBSONBatch(batch))
	if err != nil {
		return fmt.Errorf("encode catalog batch: %w", err)
	}

	entry := wal.AcquireEntry()
	defer wal.ReleaseEntry(entry)

	entry.Header = wal.WALHeader{
		Magic:      wal.WALMagic,
		Version:    wal.WALVersion,
		EntryType:  wal.EntryCatalogBatch,
		LSN:        seq,
		PayloadLen: uint32(len(payload)),
		CRC32:      wal.CalculateCRC32(payload),
	}
	entry.Payload = append(entry.Payload[:0], payload...)

	if err := c.walWriter.WriteEntry(entry); err != nil {
		return fmt.Errorf("write catalog wal entry: %w", err)
	}
	return nil
}

// Snapshot writes the namespace's current schema to a UUIDv7-named file
// under the catalog's snapshot directory, using write-temp-then-rename for
// atomicity.
func (c *Catalog) Snapshot(databaseName string) (string, error) {
	c.mu.Lock()
	ns, ok := c.byName[databaseName]
	c.mu.Unlock()
	if !ok {
		return "", &verrors.TableNotFoundError{Name: databaseName}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("snapshot: generate id: %w", err)
	}

	doc := toBSONSchema(ns)
	data, err := bson.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("snapshot: encode: %w", err)
	}

	path := filepath.Join(c.snapshotDir, fmt.Sprintf("schema_%s_%s.bson", databaseName, id.String()))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("snapshot: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("snapshot: rename: %w", err)
	}
	return path, nil
}
