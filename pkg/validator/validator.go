// Package validator implements the write validator and schema reconciler:
// the type-state Phase P / Phase C pipeline that turns a line-protocol
// payload into qualified rows and catalog deltas for one namespace.
package validator

import (
	"strings"

	"go.uber.org/zap"

	"github.com/bobboyms/write-validator/pkg/catalogop"
	"github.com/bobboyms/write-validator/pkg/ids"
	"github.com/bobboyms/write-validator/pkg/lineprotocol"
	"github.com/bobboyms/write-validator/pkg/precision"
	"github.com/bobboyms/write-validator/pkg/schema"
	"github.com/bobboyms/write-validator/pkg/verrors"
)

// Validator is the Initialized state: bound to a namespace, a catalog
// handle, and the ingest wall-clock time used as the fallback timestamp.
type Validator struct {
	catalog      Catalog
	logger       *zap.Logger
	databaseID   ids.DatabaseId
	databaseName string
	timeNowNs    int64
	shadow       *schema.Shadow
}

// Option configures a Validator at construction time.
type Option func(*Validator)

// WithLogger attaches structured logging; the default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(v *Validator) { v.logger = logger }
}

// Initialize creates the namespace in the catalog if absent, takes a
// snapshot of its current schema, and returns a validator ready to parse
// one batch of lines.
func Initialize(catalog Catalog, namespace string, timeNowNs int64, opts ...Option) (*Validator, error) {
	ns, err := catalog.DbOrCreate(namespace)
	if err != nil {
		return nil, err
	}
	v := &Validator{
		catalog:      catalog,
		logger:       zap.NewNop(),
		databaseID:   ns.DatabaseID,
		databaseName: ns.DatabaseName,
		timeNowNs:    timeNowNs,
		shadow:       schema.NewShadow(ns),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// splitRawLines breaks the payload into the raw lines the tokenizer will
// actually decode, skipping blank and comment lines the same way the
// decoder does, so line numbers and byte counts stay aligned with its
// output. This is the byte-counting strategy spec.md §9 leaves open.
func splitRawLines(text string) []string {
	all := strings.Split(text, "\n")
	out := make([]string, 0, len(all))
	for _, l := range all {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		out = append(out, l)
	}
	return out
}

// ParseAndUpdateSchema qualifies every line in lpText in source order,
// accruing schema deltas into the shadow and, on success, publishing them
// atomically to the catalog. Under accept_partial=false the first failing
// line aborts with a ParseError and no catalog mutation occurs.
func (v *Validator) ParseAndUpdateSchema(
	lpText string,
	acceptPartial bool,
	ingestTimeNs int64,
	prec precision.Precision,
) (*ParsedValidator, error) {
	raw := splitRawLines(lpText)
	dec := lineprotocol.NewDecoder(lpText)

	var qualified []QualifiedLine
	var lineErrors []LineError
	var ops []catalogop.Op
	validBytes, fieldCount, indexCount := 0, 0, 0

	for i, rawLine := range raw {
		lineNumber := i + 1

		ln, err := dec.Next()
		if err != nil {
			if !acceptPartial {
				return nil, &verrors.ParseError{LineNumber: lineNumber, LineText: rawLine, Message: err.Error()}
			}
			lineErrors = append(lineErrors, LineError{OriginalLine: rawLine, LineNumber: lineNumber, Message: err.Error()})
			continue
		}
		if ln == nil {
			break
		}

		ql, op, err := qualifyLine(v.shadow, v.catalog, v.databaseID, v.databaseName, ln, lineNumber, ingestTimeNs, prec)
		if err != nil {
			v.logger.Debug("line qualification failed",
				zap.Int("line", lineNumber),
				zap.Error(err),
			)
			if !acceptPartial {
				return nil, &verrors.ParseError{LineNumber: lineNumber, LineText: rawLine, Message: err.Error()}
			}
			lineErrors = append(lineErrors, LineError{OriginalLine: rawLine, LineNumber: lineNumber, Message: err.Error()})
			continue
		}

		qualified = append(qualified, *ql)
		validBytes += len(rawLine)
		fieldCount += ql.FieldCount
		indexCount += ql.IndexCount
		if op != nil {
			ops = append(ops, *op)
		}
	}

	var published *catalogop.OrderedBatch
	if len(ops) > 0 {
		batch := catalogop.Batch{
			DatabaseID:   v.databaseID,
			DatabaseName: v.databaseName,
			WallTimeNs:   v.timeNowNs,
			Ops:          ops,
		}
		ordered, err := v.catalog.ApplyCatalogBatch(batch)
		if err != nil {
			// Catalog publication errors always abort the whole batch, even the
			// lines that qualified cleanly: no observable state change.
			return nil, err
		}
		published = ordered
		if published != nil {
			v.logger.Info("catalog batch published",
				zap.Uint64("sequence", published.Sequence),
				zap.String("database", v.databaseName),
			)
		}
	}

	return &ParsedValidator{
		databaseID:     v.databaseID,
		databaseName:   v.databaseName,
		qualified:      qualified,
		errors:         lineErrors,
		validBytes:     validBytes,
		fieldCount:     fieldCount,
		indexCount:     indexCount,
		catalogUpdates: published,
		schema:         v.shadow.Snapshot(),
	}, nil
}

// ParsedValidator is the Parsed state: holds the qualified lines, per-line
// errors, accounting, and any published catalog batch. ConvertToWriteBatch
// consumes it exactly once.
type ParsedValidator struct {
	databaseID   ids.DatabaseId
	databaseName string

	qualified      []QualifiedLine
	errors         []LineError
	validBytes     int
	fieldCount     int
	indexCount     int
	catalogUpdates *catalogop.OrderedBatch
	schema         *schema.NamespaceSchema

	consumed bool
}

// Rows returns the qualified rows without bucketing them, for tests and
// callers that want to inspect Phase P's output directly.
func (p *ParsedValidator) Rows() []QualifiedLine {
	return p.qualified
}

// Inner returns the parsed state's raw fields, an escape hatch mirroring
// the original implementation's into_inner().
func (p *ParsedValidator) Inner() (qualified []QualifiedLine, errs []LineError, catalogUpdates *catalogop.OrderedBatch) {
	return p.qualified, p.errors, p.catalogUpdates
}

// SchemaSnapshot returns the namespace schema this batch qualified against,
// including any tables or columns staged during Phase P — the shadow's
// view at the moment Phase P finished, independent of whether the catalog
// had new ops to publish.
func (p *ParsedValidator) SchemaSnapshot() *schema.NamespaceSchema {
	return p.schema
}

// ConvertToWriteBatch buckets the qualified rows into the final write batch
// and returns the ValidatedLines summary. It is contractually infallible
// (Phase C never fails once Phase P returned success) but guards the
// type-state contract at runtime: calling it twice is a programming error.
func (p *ParsedValidator) ConvertToWriteBatch(chunkWindowNs int64) (*ValidatedLines, error) {
	if p.consumed {
		return nil, &verrors.StateError{Method: "ConvertToWriteBatch", State: "Terminal"}
	}
	p.consumed = true

	batch := bucketRows(p.qualified, p.databaseID, p.databaseName, chunkWindowNs)

	return &ValidatedLines{
		LineCount:       len(p.qualified) + len(p.errors),
		ValidBytesCount: p.validBytes,
		FieldCount:      p.fieldCount,
		IndexCount:      p.indexCount,
		Errors:          p.errors,
		ValidData:       batch,
		CatalogUpdates:  p.catalogUpdates,
	}, nil
}
