// Package verrors defines the per-line and per-batch failure kinds the
// validator can raise, following the storage engine's plain struct +
// Error() string convention rather than a wrapping error library.
package verrors

import "fmt"

// TokenizationError reports that the external line-protocol parser rejected
// a line's syntax outright.
type TokenizationError struct {
	Line    int
	Text    string
	Message string
}

func (e *TokenizationError) Error() string {
	return fmt.Sprintf("line %d: tokenization failed: %s", e.Line, e.Message)
}

// TypeMismatchError reports that an incoming field's inferred type disagrees
// with the type already established for that column.
type TypeMismatchError struct {
	Line     int
	Field    string
	Expected string
	Incoming string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("invalid field value in line protocol for field '%s' on line %d: expected type %s, but got %s",
		e.Field, e.Line, e.Expected, e.Incoming)
}

// SchemaConstructionError reports that a staged column addition or table
// insertion violated a schema invariant (name collision, bad name, duplicate
// id).
type SchemaConstructionError struct {
	Line    int
	Message string
}

func (e *SchemaConstructionError) Error() string {
	return fmt.Sprintf("line %d: schema construction failed: %s", e.Line, e.Message)
}

// CatalogPublicationError reports that the external catalog refused or
// failed an atomic batch publish.
type CatalogPublicationError struct {
	Message string
}

func (e *CatalogPublicationError) Error() string {
	return fmt.Sprintf("catalog publication failed: %s", e.Message)
}

// ParseError is the batch-level failure surfaced when accept_partial is
// false and some line fails to qualify. It carries the first offending
// line's own text and position so callers can report it verbatim.
type ParseError struct {
	LineNumber int
	LineText   string
	Message    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d (%q): %s", e.LineNumber, e.LineText, e.Message)
}

// TableNotFoundError reports a lookup against a table id or name the
// namespace schema does not know about.
type TableNotFoundError struct {
	Name string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q not found", e.Name)
}

// ColumnNameCollisionError reports that a proposed column name already
// exists on the table with a different semantic type or role.
type ColumnNameCollisionError struct {
	Table  string
	Column string
}

func (e *ColumnNameCollisionError) Error() string {
	return fmt.Sprintf("column %q already exists on table %q with a conflicting definition", e.Column, e.Table)
}

// DuplicateTableIdError reports an attempt to install a table id that
// already exists in the shadow schema — a programming-error-class failure,
// since ids are minted fresh per proposal.
type DuplicateTableIdError struct {
	TableID uint64
}

func (e *DuplicateTableIdError) Error() string {
	return fmt.Sprintf("unexpected overwrite of existing table (id %d)", e.TableID)
}

// InvalidTableNameError reports an empty or otherwise illegal table name.
type InvalidTableNameError struct {
	Name string
}

func (e *InvalidTableNameError) Error() string {
	return fmt.Sprintf("invalid table name: %q", e.Name)
}

// StateError reports an attempt to call a validator method out of sequence
// with its type-state lifecycle (Initialized -> Parsed -> Terminal).
type StateError struct {
	Method string
	State  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s called on validator in state %s", e.Method, e.State)
}
