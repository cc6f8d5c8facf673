package entity

import (
	"errors"
	"fmt"
)

// Error categories
var (
	ErrDataSource  = errors.New("data source error")
	ErrValidation  = errors.New("validation error")
	ErrPersistence = errors.New("persistence error")
)

// DataSourceError is returned when a ledger source cannot be reached or parsed.
// It aborts a run before any decision is persisted.
type DataSourceError struct {
	Org string
	Op  string
	Err error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %s for org %q: %v", e.Op, e.Org, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// Is matches ErrDataSource
func (e *DataSourceError) Is(target error) bool { return target == ErrDataSource }

// ValidationError marks a single malformed record that is skipped
type ValidationError struct {
	RecordID string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record %q: %s %s", e.RecordID, e.Field, e.Reason)
}

// Is matches ErrValidation
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// PersistenceError marks a single failed store write
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is matches ErrPersistence
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
