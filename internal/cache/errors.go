package cache

import (
	"encoding/json"
	"fmt"
)

// DecodeError reports a stored row that could not be reconstructed into its
// typed record: a corrupted JSON blob or a malformed timestamp. The table
// and row id locate the damage without exposing row contents. The caller
// decides whether to skip the row or abort the batch.
type DecodeError struct {
	Table string
	ID    int64
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s row %d: %v", e.Table, e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// decodeErr wraps an error as a DecodeError for one row.
func decodeErr(table string, id int64, err error) error {
	return &DecodeError{Table: table, ID: id, Err: err}
}

// StoreError reports a failed write to the underlying database: a
// transaction that would not begin or commit, or a statement the engine
// rejected. Unlike a per-class fetch failure, a broken store taints every
// subsequent write, so callers abort the whole pass when they see one.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// storeErr wraps a database write failure as a StoreError.
func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// encodeBlob serializes a nested field for its text column.
func encodeBlob(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal blob column: %w", err)
	}
	return string(b), nil
}

// decodeBlob deserializes a text column back into its nested field.
func decodeBlob(s, column string, v any) error {
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("malformed %s blob: %w", column, err)
	}
	return nil
}
