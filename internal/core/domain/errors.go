package domain

import "errors"

// Error kinds surfaced by the engine. Callers match them with errors.Is.
var (
	// ErrConnection means the destination store is unreachable. Fatal, raised before any DDL.
	ErrConnection = errors.New("destination unreachable")
	// ErrSchemaConflict means the table already exists and replace was not requested.
	// The migrator recovers by reusing the table.
	ErrSchemaConflict = errors.New("table already exists")
	// ErrIndexDefinition means an index references a missing or ineligible column.
	// The index is skipped.
	ErrIndexDefinition = errors.New("invalid index definition")
	// ErrBatchInsert means a batch transaction failed. Earlier batches stay committed.
	ErrBatchInsert = errors.New("batch insert failed")
	// ErrTypeInferenceAmbiguity means a column could not be classified. Resolved by the
	// widest text fallback.
	ErrTypeInferenceAmbiguity = errors.New("ambiguous column type")

	ErrInvalidConfig = errors.New("invalid config")
	ErrInvalidQuery  = errors.New("invalid query")
	ErrNotFound      = errors.New("not found")
)
