package core

import "errors"

var (
	// ErrConfiguration marks a caller or schema bug, such as a schema with no
	// primary keys used by an operation that needs them.
	ErrConfiguration = errors.New("configuration error")

	// ErrDuplicateMatch is returned when a source row matches more than one target row.
	ErrDuplicateMatch = errors.New("duplicate items found in target")

	// ErrSourceNotUnique is returned when two source rows pair with the same target row.
	ErrSourceNotUnique = errors.New("multiple matches found in source")

	// ErrKeyConflict is returned when a key would exist in both identifiers and data.
	ErrKeyConflict = errors.New("key exists in both data and identifiers")

	// ErrSchemaConflict is returned when a field name is reused with a different type.
	ErrSchemaConflict = errors.New("schema conflict")

	// ErrNotConfigured is returned when an adapter or orchestrator is used before setup.
	ErrNotConfigured = errors.New("not configured")

	// ErrClosed is returned by stores and queues after Close.
	ErrClosed = errors.New("closed")

	// ErrNotFound is returned by key/value stores for missing keys.
	ErrNotFound = errors.New("not found")
)
