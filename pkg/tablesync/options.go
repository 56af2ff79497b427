package tablesync

import "github.com/rzpsarthak13/tablesync/internal/core"

// syncSettings are the effective parameters of one Synchronize call.
type syncSettings struct {
	source         string
	target         string
	sourceTable    string
	targetTable    string
	identifierKeys []string
}

// SyncOption overrides the sync section of the configuration for one call.
type SyncOption func(*syncSettings)

// WithConnections sets the source and target connection names. An empty
// name keeps the configured one.
func WithConnections(source, target string) SyncOption {
	return func(s *syncSettings) {
		s.source = override(s.source, source)
		s.target = override(s.target, target)
	}
}

// WithTables sets the source and target table names. An empty name keeps
// the configured one.
func WithTables(sourceTable, targetTable string) SyncOption {
	return func(s *syncSettings) {
		s.sourceTable = override(s.sourceTable, sourceTable)
		s.targetTable = override(s.targetTable, targetTable)
	}
}

// WithIdentifierKeys sets the fields that address rows in the target.
func WithIdentifierKeys(keys ...string) SyncOption {
	return func(s *syncSettings) {
		if len(keys) > 0 {
			s.identifierKeys = keys
		}
	}
}

func override(current, value string) string {
	if value == "" {
		return current
	}
	return value
}

// ClientOption customizes client construction.
type ClientOption func(*clientOptions)

type clientOptions struct {
	store core.KVStore
	queue core.JobQueue
}

// WithStore uses store for schema and index metadata instead of creating
// one from the store section. The client does not close it.
func WithStore(store core.KVStore) ClientOption {
	return func(o *clientOptions) {
		o.store = store
	}
}

// WithQueue uses queue for background jobs instead of creating one from the
// jobs section. The client closes it.
func WithQueue(queue core.JobQueue) ClientOption {
	return func(o *clientOptions) {
		o.queue = queue
	}
}
