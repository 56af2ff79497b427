package core

import "fmt"

// IndexStatus is the classification assigned to an index row by a diff run.
type IndexStatus string

const (
	IndexCreated IndexStatus = "Created"
	IndexUpdated IndexStatus = "Updated"
	IndexDeleted IndexStatus = "Deleted"
	IndexSkipped IndexStatus = "Skipped"
)

// IndexRow is one entry of an incremental index snapshot.
type IndexRow struct {
	PartitionKey string      `json:"partition_key"`
	RowKey       string      `json:"row_key"`
	ChangeToken  string      `json:"change_token"`
	Status       IndexStatus `json:"status,omitempty"`
	ConnectionID string      `json:"connection_id,omitempty"`
}

// IndexIdentity is the (PartitionKey, RowKey) pair that identifies an index row.
type IndexIdentity struct {
	PartitionKey string
	RowKey       string
}

// Identity returns the row's identity.
func (r IndexRow) Identity() IndexIdentity {
	return IndexIdentity{PartitionKey: r.PartitionKey, RowKey: r.RowKey}
}

func (id IndexIdentity) String() string {
	return fmt.Sprintf("%s/%s", id.PartitionKey, id.RowKey)
}
