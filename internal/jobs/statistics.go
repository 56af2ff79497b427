package jobs

import (
	"fmt"

	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/indexdiff"
)

// Statistics are the row counts of one or more job runs.
type Statistics struct {
	RowsNew     int `json:"rows_new"`
	RowsUpdated int `json:"rows_updated"`
	RowsDeleted int `json:"rows_deleted"`
	RowsSkipped int `json:"rows_skipped"`
	RowsFailed  int `json:"rows_failed"`

	// Errors maps a row's key string to its error message.
	Errors map[string]string `json:"errors,omitempty"`
}

// StatisticsFromDiff converts index diff counts.
func StatisticsFromDiff(s indexdiff.Stats) *Statistics {
	return &Statistics{
		RowsNew:     s.RowsNew,
		RowsUpdated: s.RowsUpdated,
		RowsDeleted: s.RowsDeleted,
		RowsSkipped: s.RowsSkipped,
	}
}

// StatisticsFromResponse counts an upsert response. Upsert does not report
// which path a row took, so every successful row counts as updated.
func StatisticsFromResponse(resp *core.OperationResponse) *Statistics {
	stats := &Statistics{}
	if resp == nil {
		return stats
	}

	stats.RowsUpdated = len(resp.SuccessItems)
	for _, e := range resp.ItemErrors {
		if e.Severity != core.SeverityError {
			continue
		}
		stats.RowsFailed++
		stats.addError(e.KeyString(), e.Message)
	}
	return stats
}

func (s *Statistics) addError(key, message string) {
	if s.Errors == nil {
		s.Errors = make(map[string]string)
	}
	s.Errors[key] = message
}

// Append adds other's counts and errors to s.
func (s *Statistics) Append(other *Statistics) {
	if other == nil {
		return
	}
	s.RowsNew += other.RowsNew
	s.RowsUpdated += other.RowsUpdated
	s.RowsDeleted += other.RowsDeleted
	s.RowsSkipped += other.RowsSkipped
	s.RowsFailed += other.RowsFailed
	for k, v := range other.Errors {
		s.addError(k, v)
	}
}

func (s *Statistics) String() string {
	return fmt.Sprintf("New rows: %d Updated: %d Deleted: %d Skipped: %d Failed: %d",
		s.RowsNew, s.RowsUpdated, s.RowsDeleted, s.RowsSkipped, s.RowsFailed)
}
