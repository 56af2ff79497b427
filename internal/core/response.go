package core

import (
	"fmt"
	"sort"
	"strings"
)

// Severity ranks response entries. Lower values are more severe.
type Severity int

const (
	SeverityError   Severity = 1
	SeverityWarning Severity = 2
	SeverityInfo    Severity = 3
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "Error"
	case SeverityWarning:
		return "Warning"
	case SeverityInfo:
		return "Info"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// OperationResult is the derived outcome of a batch operation.
type OperationResult int

const (
	ResultSuccess OperationResult = iota
	ResultPartialSuccess
	ResultFailure
)

func (r OperationResult) String() string {
	switch r {
	case ResultSuccess:
		return "Success"
	case ResultPartialSuccess:
		return "PartialSuccess"
	case ResultFailure:
		return "Failure"
	default:
		return fmt.Sprintf("OperationResult(%d)", int(r))
	}
}

// GeneralError is an operation-wide response entry.
type GeneralError struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ItemError is a response entry for a single item. Keys holds the item's
// identifying fields, or the whole item when it has none.
type ItemError struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Keys     Fields   `json:"keys"`
}

// KeyString renders Keys as "k : v, k : v".
func (e ItemError) KeyString() string {
	parts := make([]string, 0, e.Keys.Len())
	e.Keys.Range(func(k string, v interface{}) bool {
		parts = append(parts, fmt.Sprintf("%s : %v", k, v))
		return true
	})
	return strings.Join(parts, ", ")
}

// NewItemError builds an ItemError keyed by the item's identifiers.
func NewItemError(severity Severity, message string, item *Item) ItemError {
	return ItemError{Severity: severity, Message: message, Keys: identifyingFields(item)}
}

// NewItemErrorWithKeys builds an ItemError with explicit identifying keys.
func NewItemErrorWithKeys(severity Severity, message string, keys Fields) ItemError {
	return ItemError{Severity: severity, Message: message, Keys: keys}
}

func identifyingFields(item *Item) Fields {
	if item == nil {
		return Fields{}
	}
	if item.Identifiers.Len() > 0 {
		return item.Identifiers.Clone()
	}
	return item.CombinedView()
}

// OperationResponse is the result envelope of a batch operation.
type OperationResponse struct {
	GeneralErrors []GeneralError `json:"general_errors"`
	ItemErrors    []ItemError    `json:"item_errors"`
	SuccessItems  []*Item        `json:"success_items"`
}

// NewOperationResponse returns an empty response.
func NewOperationResponse() *OperationResponse {
	return &OperationResponse{}
}

// AddGeneral records an operation-wide entry.
func (r *OperationResponse) AddGeneral(severity Severity, format string, args ...interface{}) {
	r.GeneralErrors = append(r.GeneralErrors, GeneralError{Severity: severity, Message: fmt.Sprintf(format, args...)})
}

// AddItemError records an entry for item.
func (r *OperationResponse) AddItemError(severity Severity, message string, item *Item) {
	r.ItemErrors = append(r.ItemErrors, NewItemError(severity, message, item))
}

// AddSuccess records a successfully processed item.
func (r *OperationResponse) AddSuccess(item *Item) {
	r.SuccessItems = append(r.SuccessItems, item)
}

// Append concatenates other's entries onto r.
func (r *OperationResponse) Append(other *OperationResponse) {
	if other == nil {
		return
	}
	r.GeneralErrors = append(r.GeneralErrors, other.GeneralErrors...)
	r.ItemErrors = append(r.ItemErrors, other.ItemErrors...)
	r.SuccessItems = append(r.SuccessItems, other.SuccessItems...)
}

// IsOk is true when no general error exists.
func (r *OperationResponse) IsOk() bool {
	return !r.hasGeneral(SeverityError)
}

// GeneralStatus returns the most severe general entry, or Info.
func (r *OperationResponse) GeneralStatus() Severity {
	switch {
	case r.hasGeneral(SeverityError):
		return SeverityError
	case r.hasGeneral(SeverityWarning):
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// ItemStatus returns the most severe item entry, or Info.
func (r *OperationResponse) ItemStatus() Severity {
	switch {
	case r.hasItem(SeverityError):
		return SeverityError
	case r.hasItem(SeverityWarning):
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Result derives the outcome. First matching rule wins.
func (r *OperationResponse) Result() OperationResult {
	switch {
	case r.hasGeneral(SeverityError):
		return ResultFailure
	case r.hasGeneral(SeverityWarning):
		return ResultPartialSuccess
	case r.hasItem(SeverityError) && len(r.SuccessItems) > 0:
		return ResultPartialSuccess
	case r.hasItem(SeverityError):
		return ResultFailure
	case r.hasItem(SeverityWarning):
		return ResultPartialSuccess
	default:
		return ResultSuccess
	}
}

func (r *OperationResponse) hasGeneral(s Severity) bool {
	return r.countGeneral(s) > 0
}

func (r *OperationResponse) hasItem(s Severity) bool {
	return r.countItem(s) > 0
}

func (r *OperationResponse) countGeneral(s Severity) int {
	n := 0
	for _, g := range r.GeneralErrors {
		if g.Severity == s {
			n++
		}
	}
	return n
}

func (r *OperationResponse) countItem(s Severity) int {
	n := 0
	for _, e := range r.ItemErrors {
		if e.Severity == s {
			n++
		}
	}
	return n
}

const maxExamples = 5

// String summarizes counts per severity and up to five examples of each kind.
func (r *OperationResponse) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Operation result: %s.\n", r.Result())

	counts := []struct {
		label string
		n     int
	}{
		{"General errors", r.countGeneral(SeverityError)},
		{"General warnings", r.countGeneral(SeverityWarning)},
		{"General info", r.countGeneral(SeverityInfo)},
		{"Item errors", r.countItem(SeverityError)},
		{"Item warnings", r.countItem(SeverityWarning)},
		{"Item info", r.countItem(SeverityInfo)},
		{"Success items", len(r.SuccessItems)},
	}
	for _, c := range counts {
		if c.n > 0 {
			fmt.Fprintf(&sb, "%s: %d. ", c.label, c.n)
		}
	}
	sb.WriteString("\n")

	general := append([]GeneralError(nil), r.GeneralErrors...)
	sort.SliceStable(general, func(a, b int) bool { return general[a].Severity < general[b].Severity })
	for idx, g := range general {
		if idx == maxExamples {
			break
		}
		fmt.Fprintf(&sb, "%s, Message: %s\n", g.Severity, g.Message)
	}

	items := append([]ItemError(nil), r.ItemErrors...)
	sort.SliceStable(items, func(a, b int) bool { return items[a].Severity < items[b].Severity })
	for idx, e := range items {
		if idx == maxExamples {
			break
		}
		fmt.Fprintf(&sb, "%s, Item keys: %s Message: %s\n", e.Severity, e.KeyString(), e.Message)
	}

	return sb.String()
}

// ItemsResult pairs a response with the items produced by the operation.
type ItemsResult struct {
	Items    []*Item
	Response *OperationResponse
}

// NewItemsResult returns an empty result.
func NewItemsResult() *ItemsResult {
	return &ItemsResult{Response: NewOperationResponse()}
}

// InsertedItem pairs an input item with the row the backend returned for it.
type InsertedItem struct {
	Input  *Item
	Output *Item
}

// InsertResult is the result of an insert batch.
type InsertResult struct {
	Inserted []InsertedItem
	Response *OperationResponse
}

// NewInsertResult returns an empty result.
func NewInsertResult() *InsertResult {
	return &InsertResult{Response: NewOperationResponse()}
}

// Outputs returns the backend rows in insert order.
func (r *InsertResult) Outputs() []*Item {
	out := make([]*Item, 0, len(r.Inserted))
	for _, in := range r.Inserted {
		out = append(out, in.Output)
	}
	return out
}

// OutputFor returns the backend row produced for input.
func (r *InsertResult) OutputFor(input *Item) (*Item, bool) {
	for _, in := range r.Inserted {
		if in.Input == input {
			return in.Output, true
		}
	}
	return nil, false
}
