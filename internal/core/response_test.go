package core

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestOperationResponse_Result(t *testing.T) {
	item := NewItem(map[string]interface{}{"Id": 9}, nil)

	tests := []struct {
		name  string
		build func(r *OperationResponse)
		want  OperationResult
	}{
		{"empty", func(r *OperationResponse) {}, ResultSuccess},
		{"successes only", func(r *OperationResponse) { r.AddSuccess(item) }, ResultSuccess},
		{"general info", func(r *OperationResponse) { r.AddGeneral(SeverityInfo, "fyi") }, ResultSuccess},
		{"general error", func(r *OperationResponse) {
			r.AddSuccess(item)
			r.AddGeneral(SeverityError, "down")
		}, ResultFailure},
		{"general warning", func(r *OperationResponse) { r.AddGeneral(SeverityWarning, "slow") }, ResultPartialSuccess},
		{"item error with success", func(r *OperationResponse) {
			r.AddSuccess(item)
			r.AddItemError(SeverityError, "bad", item)
		}, ResultPartialSuccess},
		{"item error alone", func(r *OperationResponse) { r.AddItemError(SeverityError, "bad", item) }, ResultFailure},
		{"item warning", func(r *OperationResponse) { r.AddItemError(SeverityWarning, "meh", item) }, ResultPartialSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewOperationResponse()
			tt.build(r)
			assert.Equal(t, tt.want, r.Result())
		})
	}
}

func expectedResult(generalError, generalWarning, itemError, itemWarning bool, successes int) OperationResult {
	switch {
	case generalError:
		return ResultFailure
	case generalWarning:
		return ResultPartialSuccess
	case itemError && successes > 0:
		return ResultPartialSuccess
	case itemError:
		return ResultFailure
	case itemWarning:
		return ResultPartialSuccess
	}
	return ResultSuccess
}

func TestProperty_ResultPrecedence(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("result follows the precedence table", prop.ForAll(
		func(generalError, generalWarning, itemError, itemWarning bool, successes int) bool {
			r := NewOperationResponse()
			item := NewItem(map[string]interface{}{"Id": 1}, nil)
			for n := 0; n < successes; n++ {
				r.AddSuccess(item)
			}
			if itemWarning {
				r.AddItemError(SeverityWarning, "w", item)
			}
			if itemError {
				r.AddItemError(SeverityError, "e", item)
			}
			if generalWarning {
				r.AddGeneral(SeverityWarning, "w")
			}
			if generalError {
				r.AddGeneral(SeverityError, "e")
			}
			return r.Result() == expectedResult(generalError, generalWarning, itemError, itemWarning, successes) &&
				r.IsOk() == !generalError
		},
		gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(), gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}

func TestOperationResponse_AppendAndStatus(t *testing.T) {
	a := NewOperationResponse()
	a.AddItemError(SeverityWarning, "w", NewDataItem(map[string]interface{}{"Name": "x"}))
	b := NewOperationResponse()
	b.AddGeneral(SeverityWarning, "slow %d", 3)
	b.AddSuccess(NewDataItem(nil))

	a.Append(b)
	a.Append(nil)
	assert.Len(t, a.ItemErrors, 1)
	assert.Len(t, a.GeneralErrors, 1)
	assert.Len(t, a.SuccessItems, 1)
	assert.Equal(t, "slow 3", a.GeneralErrors[0].Message)
	assert.Equal(t, SeverityWarning, a.GeneralStatus())
	assert.Equal(t, SeverityWarning, a.ItemStatus())
	assert.True(t, a.IsOk())
}

func TestOperationResponse_String(t *testing.T) {
	r := NewOperationResponse()
	r.AddItemError(SeverityError, "duplicate key", NewItem(map[string]interface{}{"Id": 9}, map[string]interface{}{"Name": "x"}))
	r.AddGeneral(SeverityWarning, "slow")
	for n := 0; n < 7; n++ {
		r.AddGeneral(SeverityError, "boom")
	}

	s := r.String()
	assert.Contains(t, s, "Operation result: Failure.")
	assert.Contains(t, s, "General errors: 7. General warnings: 1. Item errors: 1.")
	assert.Contains(t, s, "Error, Item keys: Id : 9 Message: duplicate key")
	assert.NotContains(t, s, "Warning, Message: slow", "only five general examples, most severe first")
}

func TestItemError_KeysFallBackToWholeItem(t *testing.T) {
	e := NewItemError(SeverityError, "x", NewDataItem(map[string]interface{}{"A": 1, "B": 2}))
	assert.Equal(t, "A : 1, B : 2", e.KeyString())
}

func TestInsertResult_OutputFor(t *testing.T) {
	in := NewDataItem(map[string]interface{}{"Name": "x"})
	out := NewItem(map[string]interface{}{"Id": 1}, map[string]interface{}{"Name": "x"})
	r := NewInsertResult()
	r.Inserted = append(r.Inserted, InsertedItem{Input: in, Output: out})

	got, ok := r.OutputFor(in)
	assert.True(t, ok)
	assert.Same(t, out, got)
	_, ok = r.OutputFor(NewDataItem(nil))
	assert.False(t, ok)
	assert.Equal(t, []*Item{out}, r.Outputs())
}
