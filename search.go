package tablekit

import (
	"context"
	"fmt"
	"strings"
)

// IndexRequest is the document handed to a SearchIndexer after a successful
// mutation.
type IndexRequest struct {
	Table    string         `json:"table"`
	RecordID int64          `json:"recordId"`
	Text     string         `json:"text"`
	Data     map[string]any `json:"data"`
}

// NoopIndexer discards every index request. It is the default collaborator
// when no search backend is wired in.
type NoopIndexer struct{}

func (NoopIndexer) Index(_ context.Context, _ *IndexRequest) error {
	return nil
}

func (NoopIndexer) Delete(_ context.Context, _ string, _ int64) error {
	return nil
}

// flattenSearchText joins the text-like values of a record, in column order,
// into one searchable string. Secret columns never contribute.
func flattenSearchText(r *Resource, data map[string]any) string {
	var parts []string
	for _, col := range r.Columns() {
		if col.Type == TypeSecret {
			continue
		}
		switch col.Type {
		case TypeString, TypeText, TypeEmail, TypePhone, TypeSelect:
		default:
			continue
		}
		value, ok := data[col.Name]
		if !ok || isEmptyValue(value) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%v", value))
	}
	return strings.Join(parts, " ")
}
