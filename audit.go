package tablekit

import (
	"context"
	"encoding/json"
	"time"
)

// AuditEntry is one immutable record of a mutating operation.
type AuditEntry struct {
	Table     string         `json:"table"`
	Row       int64          `json:"row"`
	Principal *Principal     `json:"principal"`
	Action    string         `json:"action"`
	Message   string         `json:"message"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// DefaultNowMillis is a DefaultFunc resolving to the current time in
// milliseconds, the storage representation of datetime columns.
func DefaultNowMillis(_ context.Context, _ *Principal) (any, error) {
	return time.Now().UnixMilli(), nil
}

// newAuditResource declares the built-in audit trail. Auditing and the view
// trail are disabled on it so writing an entry cannot recurse.
func newAuditResource() (*Resource, error) {
	audit := false
	views := false
	r, err := NewResource(ResourceConfig{
		Name:       "audit",
		Label:      "Audit",
		RolesWrite: []string{"Admin"},
		Audit:      &audit,
		Views:      &views,
	})
	if err != nil {
		return nil, err
	}

	cols := []ColumnDef{
		{Name: "created", FriendlyName: "When", Type: TypeDatetime, DefaultFunc: DefaultNowMillis, ReadOnly: true, Index: true, Order: 10},
		{Name: "table_name", FriendlyName: "Resource", Type: TypeString, ReadOnly: true, Index: true, Order: 20},
		{Name: "row_id", FriendlyName: "Record", Type: TypeInteger, ReadOnly: true, Index: true, Order: 30},
		{Name: "actor", FriendlyName: "Actor Id", Type: TypeInteger, ReadOnly: true, Index: true, Order: 40},
		{Name: "actor_name", FriendlyName: "Actor", Type: TypeString, ReadOnly: true, Order: 50},
		{Name: "action", FriendlyName: "Action", Type: TypeString, ReadOnly: true, Order: 60},
		{Name: "message", FriendlyName: "Message", Type: TypeString, ReadOnly: true, Order: 70},
		{Name: "detail", FriendlyName: "Detail", Type: TypeText, ReadOnly: true, Hidden: true, Order: 80},
		{Name: "operation", FriendlyName: "Operation", Type: TypeString, ReadOnly: true, Order: 90},
		{Name: "ip_address", FriendlyName: "IP", Type: TypeString, ReadOnly: true, Hidden: true, Order: 100},
		{Name: "request_id", FriendlyName: "Request", Type: TypeString, ReadOnly: true, Hidden: true, Order: 110},
	}
	for _, def := range cols {
		if err := r.ColumnAdd(def); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// tableAuditSink is the default AuditSink: it writes entries through the
// built-in audit resource's table on the internal path, so sink writes never
// produce entries of their own.
type tableAuditSink struct {
	resource *Resource
}

func (s *tableAuditSink) Log(ctx context.Context, entry *AuditEntry) error {
	ac := GetAuditContext(ctx)
	data := map[string]any{
		"created":    time.Now().UnixMilli(),
		"table_name": entry.Table,
		"row_id":     entry.Row,
		"action":     entry.Action,
		"message":    entry.Message,
		"operation":  ac.Operation,
		"ip_address": ac.IPAddress,
		"request_id": ac.RequestID,
	}
	if entry.Principal != nil {
		data["actor"] = entry.Principal.ID
		data["actor_name"] = entry.Principal.Name
	}
	if entry.Detail != nil {
		detail, err := json.Marshal(entry.Detail)
		if err != nil {
			return err
		}
		data["detail"] = string(detail)
	}

	_, err := s.resource.insertRow(ctx, data)
	return err
}
