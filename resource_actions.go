package tablekit

import (
	"context"
)

// ActionsGet returns the actions the principal may execute, as a map of
// action id to descriptor. When recordID is non-zero the record is loaded and
// each action's disabled predicate is resolved against it; actionType narrows
// to "record" or "table" actions when non-empty.
func (r *Resource) ActionsGet(ctx context.Context, principal *Principal, recordID int64, actionType string) (map[string]ActionDescriptor, error) {
	var record map[string]any
	if recordID != 0 {
		var err error
		record, err = r.RecordGet(ctx, principal, GetOptions{RecordID: recordID})
		if err != nil {
			return nil, err
		}
	}

	out := make(map[string]ActionDescriptor)
	for _, id := range r.actionOrder {
		a := r.actions[id]
		if actionType != "" && a.Type != actionType {
			continue
		}
		if !a.HaveAccess(principal) {
			continue
		}

		d := a.Descriptor()
		d.Disabled = a.DisabledCheck(ctx, principal, record)
		out[id] = d
	}

	return out, nil
}

// ChildrenGet returns the child links whose resource the principal may read.
func (r *Resource) ChildrenGet(principal *Principal) []ChildLink {
	out := make([]ChildLink, 0, len(r.children))
	for _, link := range r.children {
		child := r.engine.Resource(link.Table)
		if child != nil && !child.Authorized(principal, "rowsGet") {
			continue
		}
		out = append(out, link)
	}
	return out
}

func (r *Resource) methodActionsGet(ctx context.Context, call *Call) (any, error) {
	var recordID int64
	if id, err := argID(call.Args, "id"); err == nil {
		recordID = id
	}
	actionType, _ := call.Args["type"].(string)
	return r.ActionsGet(ctx, call.Principal, recordID, actionType)
}

func (r *Resource) methodChildrenGet(_ context.Context, call *Call) (any, error) {
	return r.ChildrenGet(call.Principal), nil
}
