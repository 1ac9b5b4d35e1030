package tablekit

import (
	"fmt"
)

// newViewsResource declares the built-in recently-viewed trail. Every
// successful RecordGet by a real principal appends one row here, best effort.
func newViewsResource() (*Resource, error) {
	audit := false
	views := false
	r, err := NewResource(ResourceConfig{
		Name:  "views",
		Label: "Recently Viewed",
		Audit: &audit,
		Views: &views,
	})
	if err != nil {
		return nil, err
	}

	cols := []ColumnDef{
		{Name: "created", FriendlyName: "When", Type: TypeDatetime, DefaultFunc: DefaultNowMillis, ReadOnly: true, Index: true, Order: 10},
		{Name: "table_name", FriendlyName: "Resource", Type: TypeString, ReadOnly: true, Index: true, Order: 20},
		{Name: "row_id", FriendlyName: "Record", Type: TypeInteger, ReadOnly: true, Index: true, Order: 30},
		{Name: "actor", FriendlyName: "Actor", Type: TypeInteger, ReadOnly: true, Index: true, Order: 40},
		{Name: "display", FriendlyName: "Record Name", Type: TypeString, ReadOnly: true, Order: 50},
	}
	for _, def := range cols {
		if err := r.ColumnAdd(def); err != nil {
			return nil, err
		}
	}

	// The trail is self-scoped: every principal sees only its own views.
	r.AccessFilterAdd(SelfFilter("actor"))

	return r, nil
}

// viewDisplay picks a human label for a viewed record: its "name" column when
// present, else the record id.
func viewDisplay(row map[string]any) string {
	if name, ok := row["name"].(string); ok && name != "" {
		return name
	}
	return fmt.Sprintf("#%v", row["id"])
}
