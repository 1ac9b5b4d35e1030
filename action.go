package tablekit

import (
	"context"
	"strings"
)

// DisabledFunc decides whether an action is disabled for a record. It returns
// a human-readable reason, or empty when the action is enabled.
type DisabledFunc func(ctx context.Context, principal *Principal, record map[string]any) string

// ActionInput declares one input field of an action, used both for
// introspection and for the built-in argument validator.
type ActionInput struct {
	Name         string
	FriendlyName string
	Type         ColumnType
	Required     bool
	HelpText     string
}

// ActionDef declares a user-triggerable operation on a resource.
type ActionDef struct {
	// ID overrides the id derived from the label. The final action id is
	// "action" plus the id or label with spaces removed.
	ID    string
	Label string

	HelpText string

	// Method is the bound operation. A nil method makes the action a
	// no-op present only for its presentation metadata (e.g. a divider or
	// a close button).
	Method    MethodFunc
	Validator ValidatorFunc
	Inputs    []ActionInput

	// RolesExecute gates execution; when empty the resource's write roles
	// apply. RolesNotExecute excludes principals holding any of them.
	RolesExecute    []string
	RolesNotExecute []string

	// Verify is a confirmation prompt shown before the action runs.
	Verify string

	Color       string
	Icon        string
	Close       bool
	ShowSuccess *bool // defaults to true
	Touch       *bool // defaults to true

	// Type is "record" (default) or "table".
	Type string

	Disabled DisabledFunc

	// NewLine renders a divider before the action.
	NewLine bool
}

// Action is a resolved, immutable operation of a resource.
type Action struct {
	ID           string
	Label        string
	HelpText     string
	Ordinal      int
	Color        string
	Icon         string
	Close        bool
	ShowSuccess  bool
	Touch        bool
	Verify       string
	Type         string
	NoOp         bool
	NewLine      bool
	Inputs       []ActionInput
	rolesExecute []string
	rolesExclude []string
	disabled     DisabledFunc
	resource     *Resource
}

// newAction resolves a declaration against its owning resource, registers the
// bound method in the resource's method registry and propagates execute-role
// requirements into the resource's aggregate write-role set. The ordinal is
// spaced by hundreds so later declarations can slot between existing ones.
func newAction(r *Resource, def ActionDef) (*Action, error) {
	base := def.ID
	if base == "" {
		base = def.Label
	}
	id := "action" + strings.ReplaceAll(base, " ", "")

	if _, exists := r.actions[id]; exists {
		return nil, NewError(ErrDuplicateAction,
			"duplicate action id "+id+"; each action needs a unique label (after spaces are removed) or id").
			WithTable(r.table)
	}

	showSuccess := true
	if def.ShowSuccess != nil {
		showSuccess = *def.ShowSuccess
	}
	touch := true
	if def.Touch != nil {
		touch = *def.Touch
	}
	if def.Color == "" {
		def.Color = "primary"
	}
	if def.Type == "" {
		def.Type = "record"
	}

	a := &Action{
		ID:           id,
		Label:        def.Label,
		HelpText:     def.HelpText,
		Ordinal:      len(r.actions)*100 + 100,
		Color:        def.Color,
		Icon:         def.Icon,
		Close:        def.Close,
		ShowSuccess:  showSuccess,
		Touch:        touch,
		Verify:       def.Verify,
		Type:         def.Type,
		NewLine:      def.NewLine,
		Inputs:       def.Inputs,
		rolesExecute: def.RolesExecute,
		rolesExclude: def.RolesNotExecute,
		disabled:     def.Disabled,
		resource:     r,
	}

	if def.Method == nil {
		a.NoOp = true
	} else {
		validator := def.Validator
		if validator == nil && len(def.Inputs) > 0 {
			validator = inputValidator(def.Inputs)
		}
		if err := r.MethodRegister(MethodConfig{ID: id, Handler: def.Method, Validator: validator}); err != nil {
			return nil, err
		}
	}

	if len(def.RolesExecute) > 0 {
		r.rolesWriteAllAdd(def.RolesExecute...)
	}

	return a, nil
}

// inputValidator builds the argument validator implied by declared inputs:
// required checks plus the logical-type format constraints.
func inputValidator(inputs []ActionInput) ValidatorFunc {
	return func(ctx context.Context, call *Call) []string {
		var msgs []string
		for _, in := range inputs {
			friendly := in.FriendlyName
			if friendly == "" {
				friendly = in.Name
			}
			value := call.Args[in.Name]
			if in.Required && isEmptyValue(value) {
				msgs = append(msgs, "Field "+friendly+" is required.")
				continue
			}
			if msg := validateTypedValue(in.Type, friendly, value); msg != "" {
				msgs = append(msgs, msg)
			}
		}
		return msgs
	}
}

// HaveAccess reports whether the principal may execute this action: denied
// when the principal holds any excluded role, otherwise granted by the
// declared execute roles, falling back to the resource's write roles when
// none are declared.
func (a *Action) HaveAccess(principal *Principal) bool {
	if principal.IsSystem() {
		return true
	}

	if len(a.rolesExclude) > 0 && principal.HasAnyRole(a.rolesExclude...) {
		return false
	}

	if len(a.rolesExecute) > 0 {
		return principal.HasAnyRole(a.rolesExecute...)
	}

	if len(a.resource.RolesWrite()) > 0 {
		return principal.HasAnyRole(a.resource.RolesWrite()...)
	}

	return true
}

// DisabledCheck returns the reason the action is disabled for a record, or
// empty when it is enabled.
func (a *Action) DisabledCheck(ctx context.Context, principal *Principal, record map[string]any) string {
	if a.disabled == nil {
		return ""
	}
	return a.disabled(ctx, principal, record)
}

// ActionDescriptor is the presentation view of an action returned by
// ActionsGet.
type ActionDescriptor struct {
	ID          string        `json:"id"`
	Label       string        `json:"label"`
	HelpText    string        `json:"helpText"`
	Ordinal     int           `json:"ordinal"`
	Color       string        `json:"color"`
	Icon        string        `json:"icon"`
	Close       bool          `json:"close"`
	ShowSuccess bool          `json:"showSuccess"`
	Touch       bool          `json:"touch"`
	Verify      string        `json:"verify,omitempty"`
	Type        string        `json:"type"`
	NoOp        bool          `json:"noOp"`
	NewLine     bool          `json:"newLine"`
	Inputs      []ActionInput `json:"inputs,omitempty"`
	Disabled    string        `json:"disabled,omitempty"`
}

// Descriptor returns the presentation view of this action.
func (a *Action) Descriptor() ActionDescriptor {
	return ActionDescriptor{
		ID:          a.ID,
		Label:       a.Label,
		HelpText:    a.HelpText,
		Ordinal:     a.Ordinal,
		Color:       a.Color,
		Icon:        a.Icon,
		Close:       a.Close,
		ShowSuccess: a.ShowSuccess,
		Touch:       a.Touch,
		Verify:      a.Verify,
		Type:        a.Type,
		NoOp:        a.NoOp,
		NewLine:     a.NewLine,
		Inputs:      a.Inputs,
	}
}
