package tablekit

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ColumnType is the logical type of a declared column. Every logical type
// maps to exactly one physical storage type; declaring an unknown type is a
// declaration error, not a silent default.
type ColumnType string

const (
	// TypeString is a short text value (varchar).
	TypeString ColumnType = "string"

	// TypeSecret is a sensitive value (passwords, tokens). It is stored
	// bcrypt-hashed and never round-trips through reads unless the caller
	// explicitly requests secret disclosure.
	TypeSecret ColumnType = "secret"

	// TypeEmail is a string validated as an email address.
	TypeEmail ColumnType = "email"

	// TypePhone is a string validated as an E.164 phone number.
	TypePhone ColumnType = "phone"

	// TypeInteger is a 64-bit integer.
	TypeInteger ColumnType = "integer"

	// TypeDatetime is a timestamp stored as epoch milliseconds.
	TypeDatetime ColumnType = "datetime"

	// TypeText is unbounded text.
	TypeText ColumnType = "text"

	// TypeBoolean is a boolean.
	TypeBoolean ColumnType = "boolean"

	// TypeSelect is a string constrained to a declared option list.
	TypeSelect ColumnType = "select"
)

// PhysicalType returns the storage type for a logical column type. Unknown
// types fail declaration.
func (t ColumnType) PhysicalType() (string, error) {
	switch t {
	case TypeString, TypeSecret, TypeEmail, TypePhone, TypeSelect:
		return "varchar(255)", nil
	case TypeInteger, TypeDatetime:
		return "bigint", nil
	case TypeText:
		return "text", nil
	case TypeBoolean:
		return "boolean", nil
	}
	return "", NewError(ErrInvalidColumnType, fmt.Sprintf("no physical mapping for %q", string(t)))
}

// validatorTag returns the go-playground/validator tag enforced for values of
// this type, or empty when the type carries no format constraint.
func (t ColumnType) validatorTag() string {
	switch t {
	case TypeEmail:
		return "email"
	case TypePhone:
		return "e164"
	}
	return ""
}

// typeValidate is the shared validator instance used by column validation.
var typeValidate = validator.New()

// validateTypedValue checks a non-empty value against the format constraint
// of its logical type. Returns a human-readable message, or empty when valid.
func validateTypedValue(t ColumnType, friendly string, value any) string {
	tag := t.validatorTag()
	if tag == "" {
		return ""
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return ""
	}
	if err := typeValidate.Var(s, tag); err != nil {
		return fmt.Sprintf("Field %s is not a valid %s.", friendly, string(t))
	}
	return ""
}
