package types

import (
	"errors"
	"fmt"
)

// Domain errors for record field access
var (
	ErrFieldMissing = errors.New("field missing")
	ErrFieldType    = errors.New("field has wrong type")
	ErrIncomparable = errors.New("values are not comparable")
)

// FieldErrorKind distinguishes a missing field from a field of the wrong type
type FieldErrorKind int

const (
	FieldMissing FieldErrorKind = iota
	FieldWrongType
)

// FieldError reports a failed lookup of a named record field
type FieldError struct {
	Key  string
	Kind FieldErrorKind
	Want string // Expected type, set for FieldWrongType
	Got  any
}

func (e *FieldError) Error() string {
	if e.Kind == FieldWrongType {
		return fmt.Sprintf("field %q: expected %s, got %T", e.Key, e.Want, e.Got)
	}
	return fmt.Sprintf("field %q: missing", e.Key)
}

// Unwrap lets callers match with errors.Is(err, ErrFieldMissing) or ErrFieldType
func (e *FieldError) Unwrap() error {
	if e.Kind == FieldWrongType {
		return ErrFieldType
	}
	return ErrFieldMissing
}
