package types

import "unicode/utf8"

// Record is a single chunk record: an open-ended mapping from field name to value.
// Field names are configuration data, so access goes through the typed accessors
// below rather than fixed struct fields.
type Record map[string]any

// Field returns the raw value stored under key
func (r Record) Field(key string) (any, error) {
	v, ok := r[key]
	if !ok {
		return nil, &FieldError{Key: key, Kind: FieldMissing}
	}
	return v, nil
}

// String returns the value stored under key as text
func (r Record) String(key string) (string, error) {
	v, err := r.Field(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", &FieldError{Key: key, Kind: FieldWrongType, Want: "string", Got: v}
	}
	return s, nil
}

// TextLength returns the number of characters (code points) in the text field key
func (r Record) TextLength(key string) (int, error) {
	s, err := r.String(key)
	if err != nil {
		return 0, err
	}
	return utf8.RuneCountInString(s), nil
}

// Has reports whether key is present
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	out := make(Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}
