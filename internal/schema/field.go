package schema

import "strings"

// Field describes one column of a table schema.
type Field struct {
	Name string `json:"name"`

	// InternalName disambiguates same-named fields of different types.
	InternalName string `json:"internal_name,omitempty"`

	Type          FieldType   `json:"field_type"`
	Length        int         `json:"length,omitempty"`
	IsPrimaryKey  bool        `json:"is_primary_key"`
	IsIdentity    bool        `json:"is_identity"`
	TargetDefault interface{} `json:"target_default,omitempty"`
}

// NewField creates a field with the given name and type.
func NewField(name string, fieldType FieldType) Field {
	return Field{Name: name, Type: fieldType}
}

// HasName reports whether the field is called name, ignoring case.
func (f Field) HasName(name string) bool {
	return strings.EqualFold(f.Name, name)
}
