package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rzpsarthak13/tablesync/internal/core"
)

// ReactionPolicy controls how a schema treats item fields it does not know.
type ReactionPolicy int

const (
	// ReactionError rejects the item with an item error.
	ReactionError ReactionPolicy = 1

	// ReactionIgnore drops the unknown fields.
	ReactionIgnore ReactionPolicy = 2

	// ReactionInclude writes the unknown fields as they are.
	ReactionInclude ReactionPolicy = 3
)

func (p ReactionPolicy) String() string {
	switch p {
	case ReactionError:
		return "Error"
	case ReactionIgnore:
		return "Ignore"
	case ReactionInclude:
		return "Include"
	default:
		return fmt.Sprintf("ReactionPolicy(%d)", int(p))
	}
}

// ParseReactionPolicy parses "error", "ignore" or "include", ignoring case.
func ParseReactionPolicy(s string) (ReactionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error":
		return ReactionError, nil
	case "ignore":
		return ReactionIgnore, nil
	case "include":
		return ReactionInclude, nil
	default:
		return 0, fmt.Errorf("unknown reaction policy %q (expected error, ignore or include)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p ReactionPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *ReactionPolicy) UnmarshalText(data []byte) error {
	parsed, err := ParseReactionPolicy(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// SchemaConfig holds per-table validation settings.
type SchemaConfig struct {
	OnFieldsNotInSchema ReactionPolicy `json:"on_fields_not_in_schema" yaml:"on_fields_not_in_schema"`
	AllowDuplicateNames bool           `json:"allow_duplicate_names" yaml:"allow_duplicate_names"`
}

// DefaultSchemaConfig rejects unknown fields and disallows duplicate names.
func DefaultSchemaConfig() SchemaConfig {
	return SchemaConfig{OnFieldsNotInSchema: ReactionError}
}

// TableSchema is the ordered field list of one table plus its validation policy.
// Fields can only be added, never removed.
type TableSchema struct {
	TableName    string
	SchemaID     uuid.UUID
	DatabaseName string
	Config       SchemaConfig

	fields []Field
}

// NewTableSchema creates an empty schema with a fresh id.
func NewTableSchema(tableName string) *TableSchema {
	return &TableSchema{
		TableName: tableName,
		SchemaID:  uuid.New(),
		Config:    DefaultSchemaConfig(),
	}
}

// Fields returns a copy of the field list.
func (s *TableSchema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field returns the first field called name.
func (s *TableSchema) Field(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.HasName(name) {
			return f, true
		}
	}
	return Field{}, false
}

func (s *TableSchema) findExact(name string, fieldType FieldType) (Field, bool) {
	for _, f := range s.fields {
		if f.HasName(name) && f.Type == fieldType {
			return f, true
		}
	}
	return Field{}, false
}

// EnsureField returns the field with this name and type, adding it if needed.
func (s *TableSchema) EnsureField(name string, fieldType FieldType) (Field, error) {
	return s.AddField(NewField(name, fieldType))
}

// AddField ensures a field by (name, type). An existing match is returned
// unchanged. A same-named field of another type is a conflict unless the
// schema allows duplicate names.
func (s *TableSchema) AddField(field Field) (Field, error) {
	if existing, ok := s.findExact(field.Name, field.Type); ok {
		return existing, nil
	}
	if !s.Config.AllowDuplicateNames {
		if existing, ok := s.Field(field.Name); ok {
			return Field{}, fmt.Errorf("%w: field %s in table %s requested with type %s but it already exists with type %s",
				core.ErrSchemaConflict, field.Name, s.TableName, field.Type, existing.Type)
		}
	}
	s.fields = append(s.fields, field)
	return field, nil
}

// PrimaryKeys returns the primary-key fields in schema order.
func (s *TableSchema) PrimaryKeys() []Field {
	var keys []Field
	for _, f := range s.fields {
		if f.IsPrimaryKey {
			keys = append(keys, f)
		}
	}
	return keys
}

// PrimaryKeyNames returns the names of the primary-key fields.
func (s *TableSchema) PrimaryKeyNames() []string {
	keys := s.PrimaryKeys()
	names := make([]string, len(keys))
	for i, f := range keys {
		names[i] = f.Name
	}
	return names
}

// IdentityFields returns the server-generated fields.
func (s *TableSchema) IdentityFields() []Field {
	var out []Field
	for _, f := range s.fields {
		if f.IsIdentity {
			out = append(out, f)
		}
	}
	return out
}

// ItemHasPrimaryKeys reports whether every primary key is present on the item.
// A schema without primary keys is a configuration error.
func (s *TableSchema) ItemHasPrimaryKeys(item *core.Item) (bool, error) {
	keys := s.PrimaryKeys()
	if len(keys) == 0 {
		return false, fmt.Errorf("%w: table schema %s has no primary keys", core.ErrConfiguration, s.TableName)
	}
	for _, k := range keys {
		if !item.Has(k.Name) {
			return false, nil
		}
	}
	return true, nil
}

// FieldsNotInSchema returns the item's field names that the schema does not define.
func (s *TableSchema) FieldsNotInSchema(item *core.Item) []string {
	var unknown []string
	for _, key := range item.Keys() {
		if _, ok := s.Field(key); !ok {
			unknown = append(unknown, key)
		}
	}
	return unknown
}

// ItemHasFieldsNotInSchema reports whether the item carries any unknown field.
func (s *TableSchema) ItemHasFieldsNotInSchema(item *core.Item) bool {
	return len(s.FieldsNotInSchema(item)) > 0
}

// FieldsFromItem returns the schema fields named by the item, in item order.
func (s *TableSchema) FieldsFromItem(item *core.Item) []Field {
	var out []Field
	for _, key := range item.Keys() {
		if f, ok := s.Field(key); ok {
			out = append(out, f)
		}
	}
	return out
}

// ItemHasIdentityFields reports whether the item supplies a value for any identity field.
func (s *TableSchema) ItemHasIdentityFields(item *core.Item) bool {
	return len(s.IdentityFieldNames(item)) > 0
}

// IdentityFieldNames returns the identity fields present on the item.
func (s *TableSchema) IdentityFieldNames(item *core.Item) []string {
	var names []string
	for _, f := range s.FieldsFromItem(item) {
		if f.IsIdentity {
			names = append(names, f.Name)
		}
	}
	return names
}

// PrimaryKeyValues projects the item onto the schema's primary keys.
func (s *TableSchema) PrimaryKeyValues(item *core.Item) core.Fields {
	var out core.Fields
	for _, k := range s.PrimaryKeys() {
		if v, ok := item.Get(k.Name); ok {
			out.Set(k.Name, v)
		}
	}
	return out
}

// SplitByPrimaryKeys separates items carrying every primary key from the rest.
func (s *TableSchema) SplitByPrimaryKeys(items []*core.Item) (withKeys, withoutKeys []*core.Item, err error) {
	for _, item := range items {
		ok, err := s.ItemHasPrimaryKeys(item)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			withKeys = append(withKeys, item)
		} else {
			withoutKeys = append(withoutKeys, item)
		}
	}
	return withKeys, withoutKeys, nil
}

// MatchingSchemaFields returns the item's writable fields: fields defined by the
// schema that are not identity fields. Unknown fields are handled by the
// schema's reaction policy. Under ReactionError the item is rejected and the
// returned ItemError is non-nil.
func (s *TableSchema) MatchingSchemaFields(item *core.Item) (core.Fields, *core.ItemError) {
	var matching core.Fields
	combined := item.CombinedView()
	combined.Range(func(k string, v interface{}) bool {
		if f, ok := s.Field(k); ok && !f.IsIdentity {
			matching.Set(k, v)
		}
		return true
	})

	unknown := s.FieldsNotInSchema(item)
	if len(unknown) == 0 {
		return matching, nil
	}

	switch s.Config.OnFieldsNotInSchema {
	case ReactionIgnore:
		return matching, nil
	case ReactionInclude:
		for _, k := range unknown {
			v, _ := combined.Get(k)
			matching.Set(k, v)
		}
		return matching, nil
	default:
		itemErr := core.NewItemErrorWithKeys(core.SeverityError,
			fmt.Sprintf("Item contains fields that are not in schema: %s", strings.Join(unknown, ",")),
			s.referenceKeys(item))
		return core.Fields{}, &itemErr
	}
}

// InsertFields prepares the fields to write for an insert. Identity fields on
// the item follow the reaction policy: Error rejects the item, Ignore drops
// them and Include writes them explicitly.
func (s *TableSchema) InsertFields(item *core.Item) (core.Fields, *core.ItemError) {
	identity := s.IdentityFieldNames(item)
	if len(identity) > 0 && s.Config.OnFieldsNotInSchema == ReactionError {
		itemErr := core.NewItemError(core.SeverityError,
			fmt.Sprintf("Item contains Identity fields: %s. Identity fields cannot be inserted", strings.Join(identity, ", ")),
			item)
		return core.Fields{}, &itemErr
	}

	fields, itemErr := s.MatchingSchemaFields(item)
	if itemErr != nil {
		return fields, itemErr
	}

	if s.Config.OnFieldsNotInSchema == ReactionInclude {
		for _, name := range identity {
			v, _ := item.Get(name)
			fields.Set(name, v)
		}
	}
	return fields, nil
}

// referenceKeys picks the keys an item error is reported under: the primary
// key values when the item has them, the whole item otherwise.
func (s *TableSchema) referenceKeys(item *core.Item) core.Fields {
	if len(s.PrimaryKeys()) > 0 {
		if ok, _ := s.ItemHasPrimaryKeys(item); ok {
			return s.PrimaryKeyValues(item)
		}
	}
	return item.CombinedView()
}

// ValidateItem checks the item for missing primary keys. Use it on items that
// should already exist; new rows may lack server-generated keys.
func (s *TableSchema) ValidateItem(item *core.Item) *core.OperationResponse {
	resp := core.NewOperationResponse()
	keys := s.PrimaryKeys()
	if len(keys) == 0 {
		resp.AddGeneral(core.SeverityError, "Schema %s doesn't have primary keys defined", s.TableName)
		return resp
	}
	for _, k := range keys {
		if !item.Has(k.Name) {
			resp.AddItemError(core.SeverityError, fmt.Sprintf("Item is missing primary key %s", k.Name), item)
		}
	}
	return resp
}

// LoadFromItems adds a field for every (name, runtime type) pair found in items.
func (s *TableSchema) LoadFromItems(items []*core.Item) error {
	if len(items) == 0 {
		return fmt.Errorf("no items to load schema %s from", s.TableName)
	}
	for _, item := range items {
		combined := item.CombinedView()
		var err error
		combined.Range(func(k string, v interface{}) bool {
			_, err = s.EnsureField(k, TypeCodeOf(v).FieldType())
			return err == nil
		})
		if err != nil {
			return fmt.Errorf("failed to load schema %s from items: %w", s.TableName, err)
		}
	}
	return nil
}

// Validate checks that the schema is complete enough to persist.
func (s *TableSchema) Validate() error {
	if s.SchemaID == uuid.Nil {
		return fmt.Errorf("%w: schema id is not set", core.ErrConfiguration)
	}
	if s.TableName == "" {
		return fmt.Errorf("%w: table name is not set", core.ErrConfiguration)
	}
	return nil
}

const snapshotVersion = 1

// tableSchemaSnapshot is the persisted form of a TableSchema.
type tableSchemaSnapshot struct {
	Version      int          `json:"version"`
	TableName    string       `json:"table_name"`
	SchemaID     uuid.UUID    `json:"schema_id"`
	DatabaseName string       `json:"database_name"`
	Config       SchemaConfig `json:"config"`
	Fields       []Field      `json:"fields"`
}

// MarshalJSON writes a versioned snapshot of the schema including its fields.
func (s *TableSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(tableSchemaSnapshot{
		Version:      snapshotVersion,
		TableName:    s.TableName,
		SchemaID:     s.SchemaID,
		DatabaseName: s.DatabaseName,
		Config:       s.Config,
		Fields:       s.fields,
	})
}

// UnmarshalJSON restores a schema from a snapshot written by MarshalJSON.
func (s *TableSchema) UnmarshalJSON(data []byte) error {
	var snap tableSchemaSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode table schema: %w", err)
	}
	if snap.Version > snapshotVersion {
		return fmt.Errorf("unsupported table schema version %d", snap.Version)
	}
	if snap.Config.OnFieldsNotInSchema == 0 {
		snap.Config.OnFieldsNotInSchema = ReactionError
	}
	*s = TableSchema{
		TableName:    snap.TableName,
		SchemaID:     snap.SchemaID,
		DatabaseName: snap.DatabaseName,
		Config:       snap.Config,
		fields:       snap.Fields,
	}
	return nil
}
