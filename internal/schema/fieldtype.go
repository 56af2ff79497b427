package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Vocabulary names the native type system a FieldType value is drawn from.
type Vocabulary int

const (
	VocabularyUnknown Vocabulary = iota
	VocabularySqlDbType
	VocabularyEdmType
	VocabularyTypeCode
)

var vocabularyNames = map[Vocabulary]string{
	VocabularySqlDbType: "SqlDbType",
	VocabularyEdmType:   "EdmType",
	VocabularyTypeCode:  "TypeCode",
}

func (v Vocabulary) String() string {
	if name, ok := vocabularyNames[v]; ok {
		return name
	}
	return "Unknown"
}

// SqlDbType is the native relational type vocabulary.
type SqlDbType int

const (
	SqlBigInt           SqlDbType = 0
	SqlBinary           SqlDbType = 1
	SqlBit              SqlDbType = 2
	SqlChar             SqlDbType = 3
	SqlDateTime         SqlDbType = 4
	SqlDecimal          SqlDbType = 5
	SqlFloat            SqlDbType = 6
	SqlImage            SqlDbType = 7
	SqlInt              SqlDbType = 8
	SqlMoney            SqlDbType = 9
	SqlNChar            SqlDbType = 10
	SqlNText            SqlDbType = 11
	SqlNVarChar         SqlDbType = 12
	SqlReal             SqlDbType = 13
	SqlUniqueIdentifier SqlDbType = 14
	SqlSmallDateTime    SqlDbType = 15
	SqlSmallInt         SqlDbType = 16
	SqlSmallMoney       SqlDbType = 17
	SqlText             SqlDbType = 18
	SqlTimestamp        SqlDbType = 19
	SqlTinyInt          SqlDbType = 20
	SqlVarBinary        SqlDbType = 21
	SqlVarChar          SqlDbType = 22
	SqlVariant          SqlDbType = 23
	SqlXml              SqlDbType = 25
	SqlUdt              SqlDbType = 29
	SqlStructured       SqlDbType = 30
	SqlDate             SqlDbType = 31
	SqlTime             SqlDbType = 32
	SqlDateTime2        SqlDbType = 33
	SqlDateTimeOffset   SqlDbType = 34
	SqlJson             SqlDbType = 35
)

var sqlDbTypeNames = map[int]string{
	0: "BigInt", 1: "Binary", 2: "Bit", 3: "Char", 4: "DateTime", 5: "Decimal",
	6: "Float", 7: "Image", 8: "Int", 9: "Money", 10: "NChar", 11: "NText",
	12: "NVarChar", 13: "Real", 14: "UniqueIdentifier", 15: "SmallDateTime",
	16: "SmallInt", 17: "SmallMoney", 18: "Text", 19: "Timestamp", 20: "TinyInt",
	21: "VarBinary", 22: "VarChar", 23: "Variant", 25: "Xml", 29: "Udt",
	30: "Structured", 31: "Date", 32: "Time", 33: "DateTime2", 34: "DateTimeOffset",
	35: "Json",
}

// FieldType returns t as a unified type tag.
func (t SqlDbType) FieldType() FieldType {
	return FieldType{Vocabulary: VocabularySqlDbType, Value: int(t)}
}

// EdmType is the generic table-storage type vocabulary.
type EdmType int

const (
	EdmString   EdmType = 0
	EdmBinary   EdmType = 1
	EdmBoolean  EdmType = 2
	EdmDateTime EdmType = 3
	EdmDouble   EdmType = 4
	EdmGuid     EdmType = 5
	EdmInt32    EdmType = 6
	EdmInt64    EdmType = 7
)

var edmTypeNames = map[int]string{
	0: "String", 1: "Binary", 2: "Boolean", 3: "DateTime",
	4: "Double", 5: "Guid", 6: "Int32", 7: "Int64",
}

// FieldType returns t as a unified type tag.
func (t EdmType) FieldType() FieldType {
	return FieldType{Vocabulary: VocabularyEdmType, Value: int(t)}
}

// TypeCode is the runtime primitive type vocabulary.
type TypeCode int

const (
	TypeCodeEmpty    TypeCode = 0
	TypeCodeObject   TypeCode = 1
	TypeCodeDBNull   TypeCode = 2
	TypeCodeBoolean  TypeCode = 3
	TypeCodeChar     TypeCode = 4
	TypeCodeSByte    TypeCode = 5
	TypeCodeByte     TypeCode = 6
	TypeCodeInt16    TypeCode = 7
	TypeCodeUInt16   TypeCode = 8
	TypeCodeInt32    TypeCode = 9
	TypeCodeUInt32   TypeCode = 10
	TypeCodeInt64    TypeCode = 11
	TypeCodeUInt64   TypeCode = 12
	TypeCodeSingle   TypeCode = 13
	TypeCodeDouble   TypeCode = 14
	TypeCodeDecimal  TypeCode = 15
	TypeCodeDateTime TypeCode = 16
	TypeCodeString   TypeCode = 18
)

var typeCodeNames = map[int]string{
	0: "Empty", 1: "Object", 2: "DBNull", 3: "Boolean", 4: "Char", 5: "SByte",
	6: "Byte", 7: "Int16", 8: "UInt16", 9: "Int32", 10: "UInt32", 11: "Int64",
	12: "UInt64", 13: "Single", 14: "Double", 15: "Decimal", 16: "DateTime",
	18: "String",
}

// FieldType returns t as a unified type tag.
func (t TypeCode) FieldType() FieldType {
	return FieldType{Vocabulary: VocabularyTypeCode, Value: int(t)}
}

func namesFor(v Vocabulary) map[int]string {
	switch v {
	case VocabularySqlDbType:
		return sqlDbTypeNames
	case VocabularyEdmType:
		return edmTypeNames
	case VocabularyTypeCode:
		return typeCodeNames
	default:
		return nil
	}
}

// FieldType is a unified type tag: one value from one of three type vocabularies.
// It serializes as "<Vocabulary>.<Name>", for example "SqlDbType.VarChar".
type FieldType struct {
	Vocabulary Vocabulary
	Value      int
}

// IsZero reports whether the tag is unset.
func (t FieldType) IsZero() bool {
	return t.Vocabulary == VocabularyUnknown
}

// Name returns the member name within the vocabulary, or the numeric value if unnamed.
func (t FieldType) Name() string {
	if name, ok := namesFor(t.Vocabulary)[t.Value]; ok {
		return name
	}
	return fmt.Sprintf("%d", t.Value)
}

func (t FieldType) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Vocabulary.String() + "." + t.Name()
}

// ParseFieldType parses "<Vocabulary>.<Name>". The name may also be the numeric value.
func ParseFieldType(s string) (FieldType, error) {
	vocabName, memberName, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return FieldType{}, fmt.Errorf("invalid field type %q: expected <Vocabulary>.<Name>", s)
	}

	var vocab Vocabulary
	for v, name := range vocabularyNames {
		if strings.EqualFold(name, vocabName) {
			vocab = v
			break
		}
	}
	if vocab == VocabularyUnknown {
		return FieldType{}, fmt.Errorf("invalid field type %q: unknown vocabulary %q", s, vocabName)
	}

	for value, name := range namesFor(vocab) {
		if strings.EqualFold(name, memberName) {
			return FieldType{Vocabulary: vocab, Value: value}, nil
		}
	}

	var value int
	if _, err := fmt.Sscanf(memberName, "%d", &value); err == nil {
		return FieldType{Vocabulary: vocab, Value: value}, nil
	}
	return FieldType{}, fmt.Errorf("invalid field type %q: unknown %s member %q", s, vocab, memberName)
}

// MustParseFieldType is ParseFieldType that panics on error. Intended for literals.
func MustParseFieldType(s string) FieldType {
	t, err := ParseFieldType(s)
	if err != nil {
		panic(err)
	}
	return t
}

// MarshalText implements encoding.TextMarshaler.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *FieldType) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*t = FieldType{}
		return nil
	}
	parsed, err := ParseFieldType(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON writes the tag as a JSON string.
func (t FieldType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON reads the tag from a JSON string.
func (t *FieldType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("field type must be a string: %w", err)
	}
	return t.UnmarshalText([]byte(s))
}
