package schema

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// valueKind is the Go representation a column value is normalized to.
type valueKind int

const (
	kindPassthrough valueKind = iota
	kindInt16
	kindInt32
	kindInt64
	kindFloat32
	kindFloat64
	kindDecimal
	kindString
	kindBytes
	kindTime
	kindBool
	kindJSON
	kindGUID
)

var sqlKinds = map[SqlDbType]valueKind{
	SqlBigInt: kindInt64, SqlInt: kindInt32, SqlSmallInt: kindInt16, SqlTinyInt: kindInt16,
	SqlBit:  kindBool,
	SqlReal: kindFloat32, SqlFloat: kindFloat64,
	SqlDecimal: kindDecimal, SqlMoney: kindDecimal, SqlSmallMoney: kindDecimal,
	SqlChar: kindString, SqlNChar: kindString, SqlVarChar: kindString, SqlNVarChar: kindString,
	SqlText: kindString, SqlNText: kindString, SqlXml: kindString,
	SqlBinary: kindBytes, SqlVarBinary: kindBytes, SqlImage: kindBytes, SqlTimestamp: kindBytes,
	SqlDate: kindTime, SqlDateTime: kindTime, SqlDateTime2: kindTime, SqlSmallDateTime: kindTime,
	SqlDateTimeOffset: kindTime,
	SqlUniqueIdentifier: kindGUID,
	SqlJson:             kindJSON,
}

var edmKinds = map[EdmType]valueKind{
	EdmString: kindString, EdmBinary: kindBytes, EdmBoolean: kindBool, EdmDateTime: kindTime,
	EdmDouble: kindFloat64, EdmGuid: kindGUID, EdmInt32: kindInt32, EdmInt64: kindInt64,
}

var typeCodeKinds = map[TypeCode]valueKind{
	TypeCodeBoolean: kindBool, TypeCodeChar: kindString, TypeCodeString: kindString,
	TypeCodeSByte: kindInt16, TypeCodeByte: kindInt16, TypeCodeInt16: kindInt16, TypeCodeUInt16: kindInt32,
	TypeCodeInt32: kindInt32, TypeCodeUInt32: kindInt64, TypeCodeInt64: kindInt64, TypeCodeUInt64: kindInt64,
	TypeCodeSingle: kindFloat32, TypeCodeDouble: kindFloat64, TypeCodeDecimal: kindDecimal,
	TypeCodeDateTime: kindTime,
}

func kindOf(t FieldType) valueKind {
	switch t.Vocabulary {
	case VocabularySqlDbType:
		return sqlKinds[SqlDbType(t.Value)]
	case VocabularyEdmType:
		return edmKinds[EdmType(t.Value)]
	case VocabularyTypeCode:
		return typeCodeKinds[TypeCode(t.Value)]
	default:
		return kindPassthrough
	}
}

// SQLTypeFromName maps a catalog column type name (MySQL, Postgres, SQL Server
// or SQLite spelling) to a SqlDbType. Unknown names map to SqlVariant.
func SQLTypeFromName(dbType string) SqlDbType {
	base := strings.ToUpper(strings.TrimSpace(dbType))
	if idx := strings.Index(base, "("); idx > 0 {
		if base == "TINYINT(1)" {
			return SqlBit
		}
		base = strings.TrimSpace(base[:idx])
	}
	base = strings.TrimSuffix(base, " UNSIGNED")

	switch base {
	case "BIGINT", "INT8", "BIGSERIAL", "INTEGER":
		// SQLite INTEGER is 64-bit.
		return SqlBigInt
	case "INT", "INT4", "MEDIUMINT", "SERIAL":
		return SqlInt
	case "SMALLINT", "INT2", "SMALLSERIAL":
		return SqlSmallInt
	case "TINYINT":
		return SqlTinyInt
	case "BIT", "BOOLEAN", "BOOL":
		return SqlBit
	case "REAL", "FLOAT4":
		return SqlReal
	case "FLOAT", "DOUBLE", "DOUBLE PRECISION", "FLOAT8":
		return SqlFloat
	case "DECIMAL", "NUMERIC":
		return SqlDecimal
	case "MONEY":
		return SqlMoney
	case "SMALLMONEY":
		return SqlSmallMoney
	case "CHAR", "CHARACTER", "BPCHAR":
		return SqlChar
	case "NCHAR":
		return SqlNChar
	case "VARCHAR", "CHARACTER VARYING":
		return SqlVarChar
	case "NVARCHAR":
		return SqlNVarChar
	case "TEXT", "LONGTEXT", "MEDIUMTEXT", "TINYTEXT", "CITEXT":
		return SqlText
	case "NTEXT":
		return SqlNText
	case "XML":
		return SqlXml
	case "BINARY":
		return SqlBinary
	case "VARBINARY", "BYTEA", "BLOB", "LONGBLOB", "MEDIUMBLOB", "TINYBLOB":
		return SqlVarBinary
	case "IMAGE":
		return SqlImage
	case "ROWVERSION":
		return SqlTimestamp
	case "DATE":
		return SqlDate
	case "TIME", "TIME WITHOUT TIME ZONE":
		return SqlTime
	case "DATETIME", "TIMESTAMP", "TIMESTAMP WITHOUT TIME ZONE":
		return SqlDateTime
	case "DATETIME2":
		return SqlDateTime2
	case "SMALLDATETIME":
		return SqlSmallDateTime
	case "DATETIMEOFFSET", "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE":
		return SqlDateTimeOffset
	case "UNIQUEIDENTIFIER", "UUID":
		return SqlUniqueIdentifier
	case "JSON", "JSONB":
		return SqlJson
	default:
		return SqlVariant
	}
}

// TypeCodeOf infers the runtime type code of a Go value. nil is TypeCodeEmpty.
func TypeCodeOf(value interface{}) TypeCode {
	switch value.(type) {
	case nil:
		return TypeCodeEmpty
	case bool:
		return TypeCodeBoolean
	case string:
		return TypeCodeString
	case rune:
		return TypeCodeInt32
	case int8:
		return TypeCodeSByte
	case uint8:
		return TypeCodeByte
	case int16:
		return TypeCodeInt16
	case uint16:
		return TypeCodeUInt16
	case uint32:
		return TypeCodeUInt32
	case int, int64:
		return TypeCodeInt64
	case uint, uint64:
		return TypeCodeUInt64
	case float32:
		return TypeCodeSingle
	case float64:
		return TypeCodeDouble
	case json.Number, *big.Rat:
		return TypeCodeDecimal
	case time.Time:
		return TypeCodeDateTime
	default:
		return TypeCodeObject
	}
}

// TypeMapper coerces values between driver representations and the Go types
// implied by a field's type tag.
type TypeMapper struct{}

// NewTypeMapper creates a new type mapper.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{}
}

// ConvertToDBValue prepares a value for use as a statement argument.
// Structured values bound for JSON or text columns are encoded as JSON strings.
func (tm *TypeMapper) ConvertToDBValue(value interface{}, fieldType FieldType) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	switch kindOf(fieldType) {
	case kindJSON:
		return tm.toJSON(value)
	case kindTime:
		return tm.toTime(value)
	case kindBool:
		return tm.toBool(value)
	case kindGUID:
		return tm.toGUID(value)
	}
	switch value.(type) {
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("cannot marshal %T to JSON: %w", value, err)
		}
		return string(b), nil
	}
	return value, nil
}

// ConvertFromDBValue normalizes a scanned driver value according to the field type.
// NULL becomes nil. Unknown types pass through, with []byte turned into string.
func (tm *TypeMapper) ConvertFromDBValue(value interface{}, fieldType FieldType) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	if valuer, ok := value.(driver.Valuer); ok {
		val, err := valuer.Value()
		if err != nil {
			return nil, err
		}
		if val == nil {
			return nil, nil
		}
		value = val
	}

	switch kindOf(fieldType) {
	case kindInt16:
		return tm.toInt16(value)
	case kindInt32:
		return tm.toInt32(value)
	case kindInt64:
		return tm.toInt64(value)
	case kindFloat32:
		return tm.toFloat32(value)
	case kindFloat64:
		return tm.toFloat64(value)
	case kindDecimal, kindString:
		return tm.toString(value)
	case kindBytes:
		return tm.toBytes(value)
	case kindTime:
		return tm.toTime(value)
	case kindBool:
		return tm.toBool(value)
	case kindJSON:
		return tm.fromJSON(value)
	case kindGUID:
		return tm.toGUID(value)
	default:
		if b, ok := value.([]byte); ok {
			return string(b), nil
		}
		return value, nil
	}
}

func (tm *TypeMapper) toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case []byte:
		return tm.toInt64(string(v))
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string to int64: %w", err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

func (tm *TypeMapper) toInt32(value interface{}) (int32, error) {
	i, err := tm.toInt64(value)
	if err != nil {
		return 0, err
	}
	return int32(i), nil
}

func (tm *TypeMapper) toInt16(value interface{}) (int16, error) {
	i, err := tm.toInt64(value)
	if err != nil {
		return 0, err
	}
	return int16(i), nil
}

func (tm *TypeMapper) toFloat32(value interface{}) (float32, error) {
	f, err := tm.toFloat64(value)
	if err != nil {
		return 0, err
	}
	return float32(f), nil
}

func (tm *TypeMapper) toFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case []byte:
		return tm.toFloat64(string(v))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string to float64: %w", err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}

func (tm *TypeMapper) toString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32, float64:
		return fmt.Sprintf("%g", v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("cannot convert %T to string: %w", value, err)
		}
		return string(b), nil
	}
}

func (tm *TypeMapper) toBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to []byte", value)
	}
}

var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"15:04:05",
}

func (tm *TypeMapper) toTime(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case []byte:
		return tm.toTime(string(v))
	case string:
		for _, format := range timeFormats {
			if t, err := time.Parse(format, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse time string: %s", v)
	case int64:
		return time.Unix(v, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time.Time", value)
	}
}

func (tm *TypeMapper) toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int, int8, int16, int32, int64:
		return reflect.ValueOf(v).Int() != 0, nil
	case uint, uint8, uint16, uint32, uint64:
		return reflect.ValueOf(v).Uint() != 0, nil
	case []byte:
		if len(v) == 1 && (v[0] == 0 || v[0] == 1) {
			// MySQL BIT(1)
			return v[0] == 1, nil
		}
		return tm.toBool(string(v))
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				return i != 0, nil
			}
			return false, fmt.Errorf("cannot convert string to bool: %w", err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("cannot convert %T to bool", value)
	}
}

func (tm *TypeMapper) toGUID(value interface{}) (string, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v.String(), nil
	case [16]byte:
		return uuid.UUID(v).String(), nil
	case []byte:
		if len(v) == 16 {
			id, err := uuid.FromBytes(v)
			if err != nil {
				return "", fmt.Errorf("cannot convert bytes to uuid: %w", err)
			}
			return id.String(), nil
		}
		return tm.toGUID(string(v))
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return "", fmt.Errorf("cannot parse uuid %q: %w", v, err)
		}
		return id.String(), nil
	default:
		return "", fmt.Errorf("cannot convert %T to uuid", value)
	}
}

// toJSON encodes a value for a JSON column. Drivers expect a JSON string.
func (tm *TypeMapper) toJSON(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		if !json.Valid([]byte(v)) {
			return nil, fmt.Errorf("cannot parse JSON string")
		}
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, fmt.Errorf("cannot parse JSON bytes")
		}
		return string(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("cannot marshal %T to JSON: %w", value, err)
		}
		return string(b), nil
	}
}

// fromJSON decodes a JSON column into maps, slices and scalars.
func (tm *TypeMapper) fromJSON(value interface{}) (interface{}, error) {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return value, nil
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("cannot parse JSON column: %w", err)
	}
	return out, nil
}
