package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/xitongsys/parquet-go/parquet"

	"filetap/internal/config"
	"filetap/internal/utils"
)

// anyTypes is the full JSON type union used when a field may hold anything.
var anyTypes = []string{"null", "boolean", "integer", "number", "string", "array", "object"}

// DeclaredFields builds a schema from a user-declared field-to-type mapping,
// bypassing inference. Fields are ordered by name so the schema is stable
// across runs. Every field is nullable.
func DeclaredFields(declared map[string]string) *Schema {
	names := make([]string, 0, len(declared))
	for name := range declared {
		names = append(names, name)
	}
	sort.Strings(names)

	s := New()
	for _, name := range names {
		s.Add(Field{Name: name, Types: []string{"null", declared[name]}})
	}
	return s
}

// DelimitedFields builds a schema from the header rows of every matched file:
// the union of column names, each typed nullable string. Delimited values are
// inherently strings, so no type inference happens.
func DelimitedFields(headersPerFile [][]string) *Schema {
	s := New()
	for _, headers := range headersPerFile {
		for _, name := range headers {
			s.Add(Field{Name: name, Types: []string{"null", "string"}})
		}
	}
	return s
}

// JSONLFields builds a schema from sampled field names. The field type comes
// entirely from the coercion strategy, not from the sampled values.
func JSONLFields(fields []string, strategy string) (*Schema, error) {
	s := New()
	for _, name := range fields {
		switch strategy {
		case config.CoercionAny:
			s.Add(Field{Name: name, Types: anyTypes})
		case config.CoercionString:
			s.Add(Field{Name: name, Types: []string{"null", "string"}})
		case config.CoercionEnvelope:
			s.Add(Field{Name: name, Types: []string{"null", "object"}})
		default:
			return nil, utils.NewConfigurationError(
				fmt.Sprintf("the coercion strategy '%s' is not valid", strategy))
		}
	}
	return s, nil
}

// avroField is the subset of an Avro record schema needed for translation.
type avroField struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

// AvroFields translates an Avro writer schema into a JSON schema. Under
// "convert" every field must carry a primitive type; composite types (record,
// enum, array, map, union, fixed) fail with UNSUPPORTED_AVRO_TYPE. Under
// "envelope" the schema exposes one generic object field.
func AvroFields(schemaJSON string, strategy string) (*Schema, error) {
	s := New()

	switch strategy {
	case config.CoercionEnvelope:
		s.Add(Field{Name: "record", Types: []string{"null", "object"}})
		return s, nil
	case config.CoercionConvert:
	default:
		return nil, utils.NewConfigurationError(
			fmt.Sprintf("the coercion strategy '%s' is not valid", strategy))
	}

	var parsed struct {
		Fields []avroField `json:"fields"`
	}
	if err := json.Unmarshal([]byte(schemaJSON), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse Avro schema: %w", err)
	}

	for _, f := range parsed.Fields {
		converted, err := convertAvroType(f.Type)
		if err != nil {
			return nil, err
		}
		s.Add(Field{Name: f.Name, Types: []string{converted}})
	}

	return s, nil
}

// convertAvroType maps one Avro primitive type name to its JSON Schema
// counterpart. Anything that is not a bare primitive name is unsupported.
func convertAvroType(raw json.RawMessage) (string, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		// Unions, records, and other composites encode as arrays or objects.
		return "", utils.NewUnsupportedAvroTypeError(string(raw))
	}

	switch name {
	case "null", "boolean", "string":
		return name, nil
	case "int", "long":
		return "integer", nil
	case "float", "double":
		return "number", nil
	case "bytes":
		return "string", nil
	default:
		return "", utils.NewUnsupportedAvroTypeError(name)
	}
}

// ParquetFields translates a flat Parquet schema (root element excluded) into
// a JSON schema. Group (nested) fields fail with UNSUPPORTED_PARQUET_TYPE
// under "convert".
func ParquetFields(elements []*parquet.SchemaElement, strategy string) (*Schema, error) {
	s := New()

	switch strategy {
	case config.CoercionEnvelope:
		s.Add(Field{Name: "record", Types: []string{"null", "object"}})
		return s, nil
	case config.CoercionConvert:
	default:
		return nil, utils.NewConfigurationError(
			fmt.Sprintf("the coercion strategy '%s' is not valid", strategy))
	}

	for _, el := range elements {
		if el.NumChildren != nil && *el.NumChildren > 0 {
			return nil, utils.NewUnsupportedParquetTypeError("group " + el.Name)
		}
		if el.Type == nil {
			return nil, utils.NewUnsupportedParquetTypeError(el.Name)
		}

		jsonType, format := convertParquetType(*el.Type, el.ConvertedType)
		s.Add(Field{Name: el.Name, Types: []string{jsonType}, Format: format})
	}

	return s, nil
}

// convertParquetType maps a Parquet physical type, refined by its converted
// type, to a JSON Schema type and optional format.
func convertParquetType(physical parquet.Type, converted *parquet.ConvertedType) (string, string) {
	if converted != nil {
		switch *converted {
		case parquet.ConvertedType_UTF8, parquet.ConvertedType_DECIMAL:
			return "string", ""
		case parquet.ConvertedType_DATE:
			return "string", "date"
		case parquet.ConvertedType_TIME_MILLIS, parquet.ConvertedType_TIME_MICROS:
			return "string", "time"
		case parquet.ConvertedType_TIMESTAMP_MILLIS, parquet.ConvertedType_TIMESTAMP_MICROS:
			return "string", "date-time"
		}
	}

	switch physical {
	case parquet.Type_BOOLEAN:
		return "boolean", ""
	case parquet.Type_INT32, parquet.Type_INT64:
		return "integer", ""
	case parquet.Type_FLOAT, parquet.Type_DOUBLE:
		return "number", ""
	default:
		// BYTE_ARRAY, FIXED_LEN_BYTE_ARRAY, INT96.
		return "string", ""
	}
}
