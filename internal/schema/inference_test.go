package schema

import (
	"testing"

	"github.com/xitongsys/parquet-go/parquet"

	"filetap/internal/config"
	"filetap/internal/utils"
)

func TestDeclaredFieldsOrderedByName(t *testing.T) {
	s := DeclaredFields(map[string]string{
		"name":   "string",
		"amount": "number",
		"id":     "integer",
	})

	names := s.FieldNames()
	want := []string{"amount", "id", "name"}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("Expected %s at position %d, got %s", name, i, names[i])
		}
	}
	if types := s.Fields()[0].Types; types[0] != "null" || types[1] != "number" {
		t.Errorf("Expected nullable number for amount, got %v", types)
	}
}

func TestDelimitedFieldsUnionAcrossFiles(t *testing.T) {
	s := DelimitedFields([][]string{
		{"id", "name"},
		{"id", "created_at"},
	})

	names := s.FieldNames()
	want := []string{"id", "name", "created_at"}
	if len(names) != len(want) {
		t.Fatalf("Expected %d fields, got %v", len(want), names)
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("Expected %s at position %d, got %s", name, i, names[i])
		}
	}

	for _, f := range s.Fields() {
		if len(f.Types) != 2 || f.Types[0] != "null" || f.Types[1] != "string" {
			t.Errorf("Expected nullable string for %s, got %v", f.Name, f.Types)
		}
	}
}

func TestJSONLFieldsTypeFollowsStrategy(t *testing.T) {
	s, err := JSONLFields([]string{"id"}, config.CoercionAny)
	if err != nil {
		t.Fatalf("JSONLFields failed: %v", err)
	}
	if len(s.Fields()[0].Types) != 7 {
		t.Errorf("Expected the full type union under 'any', got %v", s.Fields()[0].Types)
	}

	s, err = JSONLFields([]string{"id"}, config.CoercionString)
	if err != nil {
		t.Fatalf("JSONLFields failed: %v", err)
	}
	if s.Fields()[0].Types[1] != "string" {
		t.Errorf("Expected nullable string under 'string', got %v", s.Fields()[0].Types)
	}
}

func TestAvroFieldsConvert(t *testing.T) {
	schemaJSON := `{
		"type": "record",
		"name": "order",
		"fields": [
			{"name": "id", "type": "long"},
			{"name": "price", "type": "double"},
			{"name": "active", "type": "boolean"},
			{"name": "payload", "type": "bytes"}
		]
	}`

	s, err := AvroFields(schemaJSON, config.CoercionConvert)
	if err != nil {
		t.Fatalf("AvroFields failed: %v", err)
	}

	want := map[string]string{
		"id":      "integer",
		"price":   "number",
		"active":  "boolean",
		"payload": "string",
	}
	for _, f := range s.Fields() {
		if f.Types[0] != want[f.Name] {
			t.Errorf("Expected %s for %s, got %v", want[f.Name], f.Name, f.Types)
		}
	}
}

func TestAvroFieldsCompositeTypeUnsupported(t *testing.T) {
	schemaJSON := `{
		"type": "record",
		"name": "order",
		"fields": [
			{"name": "note", "type": ["null", "string"]}
		]
	}`

	_, err := AvroFields(schemaJSON, config.CoercionConvert)
	if err == nil {
		t.Fatal("Expected an error for a union-typed field")
	}
	if !utils.IsErrorType(err, utils.ErrCodeUnsupportedAvroType) {
		t.Errorf("Expected UNSUPPORTED_AVRO_TYPE, got %v", err)
	}
}

func TestAvroFieldsEnvelope(t *testing.T) {
	s, err := AvroFields("", config.CoercionEnvelope)
	if err != nil {
		t.Fatalf("AvroFields failed: %v", err)
	}
	if len(s.Fields()) != 1 || s.Fields()[0].Name != "record" {
		t.Errorf("Expected a single 'record' field, got %v", s.FieldNames())
	}
}

func TestParquetFieldsConvert(t *testing.T) {
	elements := []*parquet.SchemaElement{
		{Name: "id", Type: parquet.TypePtr(parquet.Type_INT64)},
		{Name: "price", Type: parquet.TypePtr(parquet.Type_DOUBLE)},
		{Name: "name", Type: parquet.TypePtr(parquet.Type_BYTE_ARRAY),
			ConvertedType: parquet.ConvertedTypePtr(parquet.ConvertedType_UTF8)},
		{Name: "created", Type: parquet.TypePtr(parquet.Type_INT64),
			ConvertedType: parquet.ConvertedTypePtr(parquet.ConvertedType_TIMESTAMP_MILLIS)},
	}

	s, err := ParquetFields(elements, config.CoercionConvert)
	if err != nil {
		t.Fatalf("ParquetFields failed: %v", err)
	}

	fields := s.Fields()
	if fields[0].Types[0] != "integer" {
		t.Errorf("Expected integer for INT64, got %v", fields[0].Types)
	}
	if fields[1].Types[0] != "number" {
		t.Errorf("Expected number for DOUBLE, got %v", fields[1].Types)
	}
	if fields[2].Types[0] != "string" {
		t.Errorf("Expected string for UTF8, got %v", fields[2].Types)
	}
	if fields[3].Types[0] != "string" || fields[3].Format != "date-time" {
		t.Errorf("Expected date-time string for TIMESTAMP_MILLIS, got %v/%s", fields[3].Types, fields[3].Format)
	}
}

func TestParquetFieldsNestedGroupUnsupported(t *testing.T) {
	children := int32(2)
	elements := []*parquet.SchemaElement{
		{Name: "address", NumChildren: &children},
	}

	_, err := ParquetFields(elements, config.CoercionConvert)
	if err == nil {
		t.Fatal("Expected an error for a nested group field")
	}
	if !utils.IsErrorType(err, utils.ErrCodeUnsupportedParquetType) {
		t.Errorf("Expected UNSUPPORTED_PARQUET_TYPE, got %v", err)
	}
}

func TestAddProvenanceFields(t *testing.T) {
	s := DelimitedFields([][]string{{"id"}})
	s.AddProvenanceFields()

	if !s.Has(ProvenanceFileName) || !s.Has(ProvenanceLineNumber) || !s.Has(ProvenanceLastModified) {
		t.Errorf("Expected all provenance fields present, got %v", s.FieldNames())
	}

	props := s.Properties()
	lastModified := props[ProvenanceLastModified].(map[string]interface{})
	if lastModified["format"] != "date-time" {
		t.Errorf("Expected date-time format on %s, got %v", ProvenanceLastModified, lastModified)
	}
}
