package schema

// Provenance field names attached to emitted records when enabled.
const (
	ProvenanceFileName     = "_sdc_file_name"
	ProvenanceLineNumber   = "_sdc_line_number"
	ProvenanceLastModified = "_sdc_last_modified"
)

// Field describes one schema property: a JSON Schema type union and an
// optional format hint.
type Field struct {
	Name   string
	Types  []string
	Format string
}

// Schema is an ordered set of fields. It is built once per invocation, before
// the first record, and shared by every record emitted afterwards.
type Schema struct {
	fields []Field
	byName map[string]int
}

// New creates an empty schema.
func New() *Schema {
	return &Schema{byName: make(map[string]int)}
}

// Add appends a field. A field already present keeps its first definition;
// later duplicates are ignored, so field order follows first appearance.
func (s *Schema) Add(field Field) {
	if _, exists := s.byName[field.Name]; exists {
		return
	}
	s.byName[field.Name] = len(s.fields)
	s.fields = append(s.fields, field)
}

// Merge adds every field of other, keeping first definitions on conflicts.
func (s *Schema) Merge(other *Schema) {
	for _, f := range other.fields {
		s.Add(f)
	}
}

// Has reports whether a field is present.
func (s *Schema) Has(name string) bool {
	_, exists := s.byName[name]
	return exists
}

// Fields returns the fields in order.
func (s *Schema) Fields() []Field {
	return s.fields
}

// FieldNames returns the field names in order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// AddProvenanceFields appends the provenance columns: file name, 1-based line
// number, and the file's last-modified timestamp.
func (s *Schema) AddProvenanceFields() {
	s.Add(Field{Name: ProvenanceFileName, Types: []string{"string"}})
	s.Add(Field{Name: ProvenanceLineNumber, Types: []string{"integer"}})
	s.Add(Field{Name: ProvenanceLastModified, Types: []string{"string"}, Format: "date-time"})
}

// Properties renders the schema as JSON Schema properties for serialization.
func (s *Schema) Properties() map[string]interface{} {
	properties := make(map[string]interface{}, len(s.fields))
	for _, f := range s.fields {
		prop := map[string]interface{}{"type": f.Types}
		if f.Format != "" {
			prop["format"] = f.Format
		}
		properties[f.Name] = prop
	}
	return properties
}
