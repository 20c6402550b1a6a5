package schema

import (
	"log"
	"sort"
)

// TypeTally counts observed value types per field over a sample of rows. It
// backs the optional sampling inference mode for formats without an
// authoritative header or embedded schema, and is discarded once the schema
// is finalized.
type TypeTally struct {
	counts map[string]map[string]int
	order  []string
}

// NewTypeTally creates an empty tally.
func NewTypeTally() *TypeTally {
	return &TypeTally{counts: make(map[string]map[string]int)}
}

// Observe records the value types of one sampled row.
func (t *TypeTally) Observe(row map[string]interface{}) {
	// Iterate deterministically so field order is stable across runs.
	names := make([]string, 0, len(row))
	for name := range row {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, seen := t.counts[name]; !seen {
			t.counts[name] = make(map[string]int)
			t.order = append(t.order, name)
		}
		t.counts[name][TypeOf(row[name])]++
	}
}

// Resolve picks a dominant type per field: a single observed type wins
// outright; integer and number together widen to number; any other ambiguity
// falls back to string with a logged warning. Nulls do not count against a
// field's type. Every field is nullable.
func (t *TypeTally) Resolve() *Schema {
	s := New()
	for _, name := range t.order {
		s.Add(Field{Name: name, Types: []string{"null", t.dominantType(name)}})
	}
	return s
}

func (t *TypeTally) dominantType(name string) string {
	observed := make([]string, 0, len(t.counts[name]))
	for typeName := range t.counts[name] {
		if typeName == "null" {
			continue
		}
		observed = append(observed, typeName)
	}
	sort.Strings(observed)

	switch {
	case len(observed) == 0:
		return "string"
	case len(observed) == 1:
		return observed[0]
	case len(observed) == 2 && observed[0] == "integer" && observed[1] == "number":
		return "number"
	default:
		log.Printf("Field %s has ambiguous types %v, defaulting to string.", name, observed)
		return "string"
	}
}

// TypeOf tags a decoded JSON value with its JSON Schema type name. Whole
// float64 values count as integers, since JSON decoding does not distinguish
// the two.
func TypeOf(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int, int32, int64:
		return "integer"
	case float32:
		if v == float32(int64(v)) {
			return "integer"
		}
		return "number"
	case float64:
		if v == float64(int64(v)) {
			return "integer"
		}
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return "string"
	}
}
