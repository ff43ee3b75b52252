package lint

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	// SchemaDialect is the `$schema` marker written into new schema files.
	SchemaDialect = "http://json-schema.org/draft-07/schema"

	TypeString = "string"
	TypeArray  = "array"
)

// Schema is the subset of a JSON schema document that describes constraint
// parameters. A nil Properties means the document declares no parameters at
// all, which is different from declaring an empty set.
type Schema struct {
	Dialect    string                                  `json:"$schema,omitempty"`
	Type       string                                  `json:"type,omitempty"`
	Properties *orderedmap.OrderedMap[string, *Schema] `json:"properties,omitempty"`
	Items      *Schema                                 `json:"items,omitempty"`
}

// NewProperties returns an empty, insertion ordered property set.
func NewProperties() *orderedmap.OrderedMap[string, *Schema] {
	return orderedmap.New[string, *Schema]()
}

// HasProperties reports whether the schema declares a property set.
func (s *Schema) HasProperties() bool {
	return s != nil && s.Properties != nil
}

// Defines reports whether name is a declared property.
func (s *Schema) Defines(name string) bool {
	if !s.HasProperties() {
		return false
	}
	_, ok := s.Properties.Get(name)
	return ok
}

// PropertyNames lists the declared properties in document order.
func (s *Schema) PropertyNames() []string {
	if !s.HasProperties() {
		return nil
	}
	names := make([]string, 0, s.Properties.Len())
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// ParseSchema decodes a schema document.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// MarshalIndent renders the schema the way schema files are written to disk.
func (s *Schema) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
