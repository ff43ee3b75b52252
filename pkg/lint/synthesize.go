package lint

// EmptySchema is the document a new schema file starts from.
func EmptySchema() *Schema {
	return &Schema{
		Dialect:    SchemaDialect,
		Properties: NewProperties(),
	}
}

// Synthesize builds a schema declaring every parameter text references.
// Indexed references (`input.parameters.tags[0]`) become string arrays,
// everything else a string. When a name is used both ways the first
// occurrence decides.
func Synthesize(text string) *Schema {
	schema := EmptySchema()
	for ref := range References(text) {
		if _, seen := schema.Properties.Get(ref.Name); seen {
			continue
		}
		schema.Properties.Set(ref.Name, propertyFor(ref))
	}
	return schema
}

func propertyFor(ref ParameterReference) *Schema {
	if ref.IsArray {
		return &Schema{
			Type:  TypeArray,
			Items: &Schema{Type: TypeString},
		}
	}
	return &Schema{Type: TypeString}
}
