package catalog

// ToolSpec is the function-calling schema of one operation, in the shape
// chat completion APIs accept under "tools".
type ToolSpec struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

type FunctionSpec struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}

type JSONSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

type SchemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// ToolSpecs exports the catalog for an external router.
func (r *Registry) ToolSpecs() []ToolSpec {
	out := make([]ToolSpec, 0, len(r.ops))
	for _, op := range r.ops {
		schema := JSONSchema{Type: "object", Properties: map[string]SchemaProperty{}}
		for _, p := range op.Params {
			schema.Properties[p.Name] = SchemaProperty{Type: p.Type, Description: p.Description, Default: p.Default}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		out = append(out, ToolSpec{
			Type:     "function",
			Function: FunctionSpec{Name: op.Name, Description: op.Description, Parameters: schema},
		})
	}
	return out
}
