package models

import "sort"

// PredefinedNode is a catalog entry describing a node type the UI can place
// on a flow. RequiredParams maps a parameter name to its primitive type.
type PredefinedNode struct {
	ID             string            `json:"id"             validate:"required"`
	Name           string            `json:"name"           validate:"required"`
	Description    string            `json:"description"`
	Category       CategoryType      `json:"type"           validate:"required"`
	RequiredParams map[string]string `json:"requiredParams"`
	Outputs        map[string]string `json:"outputs"`
}

var schemaTypes = map[string]bool{
	"string": true, "number": true, "integer": true, "boolean": true, "object": true, "array": true,
}

// ParamsSchema renders RequiredParams as a JSON schema object. Unknown type names
// only require presence.
func (p *PredefinedNode) ParamsSchema() map[string]any {
	properties := make(map[string]any, len(p.RequiredParams))
	required := make([]string, 0, len(p.RequiredParams))

	for name, typ := range p.RequiredParams {
		if schemaTypes[typ] {
			properties[name] = map[string]any{"type": typ}
		} else {
			properties[name] = map[string]any{}
		}

		required = append(required, name)
	}

	sort.Strings(required)

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
