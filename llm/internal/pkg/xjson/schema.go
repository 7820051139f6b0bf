package xjson

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/samber/lo"
)

// Transform decodes a raw JSON schema, applies transform to the schema and
// every nested sub-schema, and re-encodes the result.
func Transform(rawSchema json.RawMessage, transform func(*jsonschema.Schema)) (json.RawMessage, error) {
	var schema jsonschema.Schema
	if err := json.Unmarshal(rawSchema, &schema); err != nil {
		return nil, err
	}

	transformSchemaRecursive(&schema, transform)

	return json.Marshal(&schema)
}

func transformSchemaRecursive(schema *jsonschema.Schema, transform func(*jsonschema.Schema)) {
	if schema == nil {
		return
	}

	transform(schema)

	lo.ForEach([]*jsonschema.Schema{
		schema.Items,
		schema.AdditionalItems,
		schema.Contains,
		schema.Not,
		schema.If,
		schema.Then,
		schema.Else,
		schema.PropertyNames,
		schema.UnevaluatedProperties,
		schema.UnevaluatedItems,
		schema.ContentSchema,
	}, func(subSchema *jsonschema.Schema, _ int) {
		transformSchemaRecursive(subSchema, transform)
	})

	schemaSlices := [][]*jsonschema.Schema{
		schema.PrefixItems,
		schema.ItemsArray,
		schema.AllOf,
		schema.AnyOf,
		schema.OneOf,
	}
	lo.ForEach(schemaSlices, func(schemas []*jsonschema.Schema, _ int) {
		lo.ForEach(schemas, func(subSchema *jsonschema.Schema, _ int) {
			transformSchemaRecursive(subSchema, transform)
		})
	})

	schemaMaps := []map[string]*jsonschema.Schema{
		schema.Defs,
		schema.Definitions,
		schema.DependentSchemas,
		schema.Properties,
		schema.PatternProperties,
		schema.DependencySchemas,
	}
	lo.ForEach(schemaMaps, func(schemaMap map[string]*jsonschema.Schema, _ int) {
		lo.ForEach(lo.Values(schemaMap), func(subSchema *jsonschema.Schema, _ int) {
			transformSchemaRecursive(subSchema, transform)
		})
	})
}

// StripSchemaMeta removes declaration-only keywords that some providers
// reject in tool input schemas.
func StripSchemaMeta(rawSchema json.RawMessage) (json.RawMessage, error) {
	return Transform(rawSchema, func(schema *jsonschema.Schema) {
		schema.Schema = ""
		schema.ID = ""
		schema.Anchor = ""
		schema.DynamicAnchor = ""
		schema.DynamicRef = ""
		schema.Comment = ""
		schema.Vocabulary = nil
	})
}
