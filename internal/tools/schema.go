package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// compileSchema turns a tool's JSON schema map into an openapi3 schema.
func compileSchema(params map[string]interface{}) (*openapi3.Schema, error) {
	if len(params) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode parameter schema: %w", err)
	}

	schema := &openapi3.Schema{}
	if err := schema.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("decode parameter schema: %w", err)
	}
	if err := schema.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid parameter schema: %w", err)
	}
	return schema, nil
}

// validateParams checks call parameters against a compiled schema. Values
// are normalized through JSON first so Go ints validate like JSON numbers.
func validateParams(schema *openapi3.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("decode parameters: %w", err)
	}

	if err := schema.VisitJSON(value, openapi3.MultiErrors()); err != nil {
		return simplifySchemaError(err)
	}
	return nil
}

// simplifySchemaError keeps the first reason of a schema error so the model
// sees a short observation instead of the full schema dump.
func simplifySchemaError(err error) error {
	if multi, ok := err.(openapi3.MultiError); ok && len(multi) > 0 {
		err = multi[0]
	}
	if schemaErr, ok := err.(*openapi3.SchemaError); ok {
		if path := schemaErr.JSONPointer(); len(path) > 0 {
			return fmt.Errorf("%s: %s", path[0], schemaErr.Reason)
		}
		return fmt.Errorf("%s", schemaErr.Reason)
	}
	return err
}
