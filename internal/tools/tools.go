// Package tools defines the tool abstraction offered to the model: a common
// interface, schema generation from typed parameter structs, registration
// warnings, and orchestrated invocation through the fallback executor.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool is one capability the model can invoke.
type Tool interface {
	// Name is the stable identifier the model calls the tool by.
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// Schema is the JSON schema of the arguments object.
	Schema() map[string]any

	// ReturnSchema describes the result payload. May be nil.
	ReturnSchema() map[string]any

	// Execute runs the tool with already-decoded arguments.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// permissiveSchema accepts any arguments object. Used when reflection cannot
// produce a usable schema, matching lenient registration: a weak schema is a
// warning, not a failure.
func permissiveSchema() map[string]any {
	return map[string]any{"type": "object"}
}

// SchemaFor reflects a JSON schema from a typed parameter struct. On any
// reflection or marshaling problem it downgrades to the permissive schema.
func SchemaFor(params any) map[string]any {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(params)
	if schema == nil {
		return permissiveSchema()
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return permissiveSchema()
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return permissiveSchema()
	}
	delete(out, "$schema")
	delete(out, "$id")
	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}
	return out
}

// Validate inspects a tool and returns human-readable warnings. Nothing here
// blocks registration; an undocumented tool still works, it just confuses the
// model.
func Validate(t Tool) []string {
	var warnings []string
	if t.Name() == "" {
		warnings = append(warnings, "tool has no name")
	}
	if t.Description() == "" {
		warnings = append(warnings, fmt.Sprintf("tool %q has no description", t.Name()))
	}

	schema := t.Schema()
	if len(schema) == 0 {
		warnings = append(warnings, fmt.Sprintf("tool %q has no input schema", t.Name()))
		return warnings
	}
	if err := compileSchema(schema); err != nil {
		warnings = append(warnings, fmt.Sprintf("tool %q has an invalid input schema: %v", t.Name(), err))
	}
	return warnings
}

func compileSchema(schema map[string]any) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	compiler := validator.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(data)); err != nil {
		return err
	}
	_, err = compiler.Compile("schema.json")
	return err
}
