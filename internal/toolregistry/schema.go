package toolregistry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	jsonschemavalidator "github.com/santhosh-tekuri/jsonschema/v5"
)

// GenerateSchema builds a JSON schema for args's type, in the shape tool
// providers expect: no top-level $schema/$id/title noise, definitions
// inlined rather than left under $defs.
func GenerateSchema[T any]() json.RawMessage {
	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	var zero T
	schema := reflector.Reflect(zero)
	schema.Version = ""
	schema.Title = ""

	raw, err := json.Marshal(schema)
	if err != nil {
		// Schema generation operates over plain Go struct tags; a failure
		// here means a tool was registered with an unmarshalable type,
		// which is a programming error worth surfacing loudly.
		panic(fmt.Sprintf("toolregistry: generate schema for %s: %v", reflect.TypeOf(zero), err))
	}
	return raw
}

// compiledSchema wraps a validating jsonschema.Schema compiled from a raw
// JSON schema document.
type compiledSchema struct {
	schema *jsonschemavalidator.Schema
}

// compileSchema compiles raw into a validator. raw must be a valid JSON
// schema document; compilation errors are returned rather than panicking
// since they can originate from externally-authored tool specs.
func compileSchema(name string, raw json.RawMessage) (*compiledSchema, error) {
	compiler := jsonschemavalidator.NewCompiler()
	const resourceURL = "reagent://tool-schema"
	if err := compiler.AddResource(resourceURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("toolregistry: add schema resource for %q: %w", name, err)
	}
	sch, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("toolregistry: compile schema for %q: %w", name, err)
	}
	return &compiledSchema{schema: sch}, nil
}

// Validate checks args against the compiled schema.
func (c *compiledSchema) Validate(args json.RawMessage) error {
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return fmt.Errorf("toolregistry: arguments are not valid JSON: %w", err)
	}
	return c.schema.Validate(v)
}
