package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed rulebook_schema.json
var rulebookSchemaJSON string

var (
	compileOnce    sync.Once
	rulebookSchema *jsonschema.Schema
	compileErr     error
)

// Schema returns the compiled JSON Schema for rulebook documents.
func Schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7
		if err := compiler.AddResource("rulebook_schema.json", strings.NewReader(rulebookSchemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("rulebook_schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile rulebook schema: %w", err)
			return
		}
		rulebookSchema = schema
	})
	return rulebookSchema, compileErr
}

// ValidateDocument validates raw JSON bytes against the rulebook schema.
//
// Postcondition: Returns nil, or an error wrapping ErrInvalidRules.
func ValidateDocument(data []byte) error {
	schema, err := Schema()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: rules are not valid JSON: %v", ErrInvalidRules, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after the rules document", ErrInvalidRules)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: rules do not match schema: %v", ErrInvalidRules, err)
	}
	return nil
}
