// Package schema holds the embedded JSON Schema for bnb.yml and checks
// configuration values against it.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed bnb.embedded.schema.json
var embedded []byte

const resourceName = "bnb.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// Violation is one schema rule a document breaks. Path is a JSON pointer
// into the document, e.g. /storage/backend.
type Violation struct {
	Path    string
	Message string
}

// Error lists every violation found in one document.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	lines := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		lines = append(lines, fmt.Sprintf("- %s: %s", v.Path, v.Message))
	}
	return "schema validation failed:\n" + strings.Join(lines, "\n")
}

// Validator checks values against the embedded schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator returns a validator for the embedded schema. The schema is
// compiled once per process.
func NewValidator() (*Validator, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(resourceName, bytes.NewReader(embedded)); err != nil {
			compileErr = fmt.Errorf("failed to load embedded schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(resourceName)
	})
	if compileErr != nil {
		return nil, compileErr
	}
	return &Validator{schema: compiled}, nil
}

// Validate checks value, which must marshal to JSON, and returns an *Error
// when the schema rejects it.
func (v *Validator) Validate(value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for validation: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode value for validation: %w", err)
	}

	err = v.schema.Validate(doc)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}
	return &Error{Violations: flatten(verr, nil)}
}

// flatten keeps the leaf causes, which name the offending field.
func flatten(err *jsonschema.ValidationError, out []Violation) []Violation {
	if len(err.Causes) == 0 {
		path := err.InstanceLocation
		if path == "" {
			path = "/"
		}
		return append(out, Violation{Path: path, Message: err.Message})
	}
	for _, cause := range err.Causes {
		out = flatten(cause, out)
	}
	return out
}
