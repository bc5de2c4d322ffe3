package schema

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed program.schema.json
var programSchema []byte

var (
	compileOnce sync.Once
	compiled    *gojsonschema.Schema
	compileErr  error
)

// ProgramSchema returns the raw JSON Schema describing program documents.
func ProgramSchema() []byte {
	return programSchema
}

func load() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(programSchema))
	})
	return compiled, compileErr
}

// ValidateBytes checks a JSON program document against the program schema.
func ValidateBytes(doc []byte) error {
	return validate(gojsonschema.NewBytesLoader(doc))
}

// Validate checks an already decoded document (maps, slices and scalars, as
// produced by a JSON or YAML decoder) against the program schema.
func Validate(doc any) error {
	return validate(gojsonschema.NewGoLoader(doc))
}

func validate(doc gojsonschema.JSONLoader) error {
	s, err := load()
	if err != nil {
		return fmt.Errorf("invalid program schema: %w", err)
	}

	result, err := s.Validate(doc)
	if err != nil {
		return fmt.Errorf("failed to validate program document: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]error, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		errs = append(errs, &ValidationError{
			Key:    re.Field(),
			Reason: re.Description(),
			Value:  re.Value(),
		})
	}
	return &AggregateError{Errors: errs}
}
