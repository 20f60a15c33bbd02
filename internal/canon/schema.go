package canon

import (
	_ "embed"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/divyang-garg/astra-guardrails/internal/pointer"
)

//go:embed astra.schema.v1.json
var bundledSchemaJSON []byte

// ValidationError is a single schema validation failure, translated from a
// gojsonschema result into the pointer-addressed shape Astra diagnostics use.
type ValidationError struct {
	Pointer   string `json:"pointer"`
	Message   string `json:"message"`
	Validator string `json:"validator"`
	Expected  any    `json:"expected,omitempty"`
}

// Schema wraps a compiled JSON Schema document.
type Schema struct {
	compiled *gojsonschema.Schema
}

// LoadBundledSchema compiles the schema embedded at build time
// (schema/astra.schema.v1.json, mirrored into this package directory so
// go:embed can reach it).
func LoadBundledSchema() (*Schema, error) {
	return LoadSchemaBytes(bundledSchemaJSON)
}

// LoadSchemaBytes compiles an arbitrary schema document, used when
// config.SchemaPath overrides the bundled copy.
func LoadSchemaBytes(raw []byte) (*Schema, error) {
	loader := gojsonschema.NewBytesLoader(raw)
	compiled, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, err
	}
	return &Schema{compiled: compiled}, nil
}

// Validate checks ast (a generic JSON value, typically map[string]any)
// against the schema and returns pointer-addressed validation errors sorted
// by pointer, matching the original's sort-by-absolute-path behaviour.
func (s *Schema) Validate(ast pointer.Json) ([]ValidationError, error) {
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(ast))
	if err != nil {
		return nil, err
	}
	out := make([]ValidationError, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		out = append(out, ValidationError{
			Pointer:   fieldToPointer(e.Field()),
			Message:   e.Description(),
			Validator: e.Type(),
			Expected:  e.Details()["expected"],
		})
	}
	sortValidationErrors(out)
	return out, nil
}

func fieldToPointer(field string) string {
	if field == "" || field == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY || field == "(root)" {
		return ""
	}
	segs := strings.Split(field, ".")
	strPtr := make([]string, len(segs))
	copy(strPtr, segs)
	return pointer.JoinStrings(strPtr)
}

func sortValidationErrors(errs []ValidationError) {
	for i := 1; i < len(errs); i++ {
		j := i
		for j > 0 && errs[j-1].Pointer > errs[j].Pointer {
			errs[j-1], errs[j] = errs[j], errs[j-1]
			j--
		}
	}
}
