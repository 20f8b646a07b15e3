// CUE schema validation for model files
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed model.cue
var modelSchema string

// ValidateModel checks YAML model bytes against the embedded #Model schema.
// filename is only used in error positions.
func ValidateModel(filename string, data []byte) error {
	ctx := cuecontext.New()

	schemaVal := ctx.CompileString(modelSchema, cue.Filename("model.cue"))
	if err := schemaVal.Err(); err != nil {
		return fmt.Errorf("cannot compile model schema: %w", err)
	}
	def := schemaVal.LookupPath(cue.ParsePath("#Model"))

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("cannot parse YAML model: %w", err)
	}
	modelVal := ctx.BuildFile(file)
	if err := modelVal.Err(); err != nil {
		return fmt.Errorf("cannot build YAML model: %w", err)
	}

	final := def.Unify(modelVal)
	if err := final.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// ValidateModelFile reads path and validates it with ValidateModel.
func ValidateModelFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read YAML model: %w", err)
	}
	return ValidateModel(path, data)
}
