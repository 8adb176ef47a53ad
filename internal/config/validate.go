package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed scenario.cue
var embeddedSchema []byte

// ValidateWithCue checks raw YAML scenario bytes against a CUE schema.
// schemaPath overrides the embedded schema when non-empty.
func ValidateWithCue(yamlBytes []byte, schemaPath string) error {
	schemaBytes := embeddedSchema
	if schemaPath != "" {
		b, err := os.ReadFile(schemaPath)
		if err != nil {
			return fmt.Errorf("config: cannot read CUE schema: %w", err)
		}
		schemaBytes = b
	}

	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaBytes)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config: bad CUE schema: %w", err)
	}

	if err := cueyaml.Validate(yamlBytes, schema); err != nil {
		return fmt.Errorf("config: schema validation failed: %w", err)
	}
	return nil
}
