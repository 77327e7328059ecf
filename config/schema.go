package config

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	schemaURL   = "forage://colony-config.schema.json"
	colorRegexp = "^#[0-9a-fA-F]{6}$"
)

var colorPattern = regexp.MustCompile(colorRegexp)

// blobSchema validates persisted colony blobs. Unknown keys are allowed so
// older or newer editors can share a store.
var blobSchema = mustCompileSchema()

// SchemaJSON returns the JSON Schema of a colony blob, derived from Ranges.
func SchemaJSON() ([]byte, error) {
	props := make(map[string]any, len(Ranges)+2)
	for _, r := range Ranges {
		// No multipleOf: fractional steps would reject valid floats.
		props[r.Key] = map[string]any{
			"type":    "number",
			"minimum": r.Min,
			"maximum": r.Max,
			"default": r.Value,
		}
	}
	color := map[string]any{"type": "string", "pattern": colorRegexp}
	props[KeyRobotColor] = color
	props[KeyResourceColor] = color

	doc := map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"$id":        schemaURL,
		"title":      "colony configuration",
		"type":       "object",
		"properties": props,
	}
	return json.MarshalIndent(doc, "", "  ")
}

func mustCompileSchema() *jsonschema.Schema {
	raw, err := SchemaJSON()
	if err != nil {
		panic(fmt.Sprintf("config: building schema: %v", err))
	}
	s, err := jsonschema.CompileString(schemaURL, string(raw))
	if err != nil {
		panic(fmt.Sprintf("config: compiling schema: %v", err))
	}
	return s
}

// ValidateBlob checks a colony blob against the schema.
func ValidateBlob(blob []byte) error {
	var doc any
	if err := json.Unmarshal(blob, &doc); err != nil {
		return fmt.Errorf("decoding colony config: %w", err)
	}
	if err := blobSchema.Validate(doc); err != nil {
		return fmt.Errorf("validating colony config: %w", err)
	}
	return nil
}
