package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/request.schema.json schemas/manifest.schema.json
var embeddedSchemas embed.FS

var (
	schemaOnce     sync.Once
	requestSchema  *jsonschema.Schema
	manifestSchema *jsonschema.Schema
	schemaLoadErr  error
)

func loadSchemas() {
	c := jsonschema.NewCompiler()
	for _, name := range []string{"request.schema.json", "manifest.schema.json"} {
		b, err := embeddedSchemas.ReadFile("schemas/" + name)
		if err != nil {
			schemaLoadErr = fmt.Errorf("protocol: read embedded schema %s: %w", name, err)
			return
		}
		if err := c.AddResource(name, bytes.NewReader(b)); err != nil {
			schemaLoadErr = fmt.Errorf("protocol: add schema resource %s: %w", name, err)
			return
		}
	}
	var err error
	requestSchema, err = c.Compile("request.schema.json")
	if err != nil {
		schemaLoadErr = fmt.Errorf("protocol: compile request schema: %w", err)
		return
	}
	manifestSchema, err = c.Compile("manifest.schema.json")
	if err != nil {
		schemaLoadErr = fmt.Errorf("protocol: compile manifest schema: %w", err)
		return
	}
}

// ValidateRequestJSON checks raw request bytes against the embedded JSON
// Schema before the caller unmarshals them into a Request. This guards the
// trust boundary where a Request file may have been written by a driver
// process other than this binary.
func ValidateRequestJSON(raw []byte) error {
	schemaOnce.Do(loadSchemas)
	if schemaLoadErr != nil {
		return schemaLoadErr
	}
	return validateAgainst(requestSchema, raw)
}

// ValidateManifestJSON checks raw manifest bytes against the embedded JSON
// Schema, used by CLI tooling that reads back a manifest written by a
// possibly different version of this binary.
func ValidateManifestJSON(raw []byte) error {
	schemaOnce.Do(loadSchemas)
	if schemaLoadErr != nil {
		return schemaLoadErr
	}
	return validateAgainst(manifestSchema, raw)
}

func validateAgainst(schema *jsonschema.Schema, raw []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("protocol: decode json: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("protocol: schema validation: %w", err)
	}
	return nil
}
