package catalogs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	schemaOnce sync.Once
	schemaErr  error
	schemas    map[string]*jsonschema.Schema
)

func compileSchemas() {
	schemas = map[string]*jsonschema.Schema{}
	for _, name := range []string{"structures", "discoveries", "factions", "events", "epochs"} {
		raw, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
		if err != nil {
			schemaErr = fmt.Errorf("embedded schema %s: %w", name, err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(name+".schema.json", bytes.NewReader(raw)); err != nil {
			schemaErr = fmt.Errorf("schema %s: %w", name, err)
			return
		}
		s, err := c.Compile(name + ".schema.json")
		if err != nil {
			schemaErr = fmt.Errorf("schema %s: %w", name, err)
			return
		}
		schemas[name] = s
	}
}

func validateSchema(name string, raw []byte) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	s, ok := schemas[name]
	if !ok {
		return fmt.Errorf("no schema for %q", name)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
