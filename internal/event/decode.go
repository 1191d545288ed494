package event

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed event.schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func turnEventSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("event.schema.json", strings.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("event.schema.json")
	})
	return schema, schemaErr
}

// Decode validates a raw JSON event against the turn event schema and decodes it
func Decode(raw []byte) (TurnEvent, error) {
	sch, err := turnEventSchema()
	if err != nil {
		return TurnEvent{}, fmt.Errorf("failed to compile turn event schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return TurnEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := sch.Validate(doc); err != nil {
		return TurnEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	var ev TurnEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return TurnEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return ev, nil
}

// ReadFile loads an event fixture from a .json, .yaml or .yml file and returns it as JSON
func ReadFile(path string) (json.RawMessage, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return b, nil
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert yaml event to json: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported event file extension '%s'", filepath.Ext(path))
	}
}
