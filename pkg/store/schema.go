package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "kanban-tasks.schema.json"

// taskFileSchema describes the persisted collection. Optional fields must be
// present as null or hold a value; older files that omit them still load.
const taskFileSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "title", "col", "priority"],
    "properties": {
      "id": {"type": "integer"},
      "title": {"type": "string", "minLength": 1},
      "description": {"type": ["string", "null"]},
      "col": {"enum": ["backlog", "next-up", "progress", "done"]},
      "priority": {"enum": ["critical", "high", "med", "low"]},
      "tags": {"type": ["array", "null"], "items": {"type": "string"}},
      "created": {"type": "integer"},
      "order": {"type": "integer"},
      "startTime": {"type": ["string", "null"]},
      "endTime": {"type": ["string", "null"]},
      "estimatedHours": {"type": ["number", "null"]},
      "actualHours": {"type": ["number", "null"]},
      "dueDate": {"type": ["string", "null"]}
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, strings.NewReader(taskFileSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// validateDocument checks raw file contents against the task file schema.
func validateDocument(data []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("parse task file: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("parse task file: trailing data after task list")
	}

	if err := sch.Validate(doc); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			return fmt.Errorf("schema: %s", firstCause(ve))
		}
		return err
	}
	return nil
}

func firstCause(err *jsonschema.ValidationError) string {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	loc := strings.TrimPrefix(err.InstanceLocation, "/")
	if loc == "" {
		return err.Message
	}
	return fmt.Sprintf("%s: %s", loc, err.Message)
}
