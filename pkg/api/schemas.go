package api

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Request body schemas. Validation happens on the decoded JSON value
// before it is bound to a typed request, so limit violations surface
// as INVALID_REQUEST instead of silent truncation.
const createTaskSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["title", "template_type", "input", "requested_by"],
  "properties": {
    "title": {"type": "string", "minLength": 1, "maxLength": 200},
    "template_type": {"type": "string", "minLength": 1, "maxLength": 100},
    "input": {"type": "object"},
    "requested_by": {"type": "string", "minLength": 1, "maxLength": 100}
  }
}`

const runTaskSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["task_id"],
  "properties": {
    "task_id": {"type": "string", "minLength": 1},
    "idempotency_key": {"type": ["string", "null"]},
    "run_mode": {"type": "string"}
  }
}`

const decisionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["acted_by"],
  "properties": {
    "acted_by": {"type": "string", "minLength": 1, "maxLength": 100},
    "comment": {"type": ["string", "null"]}
  }
}`

// requestSchemas holds the compiled validators for the mutating
// endpoints.
type requestSchemas struct {
	createTask *jsonschema.Schema
	runTask    *jsonschema.Schema
	decision   *jsonschema.Schema
}

func compileRequestSchemas() (*requestSchemas, error) {
	compile := func(name, source string) (*jsonschema.Schema, error) {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("inline://%s.json", name)
		if err := c.AddResource(url, strings.NewReader(source)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
		schema, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		return schema, nil
	}

	createTask, err := compile("create_task", createTaskSchema)
	if err != nil {
		return nil, err
	}
	runTask, err := compile("run_task", runTaskSchema)
	if err != nil {
		return nil, err
	}
	decision, err := compile("approval_decision", decisionSchema)
	if err != nil {
		return nil, err
	}

	return &requestSchemas{
		createTask: createTask,
		runTask:    runTask,
		decision:   decision,
	}, nil
}
