package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Response contracts, checked before a body is decoded into Go types.
// Only the fields the client reads are constrained.

const meSchemaJSON = `{
  "type": "object",
  "required": ["id", "todos"],
  "properties": {
    "id": {"type": "integer"},
    "todos": {"type": "array", "items": {"$ref": "#/$defs/todo"}}
  },
  "$defs": {
    "todo": {
      "type": "object",
      "required": ["id", "title"],
      "properties": {
        "id": {"type": "integer"},
        "title": {"type": "string"},
        "description": {"type": ["string", "null"]}
      }
    }
  }
}`

const authSchemaJSON = `{
  "type": "object",
  "required": ["jwt", "user"],
  "properties": {
    "jwt": {"type": "string", "minLength": 1},
    "user": {
      "type": "object",
      "required": ["id"],
      "properties": {"id": {"type": "integer"}}
    }
  }
}`

var (
	meSchema   = jsonschema.MustCompileString("me.json", meSchemaJSON)
	authSchema = jsonschema.MustCompileString("auth.json", authSchemaJSON)
)

// checkShape validates body against schema and reports the first failing
// location as ErrMalformedResponse.
func checkShape(schema *jsonschema.Schema, body []byte) error {
	doc, err := decodeJSON(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := schema.Validate(doc); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			return fmt.Errorf("%w: %s", ErrMalformedResponse, firstCause(ve))
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// decodeJSON decodes b into the generic form the validator expects,
// keeping numbers as json.Number so integers stay exact.
func decodeJSON(b []byte) (any, error) {
	var v any
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()
	if err := d.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func firstCause(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return strings.TrimSpace(loc + ": " + ve.Message)
}
