// Package validation checks the login and registration forms.
//
// Rules are JSON Schema documents; each field lists the schema keywords it
// can fail and the message to show, in priority order. Only the first
// failing rule of a field is reported.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Errors maps a form field to its message.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return strings.Join(parts, "; ")
}

// kindRequired covers a missing key, a wrong type and the empty string.
const kindRequired = "required"

type rule struct {
	kind    string // kindRequired or a schema keyword such as minLength
	message string
}

type field struct {
	name  string
	rules []rule
}

// Schema is a compiled rule set.
type Schema struct {
	schema *jsonschema.Schema
	fields []field
}

func mustSchema(name, doc string, fields ...field) *Schema {
	return &Schema{schema: jsonschema.MustCompileString(name, doc), fields: fields}
}

// Validate checks form (any JSON-marshalable value) and returns nil or Errors.
func (s *Schema) Validate(form any) error {
	b, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("marshal form: %w", err)
	}
	var doc any
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()
	if err := d.Decode(&doc); err != nil {
		return fmt.Errorf("decode form: %w", err)
	}
	verr := s.schema.Validate(doc)
	if verr == nil {
		return nil
	}
	ve, ok := verr.(*jsonschema.ValidationError)
	if !ok {
		return verr
	}

	failed := map[string]map[string]bool{}
	mark := func(name, kind string) {
		if failed[name] == nil {
			failed[name] = map[string]bool{}
		}
		failed[name][kind] = true
	}
	obj, _ := doc.(map[string]any)
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		kw := path.Base(e.KeywordLocation)
		name := strings.TrimPrefix(e.InstanceLocation, "/")
		switch kw {
		case "required":
			for _, f := range s.fields {
				if _, present := obj[f.name]; !present {
					mark(f.name, kindRequired)
				}
			}
		case "type", "not":
			mark(name, kindRequired)
		default:
			mark(name, kw)
		}
	}
	walk(ve)

	out := Errors{}
	for _, f := range s.fields {
		for _, r := range f.rules {
			if failed[f.name][r.kind] {
				out[f.name] = r.message
				break
			}
		}
	}
	if len(out) == 0 {
		return ve
	}
	return out
}
