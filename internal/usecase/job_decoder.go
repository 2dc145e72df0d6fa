package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"speech-to-text/internal/domain"
	"speech-to-text/internal/domain/model"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const jobSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "media"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "media": {
      "type": "array",
      "minItems": 1,
      "items": {
        "oneOf": [
          {"type": "string", "minLength": 1},
          {
            "type": "object",
            "required": ["name"],
            "properties": {
              "name": {"type": "string", "minLength": 1},
              "options": {"type": "object"}
            }
          }
        ]
      }
    },
    "options": {
      "type": "object",
      "properties": {
        "model": {"type": "string"},
        "writer": {"type": "object"}
      }
    }
  }
}`

// JobDecoder turns queue message bodies into jobs.
type JobDecoder struct {
	schema *jsonschema.Schema
}

func NewJobDecoder() (*JobDecoder, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("job.json", strings.NewReader(jobSchema)); err != nil {
		return nil, fmt.Errorf("add job schema: %w", err)
	}
	schema, err := compiler.Compile("job.json")
	if err != nil {
		return nil, fmt.Errorf("compile job schema: %w", err)
	}
	return &JobDecoder{schema: schema}, nil
}

// Decode parses and validates a message body.
//
// A body without a usable id returns a nil job. A body with a usable id
// that fails validation returns the partially decoded job together with an
// InvalidJobError, so the failure can still be reported against that id.
func (d *JobDecoder) Decode(body []byte) (*model.Job, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, domain.InvalidJobError("decode", err, "message body is not JSON")
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, domain.InvalidJobError("decode", nil, "message body is not a JSON object")
	}
	id, _ := obj["id"].(string)
	if err := model.ValidateID(id); err != nil {
		return nil, domain.InvalidJobError("decode", err, "message has no usable job id")
	}

	job := &model.Job{ID: id}
	if err := d.schema.Validate(doc); err != nil {
		return job, domain.InvalidJobError("decode", err, "job %s does not match schema", id)
	}
	if err := json.Unmarshal(body, job); err != nil {
		return &model.Job{ID: id}, domain.InvalidJobError("decode", err, "job %s", id)
	}
	if a, b, dup := job.ArtifactConflict(); dup {
		return &model.Job{ID: id}, domain.InvalidJobError("decode", nil,
			"job %s: media %q and %q would write the same artifact names", id, a, b)
	}
	return job, nil
}
