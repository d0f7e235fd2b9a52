package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/procperf/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	processSchemaURL  = "https://procperf.dev/schemas/process.json"
	settingsSchemaURL = "https://procperf.dev/schemas/settings.json"
)

// processSchemaJSON is the JSON Schema for ProcessDefinition documents.
const processSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://procperf.dev/schemas/process.json",
  "$ref": "#/$defs/process",
  "$defs": {
    "process": {
      "type": "object",
      "required": ["id", "elements"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string" },
        "elements": {
          "type": "array",
          "minItems": 1,
          "items": { "$ref": "#/$defs/element" }
        },
        "metadata": {
          "type": "object",
          "additionalProperties": { "$ref": "#/$defs/meta" }
        },
        "gateways": {
          "type": "array",
          "items": { "$ref": "#/$defs/gateway" }
        },
        "calledProcesses": {
          "type": "array",
          "items": { "$ref": "#/$defs/process" }
        }
      },
      "additionalProperties": false
    },
    "element": {
      "type": "object",
      "required": ["id", "$type"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "$type": {
          "type": "string",
          "enum": [
            "bpmn:StartEvent", "bpmn:EndEvent",
            "bpmn:IntermediateCatchEvent", "bpmn:IntermediateThrowEvent",
            "bpmn:Task", "bpmn:SequenceFlow",
            "bpmn:ExclusiveGateway", "bpmn:ParallelGateway", "bpmn:EventBasedGateway",
            "bpmn:SubProcess", "bpmn:CallActivity"
          ]
        },
        "sourceRef": { "type": "string" },
        "targetRef": { "type": "string" },
        "incoming": { "type": "array", "items": { "type": "string" } },
        "outgoing": { "type": "array", "items": { "type": "string" } },
        "calledElement": { "type": "string" },
        "process": { "$ref": "#/$defs/process" }
      },
      "additionalProperties": false
    },
    "meta": {
      "type": "object",
      "properties": {
        "duration": { "type": "string" },
        "occurrence": { "type": "string" },
        "end": { "type": "string" },
        "cost": { "type": "number", "minimum": 0 },
        "probability": { "type": "number", "minimum": 0, "maximum": 100 }
      },
      "additionalProperties": false
    },
    "gateway": {
      "type": "object",
      "required": ["id", "pattern"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "kind": { "type": "string" },
        "pattern": { "type": "string", "enum": ["split", "join"] },
        "isParallel": { "type": "boolean" },
        "incoming": { "type": "array", "items": { "type": "string" } },
        "outgoing": { "type": "array", "items": { "type": "string" } },
        "potentialMatches": { "type": "array", "items": { "type": "string" } },
        "isLoop": { "type": "boolean" },
        "matchId": { "type": "string" }
      },
      "additionalProperties": false
    }
  }
}`

// settingsSchemaJSON is the JSON Schema for Settings.
const settingsSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://procperf.dev/schemas/settings.json",
  "type": "object",
  "properties": {
    "calculations": {
      "type": ["array", "null"],
      "items": { "type": "string", "enum": ["time", "cost", "dates"] },
      "uniqueItems": true
    },
    "considerPerformanceInSequenceFlows": { "type": "boolean" },
    "overwriteWithParentPerformance": { "type": "boolean" },
    "ignoreMissingBasicPerformance": { "type": "boolean" },
    "ignoreMissingOptionalPerformance": { "type": "boolean" },
    "currency": { "type": "string" },
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "expression"],
        "properties": {
          "id": { "type": "string", "minLength": 1 },
          "engine": { "type": "string", "enum": ["", "cel", "expr"] },
          "expression": { "type": "string", "minLength": 1 },
          "message": { "type": "string" }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

// JSONSchemaValidator implements DocumentChecker using JSON Schema Draft 2020-12.
// It is safe for concurrent use.
type JSONSchemaValidator struct {
	processSchema  *jsonschema.Schema
	settingsSchema *jsonschema.Schema
}

// NewJSONSchemaValidator creates a JSONSchemaValidator with both schemas
// pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	for url, src := range map[string]string{
		processSchemaURL:  processSchemaJSON,
		settingsSchemaURL: settingsSchemaJSON,
	} {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("unmarshal schema %s: %w", url, err)
		}
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", url, err)
		}
	}

	ps, err := c.Compile(processSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile process schema: %w", err)
	}
	ss, err := c.Compile(settingsSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile settings schema: %w", err)
	}

	return &JSONSchemaValidator{processSchema: ps, settingsSchema: ss}, nil
}

// ValidateDefinition validates a ProcessDefinition against the process JSON
// Schema, then checks element ID uniqueness in every process of the tree.
func (v *JSONSchemaValidator) ValidateDefinition(def *schema.ProcessDefinition) error {
	if def == nil {
		return schema.NewError(schema.ErrCodeValidation, "process definition is nil")
	}

	doc, err := toJSONValue(def)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize process definition").WithCause(err)
	}
	if err := v.processSchema.Validate(doc); err != nil {
		return toSchemaError(err)
	}

	return checkUniqueIDs(def)
}

// ValidateSettings validates Settings against the settings JSON Schema.
func (v *JSONSchemaValidator) ValidateSettings(settings schema.Settings) error {
	doc, err := toJSONValue(settings)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize settings").WithCause(err)
	}
	if err := v.settingsSchema.Validate(doc); err != nil {
		return toSchemaError(err)
	}
	return nil
}

// checkUniqueIDs covers what JSON Schema cannot express: element IDs are
// unique within a process, and process IDs are unique across the tree.
func checkUniqueIDs(root *schema.ProcessDefinition) error {
	processes := map[string]struct{}{}
	var visit func(def *schema.ProcessDefinition, called bool) error
	visit = func(def *schema.ProcessDefinition, called bool) error {
		if called {
			if _, dup := processes[def.ID]; dup {
				return schema.NewErrorf(schema.ErrCodeValidation, "duplicate process id %q", def.ID)
			}
			processes[def.ID] = struct{}{}
		}

		seen := make(map[string]struct{}, len(def.Elements))
		for _, el := range def.Elements {
			if _, dup := seen[el.ID]; dup {
				return schema.NewErrorf(schema.ErrCodeValidation,
					"duplicate element id %q in process %s", el.ID, def.ID)
			}
			seen[el.ID] = struct{}{}
			if el.Process != nil {
				if err := visit(el.Process, false); err != nil {
					return err
				}
			}
		}
		for _, c := range def.CalledProcesses {
			if err := visit(c, true); err != nil {
				return err
			}
		}
		return nil
	}
	processes[root.ID] = struct{}{}
	return visit(root, false)
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toSchemaError converts a jsonschema.ValidationError into a schema.Error
// listing every leaf violation.
func toSchemaError(err error) *schema.Error {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}

var _ DocumentChecker = (*JSONSchemaValidator)(nil)
