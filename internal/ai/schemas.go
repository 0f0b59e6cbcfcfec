package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const diagnosisSchemaJSON = `{
  "type": "object",
  "required": ["diagnostics", "medications"],
  "properties": {
    "diagnostics": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "disease", "probability", "explanation"],
        "properties": {
          "id": {"type": "integer"},
          "disease": {"type": "string", "minLength": 1},
          "probability": {"type": "number", "minimum": 0, "maximum": 100},
          "explanation": {"type": "string"}
        }
      }
    },
    "medications": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "indication", "dosage", "category"],
        "properties": {
          "id": {"type": "integer"},
          "name": {"type": "string", "minLength": 1},
          "indication": {"type": "string"},
          "dosage": {"type": "string"},
          "category": {"type": "string"},
          "cost": {"type": "number", "minimum": 0}
        }
      }
    }
  }
}`

const compatibilitySchemaJSON = `{
  "type": "object",
  "required": ["compatible", "warnings"],
  "properties": {
    "compatible": {"type": "boolean"},
    "warnings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["medication_ids", "medication_names", "severity", "reason"],
        "properties": {
          "medication_ids": {"type": "array", "items": {"type": "integer"}},
          "medication_names": {"type": "array", "items": {"type": "string"}},
          "severity": {"type": "string", "enum": ["high", "medium", "low"]},
          "reason": {"type": "string"},
          "recommendation": {"type": "string"}
        }
      }
    }
  }
}`

const suggestionsSchemaJSON = `{
  "type": "object",
  "required": ["suggestions"],
  "properties": {
    "suggestions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "reason", "priority", "category"],
        "properties": {
          "id": {"type": "integer"},
          "name": {"type": "string", "minLength": 1},
          "reason": {"type": "string"},
          "priority": {"type": "string", "enum": ["high", "medium", "low"]},
          "category": {"type": "string"}
        }
      }
    }
  }
}`

// responseSchema is sent to the model as the structured output contract and
// used to validate what comes back.
type responseSchema struct {
	name      string
	raw       json.RawMessage
	validator *gojsonschema.Schema
}

var (
	diagnosisSchema     = mustSchema("diagnosis", diagnosisSchemaJSON)
	compatibilitySchema = mustSchema("compatibility", compatibilitySchemaJSON)
	suggestionsSchema   = mustSchema("suggestions", suggestionsSchemaJSON)
)

func mustSchema(name, src string) *responseSchema {
	validator, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid %s schema: %v", name, err))
	}
	return &responseSchema{name: name, raw: json.RawMessage(src), validator: validator}
}

// validate checks a JSON document against the schema.
func (s *responseSchema) validate(doc string) error {
	result, err := s.validator.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return fmt.Errorf("%s response is not valid JSON: %w", s.name, err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("%s response violates schema: %s", s.name, strings.Join(problems, "; "))
}
