// Package deliverable implements the C8 Deliverable Engine: requirement
// generation, task-output structuring into artifacts, schema validation, and
// aggregation into goal-scoped deliverables (spec §4.7). Schema validation is
// grounded on the teacher's registry/service.go validatePayloadJSONAgainstSchema,
// which compiles an in-memory santhosh-tekuri/jsonschema/v6 document per call
// rather than precompiling — acceptable here since validation runs once per
// completed task, not per tool invocation on a hot path.
package deliverable

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaRegistry maps a schema name (AcceptanceCriteria.SchemaName) to its
// JSON Schema document (spec §4.7
// step 3, e.g. "contact_database requires contacts[], total_contacts >= 0,
// quality_score in [0,1]").
var schemaRegistry = map[string]string{
	"contact_database": `{
		"type": "object",
		"required": ["contacts", "total_contacts", "quality_score"],
		"properties": {
			"contacts": {"type": "array"},
			"total_contacts": {"type": "number", "minimum": 0},
			"quality_score": {"type": "number", "minimum": 0, "maximum": 1}
		}
	}`,
	"email_sequence": `{
		"type": "object",
		"required": ["emails", "sequence_length"],
		"properties": {
			"emails": {"type": "array"},
			"sequence_length": {"type": "number", "minimum": 1}
		}
	}`,
	"content_piece": `{
		"type": "object",
		"required": ["title", "body"],
		"properties": {
			"title": {"type": "string", "minLength": 1},
			"body": {"type": "string", "minLength": 1}
		}
	}`,
}

// ValidatePayload checks payload against schemaName's JSON Schema. An unknown
// schemaName is treated as "no schema to validate against" (valid=true),
// matching the teacher's short-circuit for an absent schema. Validation
// errors are never returned as Go errors to the caller — spec §4.7 step 3
// "validation errors are logged and surface as valid=false without
// throwing" — only the bool and a human-readable reason are.
func ValidatePayload(schemaName string, payload map[string]any) (bool, string) {
	raw, ok := schemaRegistry[schemaName]
	if !ok {
		return true, ""
	}

	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		return true, "" // malformed built-in schema: never block on our own bug
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Sprintf("payload not serialisable: %v", err)
	}
	var payloadDoc any
	if err := json.Unmarshal(payloadJSON, &payloadDoc); err != nil {
		return false, fmt.Sprintf("payload not valid JSON: %v", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaName+".json", schemaDoc); err != nil {
		return true, ""
	}
	schema, err := c.Compile(schemaName + ".json")
	if err != nil {
		return true, ""
	}
	if err := schema.Validate(payloadDoc); err != nil {
		return false, err.Error()
	}
	return true, ""
}
