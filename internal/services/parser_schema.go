package services

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"resuchain/resume-pipeline/internal/apperror"
	"resuchain/resume-pipeline/internal/models"
)

// Only the body itself must be an object. Sections are opaque JSON values
// and are stored as returned.
const parseResponseSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object"
}`

var parseResponseSchema = jsonschema.MustCompileString("parse_response.json", parseResponseSchemaJSON)

const emptySection = "[]"

// decodeParseResponse validates a parsing backend response body and pulls
// out the three sections. Missing or null sections become empty lists.
func decodeParseResponse(body []byte) (*models.ParseResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, apperror.Remote("parse response is not valid JSON", nil)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperror.Remote("parse response is not valid JSON", err)
	}
	if err := parseResponseSchema.Validate(doc); err != nil {
		return nil, apperror.Remote("unexpected parse response shape", err)
	}

	return &models.ParseResult{
		Skills:     section(body, "skills"),
		Education:  section(body, "education"),
		Experience: section(body, "experience"),
	}, nil
}

func section(body []byte, name string) json.RawMessage {
	value := gjson.GetBytes(body, name)
	if !value.Exists() || value.Type == gjson.Null {
		return json.RawMessage(emptySection)
	}
	return json.RawMessage(value.Raw)
}

// extractJSON strips markdown fences and surrounding prose from a model reply.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return text[start : end+1]
	}

	return strings.TrimSpace(text)
}
