package models

import "encoding/json"

// ParseResult holds the three sections returned by the parsing backend.
// Each section is kept as raw JSON and stored opaquely on the record.
type ParseResult struct {
	Skills     json.RawMessage
	Education  json.RawMessage
	Experience json.RawMessage
}
