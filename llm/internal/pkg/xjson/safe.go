package xjson

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// SafeJSONRawMessage coerces s into a valid JSON RawMessage. Valid input is
// used as-is; truncated or malformed input (models emit both for tool-call
// arguments) goes through jsonrepair. Anything unrecoverable, including empty
// input, becomes {} so downstream serialization never fails.
func SafeJSONRawMessage(s string) json.RawMessage {
	if strings.TrimSpace(s) == "" {
		return json.RawMessage("{}")
	}

	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}

	repaired, err := jsonrepair.JSONRepair(s)
	if err == nil && json.Valid([]byte(repaired)) {
		return json.RawMessage(repaired)
	}

	return json.RawMessage("{}")
}
