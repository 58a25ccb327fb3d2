package common

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
)

// ParseJSON extracts the outermost JSON object from an LLM response and
// unmarshals it into T. Markdown fences, surrounding prose, comments and
// trailing commas are tolerated.
func ParseJSON[T any](response string) (T, error) {
	var zero T
	jsonStr := response

	start := -1
	end := -1

	for i, c := range jsonStr {
		if c == '{' {
			start = i
			break
		}
	}
	for i := len(jsonStr) - 1; i >= 0; i-- {
		if c := jsonStr[i]; c == '}' {
			end = i + 1
			break
		}
	}

	if start == -1 {
		return zero, fmt.Errorf("no JSON object found in response (missing '{')")
	}
	if end == -1 || end <= start {
		return zero, fmt.Errorf("unterminated JSON object in response (missing '}')")
	}
	jsonStr = jsonStr[start:end]

	var result T
	if err := json.Unmarshal(jsonc.ToJSON([]byte(jsonStr)), &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return result, nil
}
