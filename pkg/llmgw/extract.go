package llmgw

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractJSON pulls the first JSON value (array or object) out of text,
// stripping a surrounding markdown code fence if the provider wrapped its
// answer in one (```json ... ``` or plain ```...```). Providers are not
// trusted to return bare JSON.
func ExtractJSON(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.IndexAny(trimmed, "[{")
	if start < 0 {
		return "", fmt.Errorf("llmgw: no JSON value found in response")
	}
	closing := byte(']')
	if trimmed[start] == '{' {
		closing = '}'
	}
	end := strings.LastIndexByte(trimmed, closing)
	if end < start {
		return "", fmt.Errorf("llmgw: unterminated JSON value in response")
	}
	candidate := trimmed[start : end+1]
	if !gjson.Valid(candidate) {
		return "", fmt.Errorf("llmgw: extracted text is not valid JSON")
	}
	return candidate, nil
}

// PairByID splits a JSON array response into one raw JSON object per
// element, keyed by the value of idField. Elements missing idField, or
// carrying a duplicate, are reported separately rather than silently
// dropped — §4.7 requires pairing to fail loudly on missing IDs, not fall
// back to positional order.
func PairByID(jsonArray, idField string) (byID map[string]string, duplicates, missingID []int, err error) {
	parsed := gjson.Parse(jsonArray)
	if !parsed.IsArray() {
		return nil, nil, nil, fmt.Errorf("llmgw: expected a JSON array, got %s", parsed.Type)
	}

	byID = make(map[string]string)
	index := 0
	var rangeErr error
	parsed.ForEach(func(_, value gjson.Result) bool {
		id := value.Get(idField)
		if !id.Exists() || id.String() == "" {
			missingID = append(missingID, index)
			index++
			return true
		}
		key := id.String()
		if _, seen := byID[key]; seen {
			duplicates = append(duplicates, index)
			index++
			return true
		}
		byID[key] = value.Raw
		index++
		return true
	})
	if rangeErr != nil {
		return nil, nil, nil, rangeErr
	}
	return byID, duplicates, missingID, nil
}
