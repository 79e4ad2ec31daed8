package llm

import (
	"encoding/json"
	"strings"
)

// extractJSONObjects returns every JSON object that can be decoded from
// the text, in order of appearance. Models often wrap their JSON in
// prose or markdown fences, so each '{' is tried as a decode start.
func extractJSONObjects(text string) []map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var objects []map[string]any

	// Fast path: the whole text is one object.
	var whole map[string]any
	if err := json.Unmarshal([]byte(text), &whole); err == nil {
		return []map[string]any{whole}
	}

	for i, ch := range text {
		if ch != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var obj map[string]any
		if err := dec.Decode(&obj); err == nil && obj != nil {
			objects = append(objects, obj)
		}
	}
	return objects
}

// extractJSONObject returns the first decodable JSON object, preferring
// one that contains preferKey when set.
func extractJSONObject(text, preferKey string) (map[string]any, error) {
	objects := extractJSONObjects(text)
	if len(objects) == 0 {
		return nil, ErrNoJSON
	}
	if preferKey != "" {
		for _, obj := range objects {
			if _, ok := obj[preferKey]; ok {
				return obj, nil
			}
		}
	}
	return objects[0], nil
}

// stringField returns a trimmed string field from a decoded object.
func stringField(obj map[string]any, key string) string {
	if value, ok := obj[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

// floatField returns a numeric field, accepting JSON numbers and
// numeric strings. ok is false when the field is absent or unusable.
func floatField(obj map[string]any, key string) (float64, bool) {
	switch value := obj[key].(type) {
	case float64:
		return value, true
	case string:
		var f float64
		if err := json.Unmarshal([]byte(strings.TrimSpace(value)), &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
