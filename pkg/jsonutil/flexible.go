// Package jsonutil tolerantly decodes the JSON that language models actually
// produce, where declared strings arrive as numbers or booleans.
package jsonutil

import (
	"encoding/json"
	"strconv"
)

// FlexibleStringValue renders a raw JSON value as a string regardless of its
// actual type. null and empty input decode to "".
func FlexibleStringValue(raw json.RawMessage) string {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw)
	}

	switch v := decoded.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return string(raw)
	}
}
