package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{name: "string", raw: `"employees"`, expected: "employees"},
		{name: "integer", raw: `12345`, expected: "12345"},
		{name: "float", raw: `0.85`, expected: "0.85"},
		{name: "bool", raw: `true`, expected: "true"},
		{name: "null", raw: `null`, expected: ""},
		{name: "empty", raw: ``, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FlexibleStringValue(json.RawMessage(tt.raw)))
		})
	}
}
