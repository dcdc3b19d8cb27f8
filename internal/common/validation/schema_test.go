package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"required": ["name", "tags"],
	"properties": {
		"name": {"type": "string"},
		"tags": {"type": "array", "items": {"type": "string"}},
		"meta": {"type": "object", "additionalProperties": {"type": "string"}}
	}
}`

func TestSchema_ValidateBytes(t *testing.T) {
	s, err := Compile(testSchema)
	require.NoError(t, err)

	tests := []struct {
		name      string
		doc       string
		valid     bool
		errField  string
		errorCode string
	}{
		{name: "valid", doc: `{"name":"x","tags":["a"]}`, valid: true},
		{name: "missing field", doc: `{"name":"x"}`, valid: false, errField: "(root)", errorCode: "REQUIRED"},
		{name: "wrong item type", doc: `{"name":"x","tags":[1]}`, valid: false, errField: "tags.0", errorCode: "INVALID_TYPE"},
		{name: "nested map value", doc: `{"name":"x","tags":[],"meta":{"a":1}}`, valid: false, errField: "meta.a", errorCode: "INVALID_TYPE"},
		{name: "malformed json", doc: `{"name":`, valid: false, errField: "(root)", errorCode: "INVALID_JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.ValidateBytes([]byte(tt.doc))
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				require.NotEmpty(t, res.Errors)
				assert.True(t, res.HasErrors(tt.errField), "errors: %v", res.GetErrorMessages())
				assert.Equal(t, tt.errorCode, res.GetErrorsForField(tt.errField)[0].Code)
				assert.NotEmpty(t, res.Error())
			}
		})
	}
}

func TestSchema_ValidateValue(t *testing.T) {
	s := MustCompile(testSchema)
	res := s.ValidateValue(map[string]interface{}{"name": "x", "tags": []interface{}{"a", "b"}})
	assert.True(t, res.Valid)
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile(`not json`) })
}
