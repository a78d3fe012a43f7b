package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferSchema(t *testing.T) {
	schema := InferSchema([]string{
		"Invoice {{number}}",
		"Bill to {{customer}} on {{date}}",
		"Again {{number}}",
		"plain text",
	})

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"customer", "date", "number"}, schema.Required())

	props := schema.Properties()
	require.Len(t, props, 3)
	for _, k := range []string{"customer", "date", "number"} {
		assert.Equal(t, map[string]interface{}{"type": "string"}, props[k])
	}
}

func TestInferSchema_Empty(t *testing.T) {
	schema := InferSchema(nil)
	assert.Empty(t, schema.Properties())
	assert.Empty(t, schema.Required())

	raw, err := json.Marshal(schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{},"required":[]}`, string(raw))
}

func TestSchema_RequiredFromDecodedJSON(t *testing.T) {
	var schema Schema
	require.NoError(t, json.Unmarshal([]byte(`{"type":"object","required":["a","b"]}`), &schema))

	assert.Equal(t, []string{"a", "b"}, schema.Required())

	schema.AddRequiredString("c")
	schema.AddRequiredString("a")
	assert.Equal(t, []string{"a", "b", "c"}, schema.Required())
	assert.Contains(t, schema.Properties(), "c")
}
