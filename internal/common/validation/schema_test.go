package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoiceSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"customer": map[string]interface{}{"type": "string"},
			"amount":   map[string]interface{}{"type": "number", "minimum": 0},
		},
		"required": []string{"customer", "amount"},
	}
}

func TestValidateAgainstSchema(t *testing.T) {
	tests := []struct {
		name     string
		schema   map[string]interface{}
		data     map[string]interface{}
		valid    bool
		messages []string
	}{
		{
			name:   "valid data",
			schema: invoiceSchema(),
			data:   map[string]interface{}{"customer": "ACME", "amount": 12.5},
			valid:  true,
		},
		{
			name:     "missing required",
			schema:   invoiceSchema(),
			data:     map[string]interface{}{"customer": "ACME"},
			messages: []string{"(root): amount is required"},
		},
		{
			name:   "wrong types",
			schema: invoiceSchema(),
			data:   map[string]interface{}{"customer": 7, "amount": -1},
			messages: []string{
				"amount: Must be greater than or equal to 0",
				"customer: Invalid type. Expected: string, given: integer",
			},
		},
		{
			name:   "empty schema accepts anything",
			schema: nil,
			data:   map[string]interface{}{"x": 1},
			valid:  true,
		},
		{
			name:   "nil data against empty required",
			schema: map[string]interface{}{"type": "object", "properties": map[string]interface{}{}, "required": []string{}},
			data:   nil,
			valid:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ValidateAgainstSchema(tt.schema, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid)
			if !tt.valid {
				assert.Equal(t, tt.messages, result.GetErrorMessages())
			}
		})
	}
}

func TestValidateAgainstSchema_InvalidSchema(t *testing.T) {
	_, err := ValidateAgainstSchema(map[string]interface{}{"type": 12}, map[string]interface{}{})
	assert.Error(t, err)
}

func TestValidationResult_FieldLookup(t *testing.T) {
	result, err := ValidateAgainstSchema(invoiceSchema(), map[string]interface{}{"customer": 7, "amount": 1})
	require.NoError(t, err)

	assert.True(t, result.HasErrors("customer"))
	assert.False(t, result.HasErrors("amount"))
	require.Len(t, result.GetErrorsForField("customer"), 1)
	assert.Equal(t, "INVALID_TYPE", result.GetErrorsForField("customer")[0].Code)
}
