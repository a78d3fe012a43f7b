package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Resolve
// ==========================

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		text string
		data map[string]interface{}
		want string
	}{
		{
			name: "invoice",
			text: "Invoice {{number}} for {{customer}}",
			data: map[string]interface{}{"number": "INV-7", "customer": "ACME"},
			want: "Invoice INV-7 for ACME",
		},
		{
			name: "repeated key",
			text: "{{x}}-{{x}}",
			data: map[string]interface{}{"x": "a"},
			want: "a-a",
		},
		{
			name: "missing key left literal",
			text: "Dear {{name}}, ref {{ref}}",
			data: map[string]interface{}{"name": "Ana"},
			want: "Dear Ana, ref {{ref}}",
		},
		{
			name: "numbers and bools",
			text: "{{qty}} x {{price}} paid={{paid}}",
			data: map[string]interface{}{"qty": 3, "price": 9.5, "paid": true},
			want: "3 x 9.5 paid=true",
		},
		{
			name: "json decoded integer",
			text: "{{total}}",
			data: map[string]interface{}{"total": float64(1500)},
			want: "1500",
		},
		{
			name: "nil renders empty",
			text: "[{{note}}]",
			data: map[string]interface{}{"note": nil},
			want: "[]",
		},
		{
			name: "objects render as json",
			text: "{{items}}",
			data: map[string]interface{}{"items": []interface{}{"a", "b"}},
			want: `["a","b"]`,
		},
		{
			name: "no recursion guard: later key sees earlier value",
			text: "{{a}}",
			data: map[string]interface{}{"a": "{{b}}", "b": "x"},
			want: "x",
		},
		{
			name: "whitespace inside braces is part of the key",
			text: "{{ name }}",
			data: map[string]interface{}{"name": "Ana"},
			want: "{{ name }}",
		},
		{
			name: "empty data",
			text: "{{a}}",
			data: nil,
			want: "{{a}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.text, tt.data))
		})
	}
}

func TestResolve_IdempotentOnDisjointKeys(t *testing.T) {
	data := map[string]interface{}{"number": "INV-7", "customer": "ACME", "total": 1500}
	text := "Invoice {{number}} for {{customer}}: {{total}} ({{missing}})"

	once := Resolve(text, data)
	assert.Equal(t, once, Resolve(once, data))
}

// ==========================
// FindPlaceholders
// ==========================

func TestFindPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "b"}, FindPlaceholders("{{b}} and {{a}} then {{b}}"))
	assert.Nil(t, FindPlaceholders("no markers"))
	assert.Nil(t, FindPlaceholders("{{}}"))
	assert.Equal(t, []string{"first name"}, FindPlaceholders("{{first name}}"))
}
