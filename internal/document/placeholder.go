package document

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

var placeholderPattern = regexp.MustCompile(`{{([^}]+)}}`)

// Resolve replaces every literal {{key}} in text with the rendered value of
// data[key]. Keys are applied in sorted order and a replacement is not
// protected from later keys, so a value containing {{other}} may be expanded
// again.
func Resolve(text string, data map[string]interface{}) string {
	if len(data) == 0 || !strings.Contains(text, "{{") {
		return text
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		text = strings.ReplaceAll(text, "{{"+k+"}}", ValueText(data[k]))
	}
	return text
}

// ValueText renders a data value the way it appears in a document.
func ValueText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}

	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// FindPlaceholders returns the keys of every {{key}} in text in order of appearance.
func FindPlaceholders(text string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, m[1])
	}
	return keys
}

func hasPlaceholderMarkers(text string) bool {
	return strings.Contains(text, "{{") && strings.Contains(text, "}}")
}
