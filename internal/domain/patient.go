package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// PatientContext is free-form patient data supplied by the caller.
type PatientContext map[string]any

// ParsePatientContext decodes raw JSON into a PatientContext. Anything that is
// not a JSON object yields an empty context.
func ParsePatientContext(raw string) PatientContext {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PatientContext{}
	}
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return PatientContext{}
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return PatientContext{}
	}
	return PatientContext(obj)
}

// DisplayName joins firstName and lastName. Missing or null parts are empty.
func (p PatientContext) DisplayName() string {
	return strings.TrimSpace(p.stringField("firstName") + " " + p.stringField("lastName"))
}

// DisplayNameOr returns the display name or fallback when it is empty.
func (p PatientContext) DisplayNameOr(fallback string) string {
	if name := p.DisplayName(); name != "" {
		return name
	}
	return fallback
}

// Pretty renders the context as two-space indented JSON. HTML characters are
// kept as written.
func (p PatientContext) Pretty() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any(p)); err != nil {
		return "{}"
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (p PatientContext) stringField(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	case float64:
		if t == 0 {
			return ""
		}
		return fmt.Sprint(t)
	default:
		return fmt.Sprint(t)
	}
}
