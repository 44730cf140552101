package jsoncfg

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// TimepointList decodes the optional "timepoints" array. Non-string entries
// are kept by their JSON text; anything that is not an array decodes to nil.
type TimepointList []string

func (t *TimepointList) UnmarshalJSON(data []byte) error {
	*t = nil
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(string(item))
		if trimmed == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, trimmed)
	}
	*t = out
	return nil
}

// FlexInt accepts a JSON number or numeric string. Invalid input leaves the
// value unset.
type FlexInt struct {
	Value int
	Set   bool
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	data = bytes.TrimSpace(data)
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		if !math.IsNaN(n) && !math.IsInf(n, 0) {
			f.Value, f.Set = int(n), true
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			f.Value, f.Set = i, true
		}
	}
	return nil
}

// Or returns the value when set and non-zero, otherwise fallback.
func (f FlexInt) Or(fallback int) int {
	if f.Set && f.Value != 0 {
		return f.Value
	}
	return fallback
}

// DecodeLenient decodes a JSON object body into dst. Syntax errors leave dst
// untouched; fields with the wrong type are skipped and the rest is kept. It
// reports whether anything was decoded.
func DecodeLenient(body []byte, dst any) bool {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return false
	}
	err := json.Unmarshal(body, dst)
	var typeErr *json.UnmarshalTypeError
	return err == nil || errors.As(err, &typeErr)
}
