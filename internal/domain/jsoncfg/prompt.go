package jsoncfg

import (
	"bytes"
	"encoding/json"

	"brainsim/internal/domain"
)

// PromptShape records how the caller expressed the prompt field.
type PromptShape int

const (
	ShapeEmpty PromptShape = iota
	// ShapeString is a single plain prompt shared by every timepoint.
	ShapeString
	// ShapeList is an array of {time_point, prompt} entries, possibly mixed
	// with plain strings.
	ShapeList
	// ShapeObject is a single object carrying a "prompt" key.
	ShapeObject
	// ShapeMapping is an object keyed by timepoint label.
	ShapeMapping
)

func (s PromptShape) String() string {
	switch s {
	case ShapeString:
		return "string"
	case ShapeList:
		return "list"
	case ShapeObject:
		return "object"
	case ShapeMapping:
		return "mapping"
	default:
		return "empty"
	}
}

type listEntry struct {
	timepoint string
	prompt    string
	hasPrompt bool
	plain     string
	isPlain   bool
}

// PromptField accepts any JSON value for "prompt" and resolves it to a prompt
// per timepoint. Malformed values decode to ShapeEmpty instead of failing the
// surrounding request.
type PromptField struct {
	shape   PromptShape
	text    string
	entries []listEntry
	mapping map[string]string
}

// StringPrompt wraps a plain prompt.
func StringPrompt(s string) PromptField {
	if s == "" {
		return PromptField{}
	}
	return PromptField{shape: ShapeString, text: s}
}

func (p *PromptField) UnmarshalJSON(data []byte) error {
	*p = PromptField{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil
	}
	switch v := decoded.(type) {
	case string:
		*p = StringPrompt(v)
	case []any:
		p.shape = ShapeList
		p.entries = make([]listEntry, 0, len(v))
		for _, item := range v {
			p.entries = append(p.entries, toListEntry(item))
		}
	case map[string]any:
		if raw, ok := v["prompt"]; ok {
			p.shape = ShapeObject
			p.text, _ = raw.(string)
			return nil
		}
		p.shape = ShapeMapping
		p.mapping = make(map[string]string, len(v))
		for label, value := range v {
			p.mapping[label] = promptValue(value)
		}
	}
	return nil
}

// MarshalJSON re-encodes the field in its canonical form.
func (p PromptField) MarshalJSON() ([]byte, error) {
	switch p.shape {
	case ShapeString:
		return json.Marshal(p.text)
	case ShapeObject:
		return json.Marshal(map[string]string{"prompt": p.text})
	case ShapeMapping:
		return json.Marshal(p.mapping)
	case ShapeList:
		out := make([]any, 0, len(p.entries))
		for _, e := range p.entries {
			switch {
			case e.isPlain:
				out = append(out, e.plain)
			case e.hasPrompt:
				out = append(out, domain.TimepointPrompt{Timepoint: e.timepoint, Prompt: e.prompt})
			default:
				out = append(out, nil)
			}
		}
		return json.Marshal(out)
	default:
		return []byte("null"), nil
	}
}

// Shape reports how the prompt was expressed.
func (p PromptField) Shape() PromptShape {
	return p.shape
}

// ForTimepoints resolves one prompt per label, in label order. A shared plain
// string is decorated with the timepoint suffix when decorate is set. Labels
// that resolve to nothing get an empty prompt.
func (p PromptField) ForTimepoints(labels []string, decorate bool) []domain.TimepointPrompt {
	out := make([]domain.TimepointPrompt, 0, len(labels))
	for _, label := range labels {
		prompt := p.resolve(label)
		if decorate && p.shape == ShapeString && prompt != "" {
			prompt = domain.DecoratePrompt(prompt, label)
		}
		out = append(out, domain.TimepointPrompt{Timepoint: label, Prompt: prompt})
	}
	return out
}

// ResolveOne resolves a single undecorated prompt. label may be empty, in
// which case list inputs skip the exact-match step.
func (p PromptField) ResolveOne(label string) string {
	return p.resolve(label)
}

func (p PromptField) resolve(label string) string {
	switch p.shape {
	case ShapeString, ShapeObject:
		return p.text
	case ShapeMapping:
		return p.mapping[label]
	case ShapeList:
		return p.resolveList(label)
	default:
		return ""
	}
}

// resolveList: exact label match, then first entry with a prompt, then first
// plain string.
func (p PromptField) resolveList(label string) string {
	if label != "" {
		for _, e := range p.entries {
			if e.hasPrompt && e.timepoint == label && e.prompt != "" {
				return e.prompt
			}
		}
	}
	for _, e := range p.entries {
		if e.hasPrompt && e.prompt != "" {
			return e.prompt
		}
	}
	for _, e := range p.entries {
		if e.isPlain && e.plain != "" {
			return e.plain
		}
	}
	return ""
}

func toListEntry(item any) listEntry {
	switch v := item.(type) {
	case string:
		return listEntry{plain: v, isPlain: true}
	case map[string]any:
		var e listEntry
		if tp, ok := v["time_point"].(string); ok {
			e.timepoint = tp
		} else if tp, ok := v["timepoint"].(string); ok {
			e.timepoint = tp
		}
		if prompt, ok := v["prompt"].(string); ok {
			e.prompt = prompt
			e.hasPrompt = true
		}
		return e
	default:
		return listEntry{}
	}
}

func promptValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t["prompt"].(string); ok {
			return s
		}
	}
	return ""
}
