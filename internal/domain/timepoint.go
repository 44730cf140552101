package domain

import "fmt"

const (
	TimepointNow = "now"
	Timepoint3M  = "3m"
	Timepoint6M  = "6m"
	Timepoint12M = "12m"
)

// DefaultTimepoints is used when the caller does not request any.
func DefaultTimepoints() []string {
	return []string{TimepointNow, Timepoint3M, Timepoint6M, Timepoint12M}
}

var timepointSuffixes = map[string]string{
	TimepointNow: "current brain state",
	Timepoint3M:  "brain state in approximately 3 months",
	Timepoint6M:  "brain state in approximately 6 months",
	Timepoint12M: "brain state in approximately 12 months",
}

// TimepointSuffix describes what a timepoint's image should depict. Unknown
// labels describe themselves.
func TimepointSuffix(label string) string {
	if s, ok := timepointSuffixes[label]; ok {
		return s
	}
	return label
}

// DecoratePrompt appends the timepoint suffix to a shared prompt.
func DecoratePrompt(prompt, label string) string {
	return fmt.Sprintf("%s. Please depict the %s.", prompt, TimepointSuffix(label))
}

// TimepointPrompt pairs a timepoint label with the prompt sent for it.
type TimepointPrompt struct {
	Timepoint string `json:"time_point"`
	Prompt    string `json:"prompt"`
}

// NormalizeTimepoints drops duplicate labels, keeping first-seen order, and
// falls back to the default set when none were requested. An empty label is
// kept so the response still carries it.
func NormalizeTimepoints(labels []string) []string {
	if len(labels) == 0 {
		return DefaultTimepoints()
	}
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}
