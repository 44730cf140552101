package clinical

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"brainsim/internal/domain"
)

// DefaultEHRBudget is the default cumulative character budget across all EHR
// documents.
const DefaultEHRBudget = 8000

var textyExtensions = []string{".txt", ".json", ".csv", ".md"}

// IsTexty reports whether an attachment is read as text.
func IsTexty(a domain.Attachment) bool {
	mime := strings.ToLower(a.MimeType)
	if strings.Contains(mime, "text") || strings.HasSuffix(mime, "json") {
		return true
	}
	for _, ext := range textyExtensions {
		if strings.HasSuffix(a.Filename, ext) {
			return true
		}
	}
	return false
}

// ExtractEHRText concatenates texty EHR documents until budget characters
// have been used. The document that crosses the budget is cut to what is
// left and nothing after it is appended. Non-texty documents contribute a
// placeholder line instead of their content.
func ExtractEHRText(files []domain.Attachment, budget int) string {
	if budget <= 0 {
		budget = DefaultEHRBudget
	}
	var b strings.Builder
	remaining := budget

	for _, f := range files {
		name := f.Filename
		if name == "" {
			name = "ehr_file"
		}
		if !IsTexty(f) {
			fmt.Fprintf(&b, "[%s: non-text EHR document (not parsed)]\n", name)
			continue
		}

		text := DecodeText(f.Bytes())
		if strings.TrimSpace(text) == "" {
			continue
		}
		runes := []rune(text)
		if len(runes) > remaining {
			runes = runes[:remaining]
		}
		remaining -= len(runes)

		fmt.Fprintf(&b, "\n--- BEGIN EHR: %s ---\n%s\n--- END EHR: %s ---\n", name, string(runes), name)

		if remaining <= 0 {
			break
		}
	}

	return strings.TrimSpace(b.String())
}

// DecodeText decodes document bytes as text. A UTF-8 or UTF-16 byte order
// mark selects the encoding; otherwise the bytes are taken as UTF-8. Invalid
// sequences are dropped.
func DecodeText(raw []byte) string {
	dec := unicode.BOMOverride(encoding.Nop.NewDecoder())
	out, _, err := transform.Bytes(dec, raw)
	if err != nil {
		out = raw
	}
	return strings.ToValidUTF8(string(out), "")
}
