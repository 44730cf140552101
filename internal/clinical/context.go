package clinical

import (
	"fmt"
	"strings"

	"brainsim/internal/domain"
)

// Input is everything the caller supplied for one prompt-generation request.
type Input struct {
	BasePrompt string
	Patient    domain.PatientContext
	EHRFiles   []domain.Attachment
	CTScans    []domain.Attachment
}

// BuildContext renders the patient/request summary sent ahead of the EHR
// excerpts.
func BuildContext(in Input) string {
	lines := []string{fmt.Sprintf("Base prompt:\n%s\n", in.BasePrompt)}
	if name := in.Patient.DisplayName(); name != "" {
		lines = append(lines, "Patient name: "+name)
	}
	if len(in.Patient) > 0 {
		lines = append(lines, "Structured patient JSON:", in.Patient.Pretty())
	}
	lines = append(lines, fmt.Sprintf("\nAttachments: %d EHR file(s) and %d CT scan image(s).", len(in.EHRFiles), len(in.CTScans)))
	return strings.Join(lines, "\n")
}
