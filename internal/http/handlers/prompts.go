package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"brainsim/internal/clinical"
	"brainsim/internal/domain"
)

type promptResponse struct {
	GeneratedPrompt string `json:"generated_prompt"`
}

// ModelPrompt accepts multipart clinical inputs and always answers 200 with a
// generated or fallback prompt.
func (a *App) ModelPrompt(w http.ResponseWriter, r *http.Request) {
	log := a.log(r)
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes())
	if err := r.ParseMultipartForm(a.maxUploadBytes()); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			log.Warn().Err(err).Msg("prompt: multipart parse failed")
		}
		_ = r.ParseForm()
	}

	patientRaw := r.FormValue("patient")
	if strings.TrimSpace(patientRaw) == "" {
		patientRaw = "{}"
	}
	in := clinical.Input{
		BasePrompt: r.FormValue("base_prompt"),
		Patient:    domain.ParsePatientContext(patientRaw),
		EHRFiles:   a.attachments(r, "ehr_files"),
		CTScans:    a.attachments(r, "ct_scans"),
	}

	res := a.Prompts.Generate(detach(r), in)
	if res.Fallback() {
		log.Info().Str("reason", res.FallbackReason).Msg("prompt: fallback returned")
	}

	if caseID := strings.TrimSpace(r.FormValue("case_id")); caseID != "" && a.Cases != nil {
		if err := a.Cases.UpdatePrompt(detach(r), caseID, res.Prompt, fileMetas(in.EHRFiles), fileMetas(in.CTScans)); err != nil {
			log.Warn().Err(err).Str("case_id", caseID).Msg("prompt: record on case failed")
		}
	}

	a.json(w, http.StatusOK, promptResponse{GeneratedPrompt: res.Prompt})
}

// attachments reads every file under field; unreadable parts are skipped.
func (a *App) attachments(r *http.Request, field string) []domain.Attachment {
	if r.MultipartForm == nil {
		return nil
	}
	var headers []*multipart.FileHeader
	headers = append(headers, r.MultipartForm.File[field]...)
	headers = append(headers, r.MultipartForm.File[field+"[]"]...)

	out := make([]domain.Attachment, 0, len(headers))
	for _, fh := range headers {
		att, err := domain.AttachmentFromFileHeader(fh)
		if err != nil {
			a.log(r).Warn().Err(err).Str("field", field).Str("file", fh.Filename).Msg("prompt: attachment skipped")
			continue
		}
		out = append(out, att)
	}
	return out
}

func fileMetas(files []domain.Attachment) []domain.FileMeta {
	out := make([]domain.FileMeta, 0, len(files))
	for _, f := range files {
		out = append(out, f.Meta())
	}
	return out
}
