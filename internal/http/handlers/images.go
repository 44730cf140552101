package handlers

import (
	"io"
	"net/http"
	"strings"

	"brainsim/internal/domain"
	"brainsim/internal/domain/jsoncfg"
	"brainsim/internal/providers/image"
)

type imagesRequest struct {
	Prompt     jsoncfg.PromptField   `json:"prompt"`
	Timepoints jsoncfg.TimepointList `json:"timepoints"`
	CaseID     string                `json:"case_id"`
}

type imagesResponse struct {
	Images map[string]*string `json:"images"`
}

// ModelGenerateImages runs one Flux job per timepoint. Failed timepoints map to
// null; only a missing credential fails the whole request.
func (a *App) ModelGenerateImages(w http.ResponseWriter, r *http.Request) {
	log := a.log(r)
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxUploadBytes()))
	var req imagesRequest
	if !jsoncfg.DecodeLenient(body, &req) {
		log.Debug().Msg("images: body not a JSON object, using defaults")
	}

	if err := a.Images.CheckCredentials(); err != nil {
		a.error(w, http.StatusInternalServerError, err.Error())
		return
	}

	labels := domain.NormalizeTimepoints(req.Timepoints)
	log.Info().
		Str("shape", req.Prompt.Shape().String()).
		Strs("timepoints", labels).
		Msg("images: generation requested")

	outcomes := a.Images.Generate(detach(r), req.Prompt, labels)
	images := image.Mapping(outcomes)

	if caseID := strings.TrimSpace(req.CaseID); caseID != "" && a.Cases != nil {
		ready := make(map[string]*string, len(images))
		for _, o := range outcomes {
			if o.OK() {
				ready[o.Timepoint] = images[o.Timepoint]
			}
		}
		if len(ready) > 0 {
			if err := a.Cases.MergeImages(detach(r), caseID, ready); err != nil {
				log.Warn().Err(err).Str("case_id", caseID).Msg("images: record on case failed")
			}
		}
	}

	a.json(w, http.StatusOK, imagesResponse{Images: images})
}
