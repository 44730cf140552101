package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"brainsim/internal/domain"
	"brainsim/internal/domain/jsoncfg"
	"brainsim/internal/providers/video"
)

// StaticVideoPrefix is the URL path saved clips are served under.
const StaticVideoPrefix = "/static/videos/"

type videoRequest struct {
	ImageURL  string              `json:"image_url"`
	Prompt    jsoncfg.PromptField `json:"prompt"`
	TimePoint string              `json:"time_point"`
	Seconds   jsoncfg.FlexInt     `json:"seconds"`
	CaseID    string              `json:"case_id"`
}

type videoResponse struct {
	VideoURL string `json:"video_url"`
}

// ModelGenerateVideo runs one Veo generation and returns the public URL of the
// saved clip. A missing credential is a 500; any other failure is reported in
// a 200 body.
func (a *App) ModelGenerateVideo(w http.ResponseWriter, r *http.Request) {
	log := a.log(r)
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxUploadBytes()))
	var req videoRequest
	jsoncfg.DecodeLenient(body, &req)

	res, err := a.Videos.Generate(detach(r), video.Request{
		Prompt:    req.Prompt.ResolveOne(req.TimePoint),
		ImageURL:  req.ImageURL,
		Timepoint: req.TimePoint,
		Seconds:   req.Seconds.Or(video.DefaultSeconds),
	})
	if err != nil {
		if errors.Is(err, domain.ErrMissingCredential) {
			a.error(w, http.StatusInternalServerError, err.Error())
			return
		}
		log.Error().Err(err).Msg("video: generation failed")
		a.json(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}

	url := publicURL(r, StaticVideoPrefix+res.Filename)
	if caseID := strings.TrimSpace(req.CaseID); caseID != "" && a.Cases != nil {
		if err := a.Cases.UpdateVideo(detach(r), caseID, url); err != nil {
			log.Warn().Err(err).Str("case_id", caseID).Msg("video: record on case failed")
		}
	}
	a.json(w, http.StatusOK, videoResponse{VideoURL: url})
}

// publicURL joins the request's scheme and host with path.
func publicURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Proto"), ",")[0]); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host + path
}
