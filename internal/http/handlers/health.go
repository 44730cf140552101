package handlers

import (
	"errors"
	"net/http"

	"brainsim/internal/domain"
)

type healthResponse struct {
	Status             string   `json:"status"`
	Cases              bool     `json:"cases"`
	MissingCredentials []string `json:"missing_credentials"`
}

// Health always answers ok; missing keys are listed so a deploy can be
// checked without calling a paid endpoint.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	missing := []string{}
	for _, c := range a.Credentials {
		var mc *domain.MissingCredentialError
		if err := c.CheckCredentials(); errors.As(err, &mc) {
			missing = append(missing, mc.Name)
		}
	}
	a.json(w, http.StatusOK, healthResponse{
		Status:             "ok",
		Cases:              a.Cases != nil,
		MissingCredentials: missing,
	})
}
