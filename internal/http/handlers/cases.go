package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"brainsim/internal/cases"
	"brainsim/internal/domain"
)

func (a *App) CasesCreate(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxUploadBytes()))
	var in cases.NewCase
	cases.DecodeNewCase(body, &in)

	c, err := a.Cases.Create(r.Context(), in)
	if err != nil {
		a.log(r).Error().Err(err).Msg("cases: create failed")
		a.error(w, http.StatusInternalServerError, "failed to create case")
		return
	}
	a.json(w, http.StatusCreated, c)
}

func (a *App) CasesList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := a.Cases.List(r.Context(), limit)
	if err != nil {
		a.log(r).Error().Err(err).Msg("cases: list failed")
		a.error(w, http.StatusInternalServerError, "failed to list cases")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"cases": list})
}

func (a *App) CasesGet(w http.ResponseWriter, r *http.Request) {
	c, err := a.Cases.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "case not found")
		return
	}
	if err != nil {
		a.log(r).Error().Err(err).Msg("cases: get failed")
		a.error(w, http.StatusInternalServerError, "failed to load case")
		return
	}
	a.json(w, http.StatusOK, c)
}
