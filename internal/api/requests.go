package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Casting/internal/casting"
	"github.com/MikeSquared-Agency/Casting/internal/store"
)

func (s *Server) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var form casting.RequestForm
	if !decodeJSON(w, r, &form) {
		return
	}
	res, err := s.casting.Submit(r.Context(), caller(r).UserID, form)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) MyRequests(w http.ResponseWriter, r *http.Request) {
	list, err := s.casting.Mine(r.Context(), caller(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) RequestStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.casting.Stats(r.Context(), caller(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) AdminListRequests(w http.ResponseWriter, r *http.Request) {
	status := store.RequestStatus(r.URL.Query().Get("status"))
	list, err := s.casting.List(r.Context(), status, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type statusRequest struct {
	Status store.RequestStatus `json:"status"`
}

func (s *Server) AdminUpdateRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := s.casting.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
