package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Casting/internal/store"
)

func (s *Server) PendingDancers(w http.ResponseWriter, r *http.Request) {
	list, err := s.accounts.PendingDancers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) ImportDancer(w http.ResponseWriter, r *http.Request) {
	var d store.Dancer
	if !decodeJSON(w, r, &d) {
		return
	}
	saved, err := s.accounts.ImportDancer(r.Context(), &d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

type reviewRequest struct {
	Action string `json:"action"` // approve, reject
}

func (s *Server) ReviewDancer(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Action != "approve" && req.Action != "reject" {
		writeError(w, http.StatusBadRequest, "action must be approve or reject")
		return
	}
	d, err := s.accounts.ReviewDancer(r.Context(), id, req.Action == "approve")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
