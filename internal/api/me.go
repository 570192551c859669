package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Casting/internal/accounts"
	"github.com/MikeSquared-Agency/Casting/internal/storage"
)

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var in accounts.RegisterInput
	if !decodeJSON(w, r, &in) {
		return
	}
	id := caller(r)
	u, err := s.accounts.Register(r.Context(), id.UserID, id.Email, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":      u,
		"dashboard": accounts.Dashboard(u.Role),
	})
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	p, err := s.accounts.Me(r.Context(), caller(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) UpsertClientProfile(w http.ResponseWriter, r *http.Request) {
	var in accounts.ClientProfileInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.accounts.UpsertClientProfile(r.Context(), caller(r).UserID, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) SubmitDancerProfile(w http.ResponseWriter, r *http.Request) {
	var in accounts.DancerProfileInput
	if !decodeJSON(w, r, &in) {
		return
	}
	d, err := s.accounts.SubmitDancer(r.Context(), caller(r).UserID, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) PresignUpload(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		s.fail(w, r, storage.ErrNotConfigured)
		return
	}
	var req storage.PresignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.uploads.Presign(r.Context(), caller(r).UserID, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
