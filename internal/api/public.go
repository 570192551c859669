package api

import (
	"io"
	"net/http"
	"strings"
)

const maxWebhookBytes = 64 << 10

type promptRequest struct {
	Prompt string `json:"prompt"`
	TopN   int    `json:"topN,omitempty"`
}

func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.casting.Analyze(r.Context(), req.Prompt)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"result":  res.Analysis,
		"raw":     res.Raw,
		"source":  res.Source,
	})
}

func (s *Server) Match(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.casting.Match(r.Context(), req.Prompt, req.TopN)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) ListDancers(w http.ResponseWriter, r *http.Request) {
	genre := strings.TrimSpace(r.URL.Query().Get("genre"))
	list, err := s.accounts.ListDancers(r.Context(), genre, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) FeaturedDancers(w http.ResponseWriter, r *http.Request) {
	list, err := s.accounts.Featured(r.Context(), queryInt(r, "limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) GetDancer(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	d, err := s.accounts.GetDancer(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) Packages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.credits.Packages())
}

func (s *Server) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := s.credits.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
