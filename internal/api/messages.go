package api

import (
	"net/http"

	"github.com/google/uuid"
)

type sendRequest struct {
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
}

func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ReceiverID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "receiver_id is required")
		return
	}
	m, err := s.chat.Send(r.Context(), caller(r).UserID, req.ReceiverID, req.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) Conversations(w http.ResponseWriter, r *http.Request) {
	list, err := s.chat.Conversations(r.Context(), caller(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.chat.Unread(r.Context(), caller(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": n})
}

func (s *Server) MessageHistory(w http.ResponseWriter, r *http.Request) {
	partnerID, ok := uuidParam(w, r, "partnerID")
	if !ok {
		return
	}
	msgs, err := s.chat.History(r.Context(), caller(r).UserID, partnerID, queryInt(r, "limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) MarkMessageRead(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := s.chat.MarkRead(r.Context(), caller(r).UserID, id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"read": true})
}

func (s *Server) MessageStream(w http.ResponseWriter, r *http.Request) {
	s.ws.Serve(w, r, caller(r).UserID)
}
