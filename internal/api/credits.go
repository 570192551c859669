package api

import "net/http"

func (s *Server) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.credits.Balance(r.Context(), caller(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"credits": balance})
}

type purchaseRequest struct {
	PackageID string `json:"package_id"`
}

func (s *Server) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.credits.Purchase(r.Context(), caller(r).UserID, req.PackageID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) Unlock(w http.ResponseWriter, r *http.Request) {
	dancerID, ok := uuidParam(w, r, "dancerID")
	if !ok {
		return
	}
	res, err := s.credits.Unlock(r.Context(), caller(r).UserID, dancerID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) Unlocked(w http.ResponseWriter, r *http.Request) {
	list, err := s.credits.Unlocked(r.Context(), caller(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) PurchaseHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.credits.History(r.Context(), caller(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
