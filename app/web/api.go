package web

import (
	"encoding/json"
	"net/http"

	log "github.com/go-pkgz/lgr"
)

// handleAPIListings returns all listings as JSON array, same layout as the persisted value
func (s *Server) handleAPIListings(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.listings.List())
}

// handleAPIDraft returns the current draft as JSON
func (s *Server) handleAPIDraft(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.form.Draft())
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[WARN] failed to encode JSON response: %v", err)
	}
}
