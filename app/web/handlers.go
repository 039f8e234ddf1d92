package web

import (
	"errors"
	"net/http"
	"slices"
	"strconv"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobcards/app/listing"
)

// textFields are the draft fields posted as plain values by the full form
var textFields = []string{
	listing.FieldLogoURL, listing.FieldCompanyName, listing.FieldPosition,
	listing.FieldTime, listing.FieldJobType, listing.FieldLocation,
}

// handleIndex renders the page with the form and all cards
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.render(w, "base.html", "base", s.view())
}

// handleDraftPartial returns the form partial bound to the current draft
func (s *Server) handleDraftPartial(w http.ResponseWriter, _ *http.Request) {
	s.render(w, "partials", "form", s.view())
}

// handleListingsPartial returns the cards partial
func (s *Server) handleListingsPartial(w http.ResponseWriter, _ *http.Request) {
	s.render(w, "partials", "cards", s.view())
}

// handleUpdateField sets a single draft field from the posted value of the same name.
// Unchecked checkbox posts nothing, which is the same as an empty value.
func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	field := r.PathValue("field")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	if err := s.form.UpdateField(field, r.PostFormValue(field)); err != nil {
		if errors.Is(err, listing.ErrUnknownField) {
			log.Printf("[WARN] rejected draft update: %v", err)
			http.Error(w, "Unknown field", http.StatusBadRequest)
			return
		}
		log.Printf("[ERROR] failed to update draft field %s: %v", field, err)
		http.Error(w, "Failed to update draft", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleToggleSkill adds or removes a skill of the draft
func (s *Server) handleToggleSkill(w http.ResponseWriter, r *http.Request) {
	skill := r.PathValue("skill")
	if skill == "" {
		http.Error(w, "Skill required", http.StatusBadRequest)
		return
	}
	s.form.ToggleSkill(skill)
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmit applies the posted form, if any, to the draft and submits it.
// Responds with the app partial for fetch requests and redirects to the page otherwise.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	s.applyForm(r)

	submitted, err := s.form.Submit()
	if err != nil {
		log.Printf("[ERROR] failed to store listing %q: %v", submitted.CompanyName, err)
		http.Error(w, "Failed to store listing", http.StatusInternalServerError)
		return
	}
	log.Printf("[INFO] listing added, company %q, position %q", submitted.CompanyName, submitted.Position)
	s.respondApp(w, r)
}

// handleDelete removes the card at the index from the path. Index out of range is ignored.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "Invalid listing index", http.StatusBadRequest)
		return
	}

	removed, err := s.listings.RemoveAt(index)
	if err != nil {
		log.Printf("[ERROR] failed to store listings after removing %d: %v", index, err)
		http.Error(w, "Failed to store listings", http.StatusInternalServerError)
		return
	}
	if removed {
		log.Printf("[INFO] listing %d removed", index)
	}
	s.respondApp(w, r)
}

// applyForm copies the fields of a full form post to the draft. Without the "form" marker
// nothing is applied, the draft is already up to date from field updates.
func (s *Server) applyForm(r *http.Request) {
	if r.PostFormValue("form") != "full" {
		return
	}

	draft, options := s.form.Draft(), s.currentOptions()
	placeholders := map[string]string{
		listing.FieldTime:     options.Time[0],
		listing.FieldJobType:  options.JobType[0],
		listing.FieldLocation: options.Location[0],
	}
	for _, field := range textFields {
		if _, ok := r.PostForm[field]; !ok {
			continue
		}
		value := r.PostFormValue(field)
		// untouched select posts its placeholder, the draft keeps blank value then
		if ph, ok := placeholders[field]; ok && value == ph && draft.Field(field) == "" {
			continue
		}
		if err := s.form.UpdateField(field, value); err != nil {
			log.Printf("[WARN] failed to apply field %s: %v", field, err)
		}
	}

	// checkboxes are posted only when checked
	for _, flag := range []string{listing.FieldIsNew, listing.FieldIsFeatured} {
		if err := s.form.UpdateField(flag, r.PostFormValue(flag)); err != nil {
			log.Printf("[WARN] failed to apply flag %s: %v", flag, err)
		}
	}

	// make draft skills match the posted ones, keeping toggle order for the new
	posted := r.PostForm[listing.FieldSkills]
	for _, skill := range s.form.Draft().Skills {
		if !slices.Contains(posted, skill) {
			s.form.ToggleSkill(skill)
		}
	}
	for _, skill := range posted {
		if !s.form.Draft().HasSkill(skill) {
			s.form.ToggleSkill(skill)
		}
	}
}

// respondApp writes the app partial (form and cards) for fetch requests, redirects to the page otherwise
func (s *Server) respondApp(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") != "true" {
		http.Redirect(w, r, s.url("/"), http.StatusSeeOther)
		return
	}
	s.render(w, "partials", "app", s.view())
}
