// Package web implements the web UI of jobcards: the listing form and the cards list
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/jobcards/app/listing"
)

//go:embed templates/*.html templates/partials/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// DraftEditor is the form state, implemented by listing.Form
type DraftEditor interface {
	Draft() listing.JobListing
	UpdateField(name, value string) error
	ToggleSkill(skill string) listing.JobListing
	Submit() (listing.JobListing, error)
}

// Listings is the collection of submitted listings, implemented by listing.Store
type Listings interface {
	List() []listing.JobListing
	RemoveAt(index int) (bool, error)
}

// Server represents the web server
type Server struct {
	form           DraftEditor
	listings       Listings
	optionsMu      sync.RWMutex
	options        listing.Options
	templates      map[string]*template.Template
	baseURL        string // base URL path for reverse proxy (e.g., /jobs), empty for root
	version        string
	mutationLimit  float64                     // max mutation requests per second per client, 0 disables
	csrfProtection *http.CrossOriginProtection // csrf protection for POST endpoints
}

// Config holds server configuration
type Config struct {
	Form          DraftEditor
	Listings      Listings
	Options       listing.Options // selectable values, DefaultOptions if empty
	BaseURL       string          // base URL path for reverse proxy, empty for root
	Version       string
	MutationLimit float64 // max submit/delete requests per second per client, 0 disables limiting
}

// TemplateData holds data for templates
type TemplateData struct {
	Draft       listing.JobListing
	Listings    []listing.JobListing
	Options     listing.Options
	BaseURL     string
	Version     string
	CurrentYear int
}

// New creates a new web server
func New(cfg Config) (*Server, error) {
	if cfg.Form == nil {
		return nil, errors.New("web server initialization failed: Form is required")
	}
	if cfg.Listings == nil {
		return nil, errors.New("web server initialization failed: Listings is required")
	}

	opts := cfg.Options
	if len(opts.Time) == 0 && len(opts.JobType) == 0 && len(opts.Location) == 0 && len(opts.Skills) == 0 {
		opts = listing.DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("web server initialization failed: %w", err)
	}

	s := &Server{
		form:           cfg.Form,
		listings:       cfg.Listings,
		options:        opts,
		baseURL:        cfg.BaseURL,
		version:        cfg.Version,
		mutationLimit:  cfg.MutationLimit,
		csrfProtection: http.NewCrossOriginProtection(),
	}

	templates, err := s.parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("web server initialization failed: failed to parse HTML templates: %w", err)
	}
	s.templates = templates
	return s, nil
}

// Run starts the web server, blocks until ctx canceled
func (s *Server) Run(ctx context.Context, address string) error {
	server := &http.Server{
		Addr:              address,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		}
	}()

	log.Printf("[INFO] starting web server on %s", address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// handler returns the http.Handler with base URL wrapping applied
func (s *Server) handler() http.Handler {
	routes := s.routes()
	if s.baseURL == "" {
		return routes
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.baseURL, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.baseURL+"/", http.StatusMovedPermanently)
	})
	mux.Handle(s.baseURL+"/", http.StripPrefix(s.baseURL, routes))
	return mux
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("jobcards", "umputun", s.version),
		rest.Ping,
		rest.SizeLimit(64*1024), // 64KB max request size
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	router.HandleFunc("GET /{$}", s.handleIndex)

	// html partials and form actions
	router.Mount("/api").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.Use(s.csrfProtection.Handler)

		api.HandleFunc("GET /draft", s.handleDraftPartial)
		api.HandleFunc("POST /draft/skills/{skill}", s.handleToggleSkill)
		api.HandleFunc("POST /draft/{field}", s.handleUpdateField)
		api.HandleFunc("GET /listings", s.handleListingsPartial)

		mutations := api.With(s.limiter())
		mutations.HandleFunc("POST /listings", s.handleSubmit)
		mutations.HandleFunc("POST /listings/{index}/delete", s.handleDelete)
		mutations.HandleFunc("DELETE /listings/{index}", s.handleDelete)
	})

	// JSON API for programmatic access
	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.HandleFunc("GET /listings", s.handleAPIListings)
		api.HandleFunc("GET /draft", s.handleAPIDraft)
	})

	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Printf("[ERROR] failed to create static file system: %v", err)
		router.Handle("GET /static/", http.FileServer(http.FS(staticFS)))
	} else {
		router.HandleFiles("/static/", http.FS(fsys))
	}

	return router
}

// limiter returns the rate limiting middleware for submit and delete, pass-through if disabled
func (s *Server) limiter() func(http.Handler) http.Handler {
	if s.mutationLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	lmt := tollbooth.NewLimiter(s.mutationLimit, nil)
	lmt.SetIPLookup(limiter.IPLookup{Name: "RemoteAddr"})
	return tollbooth.HTTPMiddleware(lmt)
}

// SetOptions replaces selectable values, used on options file reload
func (s *Server) SetOptions(opts listing.Options) error {
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	s.optionsMu.Lock()
	s.options = opts
	s.optionsMu.Unlock()
	log.Printf("[INFO] options updated, %d skills", len(opts.Skills))
	return nil
}

// currentOptions returns selectable values in effect
func (s *Server) currentOptions() listing.Options {
	s.optionsMu.RLock()
	defer s.optionsMu.RUnlock()
	return s.options
}

// view makes template data from the current draft and listings, the page is a pure function of it
func (s *Server) view() TemplateData {
	return TemplateData{
		Draft:       s.form.Draft(),
		Listings:    s.listings.List(),
		Options:     s.currentOptions(),
		BaseURL:     s.baseURL,
		Version:     s.version,
		CurrentYear: time.Now().Year(),
	}
}

// render renders a template
func (s *Server) render(w http.ResponseWriter, page, tmplName string, data any) {
	tmpl, ok := s.templates[page]
	if !ok {
		log.Printf("[WARN] template %s not found", page)
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, tmplName, data); err != nil {
		log.Printf("[WARN] failed to execute template: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[WARN] failed to write response: %v", err)
	}
}

// parseTemplates parses all templates
func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)

	funcMap := template.FuncMap{
		"url":      s.url,
		"selected": selected,
		"initial":  initial,
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templatesFS,
		"templates/base.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}
	templates["base.html"] = base

	// partials separately for fetch requests
	partials, err := template.New("app.html").Funcs(funcMap).ParseFS(templatesFS, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse partials: %w", err)
	}
	templates["partials"] = partials

	return templates, nil
}

// template helper functions

// selected reports if option at idx should be marked selected for the value.
// Blank value selects the first option, the placeholder.
func selected(value, option string, idx int) bool {
	if value == "" {
		return idx == 0
	}
	return value == option
}

// initial returns the first letter of the company name used when no logo set
func initial(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(name)[:1]))
}

// url prepends the base URL to a path for reverse proxy support
func (s *Server) url(path string) string {
	return s.baseURL + path
}
