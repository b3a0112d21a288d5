package web

import (
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/hushlabs/consent-secretary/internal/backend"
	"github.com/hushlabs/consent-secretary/internal/config"
	"github.com/hushlabs/consent-secretary/internal/lifecycle"
	"github.com/hushlabs/consent-secretary/internal/session"
)

type Server struct {
	router      *mux.Router
	config      *config.Config
	backend     *backend.Client
	sessions    *session.Manager
	oauthConfig *oauth2.Config
	frontendFS  fs.FS

	trackersMu sync.Mutex
	trackers   map[string]*lifecycle.Tracker // keyed by user email
}

func NewServer(cfg *config.Config, bc *backend.Client, sessions *session.Manager, frontendFS fs.FS) *Server {
	var oauthConfig *oauth2.Config
	if cfg.GoogleEnabled() {
		oauthConfig = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"openid",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		}
	}

	s := &Server{
		router:      mux.NewRouter(),
		config:      cfg,
		backend:     bc,
		sessions:    sessions,
		oauthConfig: oauthConfig,
		frontendFS:  frontendFS,
		trackers:    make(map[string]*lifecycle.Tracker),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	// OAuth routes (server-side redirects, not JSON)
	s.router.HandleFunc("/auth/login", s.handleLogin).Methods("GET")
	s.router.HandleFunc("/auth/callback", s.handleCallback).Methods("GET")
	s.router.HandleFunc("/auth/logout", s.handleLogout).Methods("GET")

	// JSON API routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/signin", s.handleAPISignin).Methods("POST")
	api.HandleFunc("/auth/signup", s.handleAPISignup).Methods("POST")
	api.HandleFunc("/auth/details", s.requireAuthAPI(s.handleAPISignupDetails)).Methods("POST")
	api.HandleFunc("/auth/me", s.requireAuthAPI(s.handleAPIAuthMe)).Methods("GET")

	api.HandleFunc("/inbox", s.requireAuthAPI(s.handleAPIInbox)).Methods("GET")
	api.HandleFunc("/inbox/{id}/reply", s.requireAuthAPI(s.handleAPIGenerateReply)).Methods("POST")

	api.HandleFunc("/responses/pending", s.requireAuthAPI(s.handleAPIPendingResponses)).Methods("GET")
	api.HandleFunc("/responses/history", s.requireAuthAPI(s.handleAPIResponseHistory)).Methods("GET")
	api.HandleFunc("/responses/{id}/regenerate", s.requireAuthAPI(s.handleAPIRegenerate)).Methods("POST")
	api.HandleFunc("/responses/{id}/approve", s.requireAuthAPI(s.handleAPIApprove)).Methods("POST")
	api.HandleFunc("/responses/{id}/reject", s.requireAuthAPI(s.handleAPIReject)).Methods("POST")

	api.HandleFunc("/kb/consent", s.requireAuthAPI(s.handleAPIKBConsent)).Methods("POST")
	api.HandleFunc("/kb/consent", s.requireAuthAPI(s.handleAPIKBDecline)).Methods("DELETE")
	api.HandleFunc("/kb/files", s.requireAuthAPI(s.handleAPIKBFiles)).Methods("GET")
	api.HandleFunc("/kb/files", s.requireAuthAPI(s.handleAPIKBUpload)).Methods("POST")
	api.HandleFunc("/kb/files/{filename}", s.requireAuthAPI(s.handleAPIKBDelete)).Methods("DELETE")

	api.HandleFunc("/settings", s.requireAuthAPI(s.handleAPIGetSettings)).Methods("GET")
	api.HandleFunc("/settings", s.requireAuthAPI(s.handleAPIUpdateSettings)).Methods("PUT")
	api.HandleFunc("/settings/token-expiry", s.requireAuthAPI(s.handleAPITokenExpiry)).Methods("PUT")

	// Everything else is the SPA.
	spa := newSPAHandler(s.frontendFS)
	s.router.PathPrefix("/").Handler(spa)
}

// tracker returns the lifecycle tracker for one user, creating it on first
// use. Trackers are per-user so drafts of different users never share
// in-flight guards or collections.
func (s *Server) tracker(userEmail string) *lifecycle.Tracker {
	s.trackersMu.Lock()
	defer s.trackersMu.Unlock()

	t, ok := s.trackers[userEmail]
	if !ok {
		t = lifecycle.NewTracker(s.backend, userEmail)
		s.trackers[userEmail] = t
	}
	return t
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauthConfig == nil {
		http.Error(w, "Google sign-in is not configured", http.StatusNotImplemented)
		return
	}
	url := s.oauthConfig.AuthCodeURL("state", oauth2.AccessTypeOffline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauthConfig == nil {
		http.Error(w, "Google sign-in is not configured", http.StatusNotImplemented)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "No code in request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// Exchange code for token
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		log.Printf("Failed to exchange code for token: %v", err)
		http.Error(w, "Failed to authenticate", http.StatusInternalServerError)
		return
	}

	// Verify the Google identity before relaying it to the backend
	oauth2Service, err := googleoauth2.NewService(ctx, option.WithTokenSource(s.oauthConfig.TokenSource(ctx, token)))
	if err != nil {
		log.Printf("Failed to create OAuth2 service: %v", err)
		http.Error(w, "Failed to get user info", http.StatusInternalServerError)
		return
	}
	userInfo, err := oauth2Service.Userinfo.Get().Do()
	if err != nil {
		log.Printf("Failed to get user info: %v", err)
		http.Error(w, "Failed to get user info", http.StatusInternalServerError)
		return
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		log.Printf("Google token response had no id_token for %s", userInfo.Email)
		http.Error(w, "Failed to authenticate", http.StatusInternalServerError)
		return
	}

	// The backend mints the consent token; the expiry preference saved in
	// settings applies here, at the next login.
	result, err := s.backend.AuthGoogle(ctx, idToken, s.sessions.TokenExpiryHours(r))
	if err != nil {
		log.Printf("Backend rejected Google credential for %s: %v", userInfo.Email, err)
		http.Error(w, "Failed to authenticate", http.StatusInternalServerError)
		return
	}

	ident := session.Identity{Name: result.User.Name, Email: result.User.Email}
	if err := s.sessions.SignIn(w, r, ident, result.ConsentToken); err != nil {
		log.Printf("Failed to save session: %v", err)
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}
	log.Printf("Signed in: %s", result.User.Email)

	if !result.ProfileComplete() {
		http.Redirect(w, r, "/FormSignup", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.SignOut(w, r); err != nil {
		log.Printf("Failed to clear session: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.ServerHost, s.config.ServerPort)
	log.Printf("Web server starting on http://%s", addr)
	return http.ListenAndServe(addr, s.router)
}

// ServeHTTP makes the server usable as an http.Handler in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
