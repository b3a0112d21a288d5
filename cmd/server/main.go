package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/hushlabs/consent-secretary/internal/backend"
	"github.com/hushlabs/consent-secretary/internal/config"
	"github.com/hushlabs/consent-secretary/internal/session"
	"github.com/hushlabs/consent-secretary/internal/web"
)

func main() {
	log.Println("Starting Consent Secretary front end...")

	// Load .env if present; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if _, err := os.Stat(cfg.FrontendDir); err != nil {
		log.Fatalf("Frontend assets not found at %s: %v", cfg.FrontendDir, err)
	}

	backendClient := backend.NewClient(cfg.BackendBaseURL)
	log.Printf("✓ Backend client targeting %s", cfg.BackendBaseURL)

	secure := cfg.SessionSecret != config.DefaultSessionSecret
	if !secure {
		log.Printf("Warning: SESSION_SECRET is the development default; cookies are not marked Secure")
	}
	sessions := session.NewManager(cfg.SessionSecret, secure)
	log.Printf("✓ Session stores initialized")

	if cfg.GoogleEnabled() {
		log.Printf("✓ Google sign-in enabled (redirect %s)", cfg.GoogleRedirectURL)
	} else {
		log.Printf("Google sign-in disabled (GOOGLE_CLIENT_ID not set); email sign-in only")
	}

	server := web.NewServer(cfg, backendClient, sessions, os.DirFS(cfg.FrontendDir))

	if err := server.Start(); err != nil {
		log.Fatalf("Server stopped with error: %v", err)
	}
}
