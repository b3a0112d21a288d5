package config

import "os"

// DefaultSessionSecret is only acceptable for local development; cookies are
// marked Secure as soon as a real secret is configured.
const DefaultSessionSecret = "dev-session-secret"

type Config struct {
	// Server settings
	ServerPort string
	ServerHost string

	// External backend (the consent secretary service)
	BackendBaseURL string

	// Cookie session settings
	SessionSecret string

	// Google OAuth settings (optional: email sign-in works without them)
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Directory with the built SPA assets
	FrontendDir string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:         getEnv("SERVER_PORT", "3000"),
		ServerHost:         getEnv("SERVER_HOST", "localhost"),
		BackendBaseURL:     getEnv("BACKEND_BASE_URL", "http://localhost:8000"),
		SessionSecret:      getEnv("SESSION_SECRET", DefaultSessionSecret),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:3000/auth/callback"),
		FrontendDir:        getEnv("FRONTEND_DIR", "./web/dist"),
	}

	return cfg, nil
}

// GoogleEnabled reports whether the server-side Google sign-in flow is
// configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
