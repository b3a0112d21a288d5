package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hushlabs/consent-secretary/internal/backend"
)

var rootCmd = &cobra.Command{
	Use:   "hushctl",
	Short: "Consent Secretary terminal client",
	Long:  "Sign in, read AI inbox summaries, and manage drafted replies from the command line",
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("backend_url", "http://localhost:8000", "Consent secretary backend base URL")
	rootCmd.PersistentFlags().String("session_file", "", "Path of the saved session (default ~/.config/hushctl/session.json)")

	viper.BindPFlag("backend_url", rootCmd.PersistentFlags().Lookup("backend_url"))
	viper.BindPFlag("session_file", rootCmd.PersistentFlags().Lookup("session_file"))
}

func initConfig() {
	viper.SetConfigName(".hushctl")
	viper.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("hushctl")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newBackendClient() *backend.Client {
	return backend.NewClient(viper.GetString("backend_url"))
}

// Session is the signed-in state persisted between invocations. It is the
// terminal counterpart of the web app's durable session cookie.
type Session struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	ConsentToken string `json:"consent_token"`
}

func sessionPath() (string, error) {
	if p := viper.GetString("session_file"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "hushctl", "session.json"), nil
}

// saveSession writes the session to disk, creating the directory as needed.
func saveSession(s *Session) error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return nil
}

// loadSession reads the saved session, or errors when the user has not
// signed in on this machine.
func loadSession() (*Session, error) {
	path, err := sessionPath()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("not signed in (run 'hushctl signin'): %w", err)
	}
	defer f.Close()

	s := &Session{}
	if err := json.NewDecoder(f).Decode(s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return s, nil
}

func clearSession() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
