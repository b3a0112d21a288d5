package web

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hushlabs/consent-secretary/internal/backend"
	"github.com/hushlabs/consent-secretary/internal/lifecycle"
	"github.com/hushlabs/consent-secretary/internal/session"
)

// POST /api/v1/auth/signin
func (s *Server) handleAPISignin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if body.Email == "" || body.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	result, err := s.backend.SigninEmail(r.Context(), body.Email, body.Password, s.sessions.TokenExpiryHours(r))
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			respondError(w, http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		log.Printf("API: Sign-in failed for %s: %v", body.Email, err)
		respondError(w, http.StatusBadGateway, "Login failed. Please try again.")
		return
	}

	ident := session.Identity{Name: result.User.Name, Email: result.User.Email}
	if err := s.sessions.SignIn(w, r, ident, result.ConsentToken); err != nil {
		log.Printf("API: Failed to save session: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to save session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user":             result.User,
		"profile_complete": result.ProfileComplete(),
	})
}

// POST /api/v1/auth/signup
func (s *Server) handleAPISignup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if body.Name == "" || body.Email == "" || body.Password == "" {
		respondError(w, http.StatusBadRequest, "Name, email and password are required")
		return
	}

	if err := s.backend.SignupEmail(r.Context(), body.Name, body.Email, body.Password); err != nil {
		log.Printf("API: Sign-up failed for %s: %v", body.Email, err)
		respondLifecycleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

// POST /api/v1/auth/details
func (s *Server) handleAPISignupDetails(w http.ResponseWriter, r *http.Request) {
	ident, _ := s.sessions.Current(r)

	var body struct {
		Name     string `json:"name"`
		LinkedIn string `json:"linkedin"`
		GitHub   string `json:"github"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if body.Name == "" || body.LinkedIn == "" || body.GitHub == "" {
		respondError(w, http.StatusBadRequest, "Name, LinkedIn and GitHub are required")
		return
	}

	details := backend.ProfileDetails{
		Name:     body.Name,
		LinkedIn: body.LinkedIn,
		GitHub:   body.GitHub,
		Gmail:    ident.Email,
	}
	if err := s.backend.SignupDetails(r.Context(), details); err != nil {
		log.Printf("API: Failed to save details for %s: %v", ident.Email, err)
		respondLifecycleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// GET /api/v1/auth/me
func (s *Server) handleAPIAuthMe(w http.ResponseWriter, r *http.Request) {
	ident, _ := s.sessions.Current(r)
	_, consentErr := s.sessions.ConsentToken(r)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":               ident.Name,
		"email":              ident.Email,
		"has_consent":        consentErr == nil,
		"kb_consented":       s.sessions.KBToken(r) != "",
		"token_expiry_hours": s.sessions.TokenExpiryHours(r),
	})
}

// inboxEntry is one summarized unread email decorated for the UI: the
// derived id correlates per-item actions until a response id exists, and
// can_reply suppresses the generate control for no-reply intents.
type inboxEntry struct {
	backend.InboxItem
	DerivedID  string `json:"derived_id"`
	CanReply   bool   `json:"can_reply"`
	Generating bool   `json:"generating"`
}

// GET /api/v1/inbox
func (s *Server) handleAPIInbox(w http.ResponseWriter, r *http.Request) {
	ident, _ := s.sessions.Current(r)

	// Inbox reads are consent-gated like generation: refuse locally before
	// any network call when no token is stored.
	if _, err := s.sessions.ConsentToken(r); err != nil {
		respondLifecycleError(w, err)
		return
	}

	items, err := s.backend.Summarize(r.Context())
	if err != nil {
		log.Printf("API: Failed to summarize inbox for %s: %v", ident.Email, err)
		respondLifecycleError(w, err)
		return
	}

	t := s.tracker(ident.Email)
	entries := make([]inboxEntry, 0, len(items))
	for _, item := range items {
		id := lifecycle.DeriveID(item.Subject, item.Sender)
		entries = append(entries, inboxEntry{
			InboxItem:  item,
			DerivedID:  id,
			CanReply:   lifecycle.CanReply(item.Intent),
			Generating: t.IsGenerating(id),
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"emails": entries})
}

// POST /api/v1/inbox/{id}/reply
func (s *Server) handleAPIGenerateReply(w http.ResponseWriter, r *http.Request) {
	ident, _ := s.sessions.Current(r)

	var body struct {
		Subject        string `json:"subject"`
		Sender         string `json:"sender"`
		Summary        string `json:"summary"`
		Intent         string `json:"intent"`
		GmailMessageID string `json:"gmail_message_id"`
		GmailThreadID  string `json:"gmail_thread_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !lifecycle.CanReply(body.Intent) {
		respondError(w, http.StatusBadRequest, "No reply is offered for this email")
		return
	}

	// Consent is checked before anything goes over the wire.
	consentToken, err := s.sessions.ConsentToken(r)
	if err != nil {
		respondLifecycleError(w, err)
		return
	}

	item := backend.InboxItem{
		Subject:   body.Subject,
		Sender:    body.Sender,
		Summary:   body.Summary,
		Intent:    body.Intent,
		MessageID: body.GmailMessageID,
		ThreadID:  body.GmailThreadID,
	}
	result, err := s.tracker(ident.Email).Generate(r.Context(), item, consentToken, s.sessions.KBToken(r))
	if err != nil {
		log.Printf("API: Failed to generate reply for %s: %v", ident.Email, err)
		respondLifecycleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// POST /api/v1/responses/{id}/regenerate (multipart)
func (s *Server) handleAPIRegenerate(w http.ResponseWriter, r *http.Request) {
	ident, _ := s.sessions.Current(r)
	responseID := mux.Vars(r)["id"]

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	suggestion := r.FormValue("user_suggestion")

	var upload *backend.FileUpload
	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		content, readErr := io.ReadAll(file)
		if readErr != nil {
			respondError(w, http.StatusBadRequest, "Failed to read attached file")
			return
		}
		upload = &backend.FileUpload{Filename: header.Filename, Content: content}
	} else if !errors.Is(err, http.ErrMissingFile) {
		respondError(w, http.StatusBadRequest, "Invalid file upload")
		return
	}

	result, err := s.tracker(ident.Email).Regenerate(r.Context(), responseID, suggestion, upload, s.sessions.KBToken(r))
	if err != nil {
		log.Printf("API: Failed to regenerate %s for %s: %v", responseID, ident.Email, err)
		respondLifecycleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// POST /api/v1/responses/{id}/approve
func (s *Server) handleAPIApprove(w http.ResponseWriter, r *http.Request) {
	ident, _ := s.sessions.Current(r)
	responseID := mux.Vars(r)["id"]

	var sendAttachment *bool
	if r.Body != nil && r.ContentLength != 0 {
		var body struct {
			SendAttachment *bool `json:"send_attachment"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		sendAttachment = body.SendAttachment
	}

	result, err := s.tracker(ident.Email).Approve(r.Context(), responseID, sendAttachment)
	if err != nil {
		log.Printf("API: Failed to approve %s for %s: %v", responseID, ident.Email, err)
		respondLifecycleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  lifecycle.StatusApproved,
		"message": result.Message,
	})
}

// POST /api/v1/responses/{id}/reject
func (s *Server) handleAPIReject(w http.ResponseWriter, r *http.Request) {
	ident, _ := s.sessions.Current(r)
	responseID := mux.Vars(r)["id"]

	result, err := s.tracker(ident.Email).Reject(r.Context(), responseID)
	if err != nil {
		log.Printf("API: Failed to reject %s for %s: %v", responseID, ident.Email, err)
		respondLifecycleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  lifecycle.StatusRejected,
		"message": result.Message,
	})
}

// GET /api/v1/responses/pending
func (s *Server) handleAPIPendingResponses(w http.ResponseWriter, r *http.Request) {
	ident, _ := s.sessions.Current(r)

	list, err := s.tracker(ident.Email).RefreshPending(r.Context())
	if err != nil {
		log.Printf("API: Failed to load pending responses for %s: %v", ident.Email, err)
		respondLifecycleError(w, err)
		return
	}
	if list == nil {
		list = []backend.DraftResponse{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"pending_responses": list})
}

// GET /api/v1/responses/history
func (s *Server) handleAPIResponseHistory(w http.ResponseWriter, r *http.Request) {
	ident, _ := s.sessions.Current(r)

	list, err := s.tracker(ident.Email).RefreshHistory(r.Context())
	if err != nil {
		log.Printf("API: Failed to load response history for %s: %v", ident.Email, err)
		respondLifecycleError(w, err)
		return
	}
	if list == nil {
		list = []backend.DraftResponse{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"response_history": list})
}

// POST /api/v1/kb/consent
func (s *Server) handleAPIKBConsent(w http.ResponseWriter, r *http.Request) {
	ident, _ := s.sessions.Current(r)

	token, err := s.backend.GenerateKBToken(r.Context(), ident.Email)
	if err != nil {
		log.Printf("API: Failed to generate KB token for %s: %v", ident.Email, err)
		respondLifecycleError(w, err)
		return
	}
	if err := s.sessions.SetKBToken(w, r, token); err != nil {
		log.Printf("API: Failed to store KB token: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to store knowledge base token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"kb_consent_token": token})
}

// DELETE /api/v1/kb/consent
func (s *Server) handleAPIKBDecline(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.ClearKBToken(w, r); err != nil {
		log.Printf("API: Failed to clear KB token: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to clear knowledge base token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}

// GET /api/v1/kb/files
func (s *Server) handleAPIKBFiles(w http.ResponseWriter, r *http.Request) {
	ident, _ := s.sessions.Current(r)

	files, err := s.backend.KBFiles(r.Context(), ident.Email)
	if err != nil {
		log.Printf("API: Failed to list KB files for %s: %v", ident.Email, err)
		respondLifecycleError(w, err)
		return
	}
	if files == nil {
		files = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}

// POST /api/v1/kb/files (multipart)
func (s *Server) handleAPIKBUpload(w http.ResponseWriter, r *http.Request) {
	ident, _ := s.sessions.Current(r)

	if err := r.ParseMultipartForm(25 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Please select a file to upload.")
		return
	}
	defer file.Close()

	message, err := s.backend.UploadKBFile(r.Context(), ident.Email, header.Filename, file)
	if err != nil {
		log.Printf("API: Failed to upload KB file for %s: %v", ident.Email, err)
		respondLifecycleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

// DELETE /api/v1/kb/files/{filename}
func (s *Server) handleAPIKBDelete(w http.ResponseWriter, r *http.Request) {
	ident, _ := s.sessions.Current(r)
	filename := mux.Vars(r)["filename"]

	message, err := s.backend.DeleteKBFile(r.Context(), ident.Email, filename)
	if err != nil {
		log.Printf("API: Failed to delete KB file %q for %s: %v", filename, ident.Email, err)
		respondLifecycleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

// GET /api/v1/settings
func (s *Server) handleAPIGetSettings(w http.ResponseWriter, r *http.Request) {
	ident, _ := s.sessions.Current(r)

	details, err := s.backend.UserDetails(r.Context(), ident.Email)
	if err != nil {
		log.Printf("API: Failed to fetch user details for %s: %v", ident.Email, err)
		respondLifecycleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":               details.Name,
		"linkedin":           details.LinkedIn,
		"github":             details.GitHub,
		"token_expiry_hours": s.sessions.TokenExpiryHours(r),
	})
}

// PUT /api/v1/settings
func (s *Server) handleAPIUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ident, _ := s.sessions.Current(r)

	var body struct {
		Name     string `json:"name"`
		LinkedIn string `json:"linkedin"`
		GitHub   string `json:"github"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if body.Name == "" {
		respondError(w, http.StatusBadRequest, "Name is required")
		return
	}

	details := backend.ProfileDetails{
		Name:     body.Name,
		LinkedIn: body.LinkedIn,
		GitHub:   body.GitHub,
		Gmail:    ident.Email,
	}
	message, err := s.backend.UpdateSettings(r.Context(), details)
	if err != nil {
		log.Printf("API: Failed to update settings for %s: %v", ident.Email, err)
		respondLifecycleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

// PUT /api/v1/settings/token-expiry
func (s *Server) handleAPITokenExpiry(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Hours int `json:"hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if body.Hours <= 0 {
		respondError(w, http.StatusBadRequest, "Hours must be positive")
		return
	}

	if err := s.sessions.SetTokenExpiryHours(w, r, body.Hours); err != nil {
		log.Printf("API: Failed to save token expiry preference: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to save preference")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"hours":   body.Hours,
		"message": "Token expiry preference saved. It applies at your next login.",
	})
}
