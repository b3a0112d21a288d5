package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to the consent secretary backend service. All intelligence
// (summarization, reply generation, token issuance, sending, file storage)
// lives behind it; this client is transport only.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx answer from the backend. Detail carries the
// backend's one-line message so callers can surface it as-is.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// AuthGoogle exchanges a Google OAuth credential for an identity and a
// consent token. TokenExpiryHours is the user's stored preference for the
// issued token's lifetime; zero means the backend default.
func (c *Client) AuthGoogle(ctx context.Context, credential string, tokenExpiryHours int) (*AuthResult, error) {
	body := map[string]interface{}{"token": credential}
	if tokenExpiryHours > 0 {
		body["token_expiry_hours"] = tokenExpiryHours
	}

	var result AuthResult
	if err := c.postJSON(ctx, "/auth/google", body, &result); err != nil {
		return nil, fmt.Errorf("google auth failed: %w", err)
	}
	return &result, nil
}

// SigninEmail performs password sign-in.
func (c *Client) SigninEmail(ctx context.Context, email, password string, tokenExpiryHours int) (*AuthResult, error) {
	body := map[string]interface{}{"email": email, "password": password}
	if tokenExpiryHours > 0 {
		body["token_expiry_hours"] = tokenExpiryHours
	}

	var result AuthResult
	if err := c.postJSON(ctx, "/api/signin-email", body, &result); err != nil {
		return nil, fmt.Errorf("email sign-in failed: %w", err)
	}
	return &result, nil
}

// SignupEmail creates an account with name, email and password.
func (c *Client) SignupEmail(ctx context.Context, name, email, password string) error {
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.postJSON(ctx, "/api/signup-email", body, nil); err != nil {
		return fmt.Errorf("sign-up failed: %w", err)
	}
	return nil
}

// SignupDetails persists the post-signup profile fields.
func (c *Client) SignupDetails(ctx context.Context, details ProfileDetails) error {
	if err := c.postJSON(ctx, "/api/signup-details", details, nil); err != nil {
		return fmt.Errorf("failed to save profile details: %w", err)
	}
	return nil
}

// UserDetails fetches the profile fields for the settings view.
func (c *Client) UserDetails(ctx context.Context, userEmail string) (*ProfileDetails, error) {
	var details ProfileDetails
	path := "/api/user-details?user_email=" + url.QueryEscape(userEmail)
	if err := c.getJSON(ctx, path, &details); err != nil {
		return nil, fmt.Errorf("failed to fetch user details: %w", err)
	}
	return &details, nil
}

// UpdateSettings updates the profile fields and returns the backend's
// confirmation message.
func (c *Client) UpdateSettings(ctx context.Context, details ProfileDetails) (string, error) {
	var result struct {
		Message string `json:"message"`
	}
	if err := c.postJSON(ctx, "/api/update-settings", details, &result); err != nil {
		return "", fmt.Errorf("failed to update settings: %w", err)
	}
	return result.Message, nil
}

// GenerateKBToken mints a knowledge-base consent token for the given user.
func (c *Client) GenerateKBToken(ctx context.Context, userEmail string) (string, error) {
	body := map[string]string{"user_email": userEmail}
	var result struct {
		KBConsentToken string `json:"kb_consent_token"`
	}
	if err := c.postJSON(ctx, "/api/generate-kb-token", body, &result); err != nil {
		return "", fmt.Errorf("failed to generate knowledge base token: %w", err)
	}
	if result.KBConsentToken == "" {
		return "", fmt.Errorf("backend returned an empty knowledge base token")
	}
	return result.KBConsentToken, nil
}

// KBFiles lists the uploaded knowledge-base filenames.
func (c *Client) KBFiles(ctx context.Context, userEmail string) ([]string, error) {
	var result struct {
		Files []string `json:"files"`
	}
	path := "/api/knowledge-base/files?user_email=" + url.QueryEscape(userEmail)
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, fmt.Errorf("failed to list knowledge base files: %w", err)
	}
	return result.Files, nil
}

// UploadKBFile uploads one file to the user's knowledge base.
func (c *Client) UploadKBFile(ctx context.Context, userEmail, filename string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("failed to read upload content: %w", err)
	}
	if err := mw.WriteField("user_email", userEmail); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/knowledge-base/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result struct {
		Message string `json:"message"`
	}
	if err := c.do(req, &result); err != nil {
		return "", fmt.Errorf("failed to upload knowledge base file: %w", err)
	}
	return result.Message, nil
}

// DeleteKBFile deletes one knowledge-base file by name.
func (c *Client) DeleteKBFile(ctx context.Context, userEmail, filename string) (string, error) {
	u := fmt.Sprintf("%s/api/knowledge-base/files/%s?user_email=%s",
		c.baseURL, url.PathEscape(filename), url.QueryEscape(userEmail))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create delete request: %w", err)
	}

	var result struct {
		Message string `json:"message"`
	}
	if err := c.do(req, &result); err != nil {
		return "", fmt.Errorf("failed to delete knowledge base file: %w", err)
	}
	return result.Message, nil
}

// Summarize fetches the summarized unread inbox.
func (c *Client) Summarize(ctx context.Context) ([]InboxItem, error) {
	var result struct {
		Emails []InboxItem `json:"emails"`
	}
	if err := c.postJSON(ctx, "/api/summarize", struct{}{}, &result); err != nil {
		return nil, fmt.Errorf("failed to summarize inbox: %w", err)
	}
	return result.Emails, nil
}

// ProcessEmail asks the backend to generate a draft reply.
func (c *Client) ProcessEmail(ctx context.Context, req ProcessEmailRequest) (*ProcessEmailResult, error) {
	var result ProcessEmailResult
	if err := c.postJSON(ctx, "/api/process-email", req, &result); err != nil {
		return nil, fmt.Errorf("failed to generate reply: %w", err)
	}
	return &result, nil
}

// ResponseAction drives regenerate/approve/reject on an existing draft.
func (c *Client) ResponseAction(ctx context.Context, req ResponseActionRequest) (*ActionResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"response_id": req.ResponseID,
		"action":      req.Action,
	}
	if req.UserSuggestion != "" {
		fields["user_suggestion"] = req.UserSuggestion
	}
	if req.SendAttachment != nil {
		fields["send_attachment"] = strconv.FormatBool(*req.SendAttachment)
	}
	if req.KBConsentToken != "" {
		fields["knowledge_base_consent_token"] = req.KBConsentToken
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to build action form: %w", err)
		}
	}
	if req.File != nil {
		part, err := mw.CreateFormFile("file", req.File.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to build action form: %w", err)
		}
		if _, err := part.Write(req.File.Content); err != nil {
			return nil, fmt.Errorf("failed to build action form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize action form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/response-action", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create action request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var result ActionResult
	if err := c.do(httpReq, &result); err != nil {
		return nil, fmt.Errorf("failed to %s response: %w", req.Action, err)
	}
	return &result, nil
}

// PendingResponses lists the drafts still awaiting a decision.
func (c *Client) PendingResponses(ctx context.Context, userEmail string) ([]DraftResponse, error) {
	var result struct {
		PendingResponses []DraftResponse `json:"pending_responses"`
	}
	path := "/api/pending-responses?user_email=" + url.QueryEscape(userEmail)
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch pending responses: %w", err)
	}
	return result.PendingResponses, nil
}

// ResponseHistory lists the approved and rejected drafts.
func (c *Client) ResponseHistory(ctx context.Context, userEmail string) ([]DraftResponse, error) {
	var result struct {
		ResponseHistory []DraftResponse `json:"response_history"`
	}
	path := "/api/response-history?user_email=" + url.QueryEscape(userEmail)
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch response history: %w", err)
	}
	return result.ResponseHistory, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var detail struct {
			Detail string `json:"detail"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			apiErr.Detail = detail.Detail
		} else {
			apiErr.Detail = string(bytes.TrimSpace(raw))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
