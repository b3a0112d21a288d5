package backend

// UserProfile is the identity record the backend returns at sign-in.
type UserProfile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	LinkedIn string `json:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty"`
}

// AuthResult bundles the signed-in identity with the consent token the
// backend issued for time-boxed, read-only inbox access.
type AuthResult struct {
	User         UserProfile `json:"user"`
	ConsentToken string      `json:"consent_token"`
}

// ProfileComplete reports whether the post-signup profile fields have been
// filled in. Incomplete profiles are routed to the details form after
// Google sign-in.
func (a *AuthResult) ProfileComplete() bool {
	return a.User.LinkedIn != "" && a.User.GitHub != ""
}

// ProfileDetails are the editable profile fields from the settings view.
type ProfileDetails struct {
	Name     string `json:"name"`
	LinkedIn string `json:"linkedin"`
	GitHub   string `json:"github"`
	Gmail    string `json:"gmail"`
}

// InboxItem is one summarized unread email.
type InboxItem struct {
	Sender   string `json:"sender"`
	Subject  string `json:"subject"`
	Summary  string `json:"summary"`
	Intent   string `json:"intent"`
	Priority string `json:"priority"`

	// Provider-assigned identifiers, present when the backend knows them.
	MessageID string `json:"id,omitempty"`
	ThreadID  string `json:"threadId,omitempty"`
}

// ProcessEmailRequest asks the backend to generate a draft reply.
// KBConsentToken is optional; when empty the field is omitted from the wire
// payload entirely, which means "proceed without knowledge-base context".
type ProcessEmailRequest struct {
	EmailID        string `json:"email_id"`
	ConsentToken   string `json:"consent_token"`
	UserSuggestion string `json:"user_suggestion,omitempty"`
	GmailMessageID string `json:"gmail_message_id,omitempty"`
	GmailThreadID  string `json:"gmail_thread_id,omitempty"`
	UserEmail      string `json:"user_email"`
	KBConsentToken string `json:"knowledge_base_consent_token,omitempty"`
}

// Attachment is a file the backend proposes to send with a reply.
type Attachment struct {
	Filename   string `json:"filename"`
	ContentB64 string `json:"content_b64,omitempty"`
}

// GeneratedReply is the body of a draft reply as produced (or reproduced)
// by the backend.
type GeneratedReply struct {
	Message      string      `json:"message"`
	ResponseType string      `json:"response_type"`
	Confidence   float64     `json:"confidence"`
	Reasoning    string      `json:"reasoning,omitempty"`
	Attachment   *Attachment `json:"attachment,omitempty"`
}

// ProcessEmailResult is the backend's answer to a generate call. From this
// point on the server-assigned ResponseID drives the lifecycle.
type ProcessEmailResult struct {
	ResponseID     string          `json:"response_id"`
	Status         string          `json:"status"`
	GeneratedReply *GeneratedReply `json:"generated_response"`
}

// Action values accepted by the response-action endpoint.
const (
	ActionRegenerate = "regenerate"
	ActionApprove    = "approve"
	ActionReject     = "reject"
)

// FileUpload carries one attached file for added regeneration context.
type FileUpload struct {
	Filename string
	Content  []byte
}

// ResponseActionRequest drives regenerate/approve/reject on an existing
// draft. It is sent as multipart form data because regenerate may carry a
// file. KBConsentToken follows the same omit-when-absent rule as generate.
type ResponseActionRequest struct {
	ResponseID     string
	Action         string
	UserSuggestion string
	SendAttachment *bool // approve only; nil means backend default
	File           *FileUpload
	KBConsentToken string
}

// ActionResult is the backend's answer to a response action. GeneratedReply
// is populated for regenerate and nil for approve/reject.
type ActionResult struct {
	Message        string          `json:"message"`
	Status         string          `json:"status,omitempty"`
	ResponseID     string          `json:"response_id,omitempty"`
	GeneratedReply *GeneratedReply `json:"generated_response,omitempty"`
}

// DraftResponse is one tracked reply as listed by the pending/history
// endpoints.
type DraftResponse struct {
	ID                 string `json:"id"`
	EmailSubject       string `json:"email_subject"`
	SenderEmail        string `json:"sender_email"`
	EmailSummary       string `json:"email_summary"`
	Message            string `json:"generated_response"`
	AgentType          string `json:"agent_type"`
	UserSuggestion     string `json:"user_suggestion,omitempty"`
	Status             string `json:"status"`
	CreatedAt          string `json:"created_at,omitempty"`
	GmailMessageID     string `json:"gmail_message_id,omitempty"`
	GmailThreadID      string `json:"gmail_thread_id,omitempty"`
	AttachmentFilename string `json:"attachment_filename,omitempty"`
}
