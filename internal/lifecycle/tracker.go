package lifecycle

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/hushlabs/consent-secretary/internal/backend"
)

// Draft statuses as reported by the backend.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var (
	// ErrConsentRequired means generate was invoked without an inbox consent
	// token. The refusal happens before any network call.
	ErrConsentRequired = errors.New("consent token is missing")

	// ErrAlreadyResolved means the draft is terminal: approve, reject and
	// regenerate are no longer permitted on it.
	ErrAlreadyResolved = errors.New("response has already been approved or rejected")

	// ErrActionInFlight means another mutating call for the same draft has
	// not finished yet. Per draft, only one is allowed at a time.
	ErrActionInFlight = errors.New("another action for this response is still in progress")

	// ErrUnknownResponse means the tracker has no pending draft with the
	// given id; the caller should refresh and retry.
	ErrUnknownResponse = errors.New("unknown response id")
)

// Backend is the slice of the API client the tracker drives.
type Backend interface {
	ProcessEmail(ctx context.Context, req backend.ProcessEmailRequest) (*backend.ProcessEmailResult, error)
	ResponseAction(ctx context.Context, req backend.ResponseActionRequest) (*backend.ActionResult, error)
	PendingResponses(ctx context.Context, userEmail string) ([]backend.DraftResponse, error)
	ResponseHistory(ctx context.Context, userEmail string) ([]backend.DraftResponse, error)
}

// Tracker follows each AI-drafted reply through
// pending -> (pending)* -> approved | rejected for one user.
//
// List mutations are optimistic: a successful approve/reject immediately
// removes the draft from the pending collection and prepends it to history
// with its new status, without waiting for a refetch. A fresh fetch
// (RefreshPending/RefreshHistory) is always the source of truth and replaces
// the local collection wholesale; fetches that lose a race against a newer
// fetch are discarded rather than applied over fresher state.
type Tracker struct {
	backend   Backend
	userEmail string

	mu           sync.Mutex
	pending      []backend.DraftResponse
	history      []backend.DraftResponse
	resolved     map[string]string // response id -> terminal status
	inflight     map[string]bool   // response id with a mutating call outstanding
	generating   map[string]bool   // derived email id with a generate outstanding
	pendingEpoch uint64
	historyEpoch uint64
}

// NewTracker creates a tracker bound to one user's drafts.
func NewTracker(b Backend, userEmail string) *Tracker {
	return &Tracker{
		backend:    b,
		userEmail:  userEmail,
		resolved:   make(map[string]string),
		inflight:   make(map[string]bool),
		generating: make(map[string]bool),
	}
}

// Generate asks the backend to draft a reply for the given inbox item.
// It refuses locally when the consent token is absent. kbToken is optional;
// when empty the request simply omits it. On success the new draft enters
// the pending collection with its server-assigned response id; on failure no
// state is created and the item stays retryable.
func (t *Tracker) Generate(ctx context.Context, item backend.InboxItem, consentToken, kbToken string) (*backend.ProcessEmailResult, error) {
	if consentToken == "" {
		return nil, ErrConsentRequired
	}

	derivedID := DeriveID(item.Subject, item.Sender)

	t.mu.Lock()
	if t.generating[derivedID] {
		t.mu.Unlock()
		return nil, ErrActionInFlight
	}
	t.generating[derivedID] = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.generating, derivedID)
		t.mu.Unlock()
	}()

	opID := uuid.NewString()
	log.Printf("lifecycle: [%s] generating reply for email %s (%s)", opID, derivedID, item.Sender)

	result, err := t.backend.ProcessEmail(ctx, backend.ProcessEmailRequest{
		EmailID:        derivedID,
		ConsentToken:   consentToken,
		GmailMessageID: item.MessageID,
		GmailThreadID:  item.ThreadID,
		UserEmail:      t.userEmail,
		KBConsentToken: kbToken,
	})
	if err != nil {
		log.Printf("lifecycle: [%s] generate failed: %v", opID, err)
		return nil, err
	}

	draft := backend.DraftResponse{
		ID:             result.ResponseID,
		EmailSubject:   item.Subject,
		SenderEmail:    item.Sender,
		EmailSummary:   item.Summary,
		Status:         StatusPending,
		GmailMessageID: item.MessageID,
		GmailThreadID:  item.ThreadID,
	}
	if result.GeneratedReply != nil {
		draft.Message = result.GeneratedReply.Message
		draft.AgentType = result.GeneratedReply.ResponseType
		if result.GeneratedReply.Attachment != nil {
			draft.AttachmentFilename = result.GeneratedReply.Attachment.Filename
		}
	}

	t.mu.Lock()
	t.pending = append([]backend.DraftResponse{draft}, t.pending...)
	t.mu.Unlock()

	log.Printf("lifecycle: [%s] draft %s is pending", opID, result.ResponseID)
	return result, nil
}

// Regenerate replaces the draft's content in place. Only valid while the
// draft is pending; the response id and status are preserved. On failure the
// previous draft remains untouched and the caller may retry.
func (t *Tracker) Regenerate(ctx context.Context, responseID, suggestion string, file *backend.FileUpload, kbToken string) (*backend.ActionResult, error) {
	if err := t.begin(responseID); err != nil {
		return nil, err
	}
	defer t.end(responseID)

	opID := uuid.NewString()
	log.Printf("lifecycle: [%s] regenerating draft %s", opID, responseID)

	result, err := t.backend.ResponseAction(ctx, backend.ResponseActionRequest{
		ResponseID:     responseID,
		Action:         backend.ActionRegenerate,
		UserSuggestion: suggestion,
		File:           file,
		KBConsentToken: kbToken,
	})
	if err != nil {
		log.Printf("lifecycle: [%s] regenerate failed, draft unchanged: %v", opID, err)
		return nil, err
	}

	t.mu.Lock()
	for i := range t.pending {
		if t.pending[i].ID != responseID {
			continue
		}
		if result.GeneratedReply != nil {
			t.pending[i].Message = result.GeneratedReply.Message
			t.pending[i].AgentType = result.GeneratedReply.ResponseType
			if result.GeneratedReply.Attachment != nil {
				t.pending[i].AttachmentFilename = result.GeneratedReply.Attachment.Filename
			} else {
				t.pending[i].AttachmentFilename = ""
			}
		}
		t.pending[i].UserSuggestion = suggestion
		break
	}
	t.mu.Unlock()

	return result, nil
}

// Approve finalizes the draft and triggers the external send. Terminal: a
// later approve or reject on the same id is refused locally.
func (t *Tracker) Approve(ctx context.Context, responseID string, sendAttachment *bool) (*backend.ActionResult, error) {
	return t.resolve(ctx, responseID, backend.ActionApprove, sendAttachment)
}

// Reject finalizes the draft without sending anything.
func (t *Tracker) Reject(ctx context.Context, responseID string) (*backend.ActionResult, error) {
	return t.resolve(ctx, responseID, backend.ActionReject, nil)
}

func (t *Tracker) resolve(ctx context.Context, responseID, action string, sendAttachment *bool) (*backend.ActionResult, error) {
	if err := t.begin(responseID); err != nil {
		return nil, err
	}
	defer t.end(responseID)

	opID := uuid.NewString()
	log.Printf("lifecycle: [%s] %s draft %s", opID, action, responseID)

	result, err := t.backend.ResponseAction(ctx, backend.ResponseActionRequest{
		ResponseID:     responseID,
		Action:         action,
		SendAttachment: sendAttachment,
	})
	if err != nil {
		// The draft stays pending; the backend's verdict is authoritative
		// and an error never flips local state.
		log.Printf("lifecycle: [%s] %s failed, draft stays pending: %v", opID, action, err)
		return nil, err
	}

	status := StatusApproved
	if action == backend.ActionReject {
		status = StatusRejected
	}

	t.mu.Lock()
	t.resolved[responseID] = status
	for i := range t.pending {
		if t.pending[i].ID != responseID {
			continue
		}
		draft := t.pending[i]
		draft.Status = status
		t.pending = append(t.pending[:i], t.pending[i+1:]...)
		t.history = append([]backend.DraftResponse{draft}, t.history...)
		break
	}
	t.mu.Unlock()

	return result, nil
}

// begin checks that the draft may be mutated and claims its in-flight slot.
func (t *Tracker) begin(responseID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, done := t.resolved[responseID]; done {
		return ErrAlreadyResolved
	}
	if t.inflight[responseID] {
		return ErrActionInFlight
	}

	found := false
	for i := range t.pending {
		if t.pending[i].ID == responseID {
			found = true
			break
		}
	}
	if !found {
		for i := range t.history {
			if t.history[i].ID == responseID {
				return ErrAlreadyResolved
			}
		}
		return ErrUnknownResponse
	}

	t.inflight[responseID] = true
	return nil
}

func (t *Tracker) end(responseID string) {
	t.mu.Lock()
	delete(t.inflight, responseID)
	t.mu.Unlock()
}

// RefreshPending fetches the pending collection from the backend and, when
// no newer refresh has started meanwhile, replaces the local copy. A stale
// result is returned to the caller but never applied over fresher state.
func (t *Tracker) RefreshPending(ctx context.Context) ([]backend.DraftResponse, error) {
	t.mu.Lock()
	t.pendingEpoch++
	epoch := t.pendingEpoch
	t.mu.Unlock()

	list, err := t.backend.PendingResponses(ctx, t.userEmail)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if epoch == t.pendingEpoch {
		t.pending = list
		for _, d := range list {
			// The server is authoritative: a draft it still reports as
			// pending is pending, whatever we believed before.
			delete(t.resolved, d.ID)
		}
	}
	t.mu.Unlock()

	return list, nil
}

// RefreshHistory fetches the approved/rejected collection, with the same
// stale-result rule as RefreshPending.
func (t *Tracker) RefreshHistory(ctx context.Context) ([]backend.DraftResponse, error) {
	t.mu.Lock()
	t.historyEpoch++
	epoch := t.historyEpoch
	t.mu.Unlock()

	list, err := t.backend.ResponseHistory(ctx, t.userEmail)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if epoch == t.historyEpoch {
		t.history = list
		for _, d := range list {
			t.resolved[d.ID] = d.Status
		}
	}
	t.mu.Unlock()

	return list, nil
}

// Pending returns a snapshot of the pending collection.
func (t *Tracker) Pending() []backend.DraftResponse {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]backend.DraftResponse, len(t.pending))
	copy(out, t.pending)
	return out
}

// History returns a snapshot of the history collection.
func (t *Tracker) History() []backend.DraftResponse {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]backend.DraftResponse, len(t.history))
	copy(out, t.history)
	return out
}

// IsGenerating reports whether a generate call for the given derived email
// id is still outstanding, so the UI can disable that row's control.
func (t *Tracker) IsGenerating(derivedID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generating[derivedID]
}
