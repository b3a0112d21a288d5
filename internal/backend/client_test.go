package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestProcessEmailOmitsKBTokenWhenAbsent(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/process-email" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(ProcessEmailResult{ResponseID: "r1", Status: "pending"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	result, err := c.ProcessEmail(context.Background(), ProcessEmailRequest{
		EmailID:      "12345",
		ConsentToken: "tok123",
		UserEmail:    "a@b.com",
	})
	if err != nil {
		t.Fatalf("ProcessEmail: %v", err)
	}
	if result.ResponseID != "r1" {
		t.Errorf("response id = %q", result.ResponseID)
	}

	if _, present := body["knowledge_base_consent_token"]; present {
		t.Error("knowledge_base_consent_token key was sent without consent")
	}
	if body["email_id"] != "12345" || body["consent_token"] != "tok123" {
		t.Errorf("payload = %v", body)
	}
}

func TestProcessEmailSendsKBTokenWhenPresent(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(ProcessEmailResult{ResponseID: "r1"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ProcessEmail(context.Background(), ProcessEmailRequest{
		EmailID:        "12345",
		ConsentToken:   "tok123",
		UserEmail:      "a@b.com",
		KBConsentToken: "kb-1",
	})
	if err != nil {
		t.Fatalf("ProcessEmail: %v", err)
	}
	if body["knowledge_base_consent_token"] != "kb-1" {
		t.Errorf("kb token = %v, want kb-1", body["knowledge_base_consent_token"])
	}
}

func TestResponseActionMultipartFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/response-action" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("not multipart: %v", err)
		}
		if got := r.FormValue("response_id"); got != "r1" {
			t.Errorf("response_id = %q", got)
		}
		if got := r.FormValue("action"); got != "regenerate" {
			t.Errorf("action = %q", got)
		}
		if got := r.FormValue("user_suggestion"); got != "shorter" {
			t.Errorf("user_suggestion = %q", got)
		}
		if got := r.FormValue("knowledge_base_consent_token"); got != "kb-1" {
			t.Errorf("kb token = %q", got)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("file part missing: %v", err)
		}
		defer file.Close()
		if header.Filename != "notes.txt" {
			t.Errorf("filename = %q", header.Filename)
		}
		content, _ := io.ReadAll(file)
		if string(content) != "extra context" {
			t.Errorf("file content = %q", content)
		}

		json.NewEncoder(w).Encode(ActionResult{
			Message:    "Response regenerated successfully",
			ResponseID: "r1",
			Status:     "pending",
		})
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL).ResponseAction(context.Background(), ResponseActionRequest{
		ResponseID:     "r1",
		Action:         ActionRegenerate,
		UserSuggestion: "shorter",
		KBConsentToken: "kb-1",
		File:           &FileUpload{Filename: "notes.txt", Content: []byte("extra context")},
	})
	if err != nil {
		t.Fatalf("ResponseAction: %v", err)
	}
	if result.ResponseID != "r1" {
		t.Errorf("response id = %q", result.ResponseID)
	}
}

func TestResponseActionSkipsOptionalFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("not multipart: %v", err)
		}
		for _, name := range []string{"user_suggestion", "knowledge_base_consent_token", "send_attachment"} {
			if _, present := r.MultipartForm.Value[name]; present {
				t.Errorf("optional field %q was sent", name)
			}
		}
		if _, _, err := r.FormFile("file"); err == nil {
			t.Error("file part was sent with no upload")
		}
		json.NewEncoder(w).Encode(ActionResult{Message: "rejected"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ResponseAction(context.Background(), ResponseActionRequest{
		ResponseID: "r1",
		Action:     ActionReject,
	})
	if err != nil {
		t.Fatalf("ResponseAction: %v", err)
	}
}

func TestResponseActionSendAttachmentFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		if got := r.FormValue("send_attachment"); got != "false" {
			t.Errorf("send_attachment = %q, want false", got)
		}
		json.NewEncoder(w).Encode(ActionResult{Message: "sent"})
	}))
	defer srv.Close()

	noAttachment := false
	_, err := NewClient(srv.URL).ResponseAction(context.Background(), ResponseActionRequest{
		ResponseID:     "r1",
		Action:         ActionApprove,
		SendAttachment: &noAttachment,
	})
	if err != nil {
		t.Fatalf("ResponseAction: %v", err)
	}
}

func TestErrorDetailDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Consent token expired"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Summarize(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if apiErr.Detail != "Consent token expired" {
		t.Errorf("detail = %q", apiErr.Detail)
	}
	if !strings.Contains(apiErr.Error(), "403") || !strings.Contains(apiErr.Error(), "Consent token expired") {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestErrorWithNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream exploded\n")
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Summarize(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T, want *APIError", err)
	}
	if apiErr.Detail != "upstream exploded" {
		t.Errorf("detail = %q", apiErr.Detail)
	}
}

func TestSummarizeParsesInbox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/summarize" {
			t.Errorf("path = %q", r.URL.Path)
		}
		io.WriteString(w, `{"emails":[
			{"sender":"a@b.com","subject":"Meeting","summary":"Asks for a slot","intent":"Request for a meeting","priority":"high","id":"gm1","threadId":"gt1"},
			{"sender":"noreply@shop.com","subject":"Sale","summary":"Promo","intent":"Marketing emails or newsletters","priority":"low"}
		]}`)
	}))
	defer srv.Close()

	items, err := NewClient(srv.URL).Summarize(context.Background())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items", len(items))
	}
	if items[0].MessageID != "gm1" || items[0].ThreadID != "gt1" {
		t.Errorf("provider ids = %q/%q", items[0].MessageID, items[0].ThreadID)
	}
	if items[1].Intent != "Marketing emails or newsletters" {
		t.Errorf("intent = %q", items[1].Intent)
	}
}

func TestPendingResponsesQueryAndKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pending-responses" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("user_email"); got != "a+test@b.com" {
			t.Errorf("user_email = %q", got)
		}
		io.WriteString(w, `{"pending_responses":[{"id":"r1","email_subject":"Meeting","status":"pending"}]}`)
	}))
	defer srv.Close()

	drafts, err := NewClient(srv.URL).PendingResponses(context.Background(), "a+test@b.com")
	if err != nil {
		t.Fatalf("PendingResponses: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID != "r1" {
		t.Fatalf("drafts = %+v", drafts)
	}
}

func TestResponseHistoryKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"response_history":[{"id":"r2","status":"approved"},{"id":"r3","status":"rejected"}]}`)
	}))
	defer srv.Close()

	drafts, err := NewClient(srv.URL).ResponseHistory(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("ResponseHistory: %v", err)
	}
	if len(drafts) != 2 || drafts[0].Status != "approved" || drafts[1].Status != "rejected" {
		t.Fatalf("drafts = %+v", drafts)
	}
}

func TestSigninEmailSendsExpiryPreference(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/signin-email" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(AuthResult{
			User:         UserProfile{Name: "Ada", Email: "a@b.com"},
			ConsentToken: "tok123",
		})
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL).SigninEmail(context.Background(), "a@b.com", "hunter2", 48)
	if err != nil {
		t.Fatalf("SigninEmail: %v", err)
	}
	if result.ConsentToken != "tok123" || result.User.Email != "a@b.com" {
		t.Errorf("result = %+v", result)
	}
	if body["token_expiry_hours"] != float64(48) {
		t.Errorf("token_expiry_hours = %v, want 48", body["token_expiry_hours"])
	}
}

func TestUploadKBFileMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("not multipart: %v", err)
		}
		if got := r.FormValue("user_email"); got != "a@b.com" {
			t.Errorf("user_email = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("file part missing: %v", err)
		}
		defer file.Close()
		if header.Filename != "cv.pdf" {
			t.Errorf("filename = %q", header.Filename)
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "File uploaded successfully"})
	}))
	defer srv.Close()

	msg, err := NewClient(srv.URL).UploadKBFile(context.Background(), "a@b.com", "cv.pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("UploadKBFile: %v", err)
	}
	if msg != "File uploaded successfully" {
		t.Errorf("message = %q", msg)
	}
}

func TestDeleteKBFileEscapesName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %q", r.Method)
		}
		if got := r.URL.Path; got != "/api/knowledge-base/files/my notes.txt" {
			t.Errorf("path = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "deleted"})
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).DeleteKBFile(context.Background(), "a@b.com", "my notes.txt"); err != nil {
		t.Fatalf("DeleteKBFile: %v", err)
	}
}

func TestGenerateKBTokenEmptyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"kb_consent_token": ""})
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).GenerateKBToken(context.Background(), "a@b.com"); err == nil {
		t.Fatal("expected error for empty token")
	}
}
