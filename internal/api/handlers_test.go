package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"complaintbot/internal/auth"
	"complaintbot/internal/bot"
	"complaintbot/internal/config"
	"complaintbot/internal/models"
	"complaintbot/internal/service/intake"
	"complaintbot/internal/storage"
	"complaintbot/internal/worker"
)

type fakeIngestor struct {
	url string
}

func (f *fakeIngestor) Ingest(ctx context.Context, attachmentRef string) (string, error) {
	return f.url, nil
}

func newTestServer(t *testing.T) (*gin.Engine, *storage.DB, *intake.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {
				DSN: filepath.Join(t.TempDir(), "test.db"),
			},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("migrate db: %v", err)
	}

	uploadDir := t.TempDir()
	exportDir := t.TempDir()
	svc := intake.NewService(db, exportDir, time.Hour)
	authSvc := auth.NewService(db, time.Hour)
	engine := bot.NewEngine("1234", "Cancel", ".", nil, nil)
	ingestor := &fakeIngestor{url: "https://host/uploads/voices/a.ogg"}
	manager := worker.NewManager(svc, engine, ingestor, nil, "https://host", 0)
	t.Cleanup(manager.Stop)

	handler := NewHandler(svc, authSvc, manager, uploadDir, exportDir)
	router := gin.New()
	handler.RegisterRoutes(router)
	return router, db, svc
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status %d, body: %s", rec.Code, rec.Body.String())
	}
}

func sendEvent(t *testing.T, router *gin.Engine, chatID int64, kind, payload string) models.Reply {
	t.Helper()
	rec := doJSONRequest(t, router, http.MethodPost, "/webhook/events", map[string]interface{}{
		"chat_id": chatID,
		"kind":    kind,
		"payload": payload,
	}, nil)
	assertStatus(t, rec, http.StatusOK)
	var reply models.Reply
	decodeJSON(t, rec.Body.Bytes(), &reply)
	return reply
}

func registerAndLogin(t *testing.T, router *gin.Engine) map[string]string {
	t.Helper()
	username := fmt.Sprintf("operator_%d", time.Now().UnixNano())
	password := "pass123"
	regResp := doJSONRequest(t, router, http.MethodPost, "/api/operators/register", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	assertStatus(t, regResp, http.StatusCreated)

	loginResp := doJSONRequest(t, router, http.MethodPost, "/api/operators/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	assertStatus(t, loginResp, http.StatusOK)
	var loginBody struct {
		AuthToken string `json:"auth_token"`
	}
	decodeJSON(t, loginResp.Body.Bytes(), &loginBody)
	if loginBody.AuthToken == "" {
		t.Fatalf("expected auth token from login")
	}
	return map[string]string{"Authorization": "Bearer " + loginBody.AuthToken}
}

func TestWebhookIntakeFlow(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	sendEvent(t, router, 100, "text", "1234")
	sendEvent(t, router, 100, "text", bot.CmdNewComplaint)
	sendEvent(t, router, 100, "text", "Central")
	sendEvent(t, router, 100, "text", "Service")
	sendEvent(t, router, 100, "voice", "file-ref-1")
	sendEvent(t, router, 100, "text", ".")
	sendEvent(t, router, 100, "text", "Jane Doe")
	reply := sendEvent(t, router, 100, "text", "+1 555 0100")
	if reply.Text == "" || len(reply.Menu) == 0 {
		t.Fatalf("final reply must carry the main menu: %#v", reply)
	}

	authHeader := registerAndLogin(t, router)
	listResp := doJSONRequest(t, router, http.MethodGet, "/api/complaints", nil, authHeader)
	assertStatus(t, listResp, http.StatusOK)
	var listBody struct {
		Complaints []models.Complaint `json:"complaints"`
	}
	decodeJSON(t, listResp.Body.Bytes(), &listBody)
	if len(listBody.Complaints) != 1 {
		t.Fatalf("expected one complaint, got %d", len(listBody.Complaints))
	}
	c := listBody.Complaints[0]
	if c.VoiceURL != "https://host/uploads/voices/a.ogg" || c.Branch != "Central" {
		t.Fatalf("unexpected complaint: %#v", c)
	}
	if c.Status != models.StatusIncoming {
		t.Fatalf("new complaints must be incoming, got %s", c.Status)
	}
}

func TestWebhookRejectsMalformedEvents(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	rec := doJSONRequest(t, router, http.MethodPost, "/webhook/events", map[string]interface{}{
		"kind": "text", "payload": "hi",
	}, nil)
	assertStatus(t, rec, http.StatusBadRequest)

	rec = doJSONRequest(t, router, http.MethodPost, "/webhook/events", map[string]interface{}{
		"chat_id": 100, "kind": "sticker", "payload": "hi",
	}, nil)
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestOperatorEndpointsRequireAuth(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	rec := doJSONRequest(t, router, http.MethodGet, "/api/complaints", nil, nil)
	assertStatus(t, rec, http.StatusUnauthorized)

	rec = doJSONRequest(t, router, http.MethodGet, "/api/complaints", nil,
		map[string]string{"Authorization": "Bearer bogus"})
	assertStatus(t, rec, http.StatusUnauthorized)
}

func TestComplaintStatusUpdate(t *testing.T) {
	router, db, svc := newTestServer(t)
	defer db.Close()
	ctx := context.Background()

	session, err := svc.GetOrCreateSession(ctx, 100)
	if err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}
	stored, err := svc.InsertComplaint(ctx, &models.Complaint{
		SessionID: session.ID, ChatID: 100, Branch: "Central", Category: "Service",
	})
	if err != nil {
		t.Fatalf("InsertComplaint: %v", err)
	}

	authHeader := registerAndLogin(t, router)
	rec := doJSONRequest(t, router, http.MethodPatch,
		fmt.Sprintf("/api/complaints/%d/status", stored.ID),
		map[string]string{"status": "in_review"}, authHeader)
	assertStatus(t, rec, http.StatusNoContent)

	getResp := doJSONRequest(t, router, http.MethodGet,
		fmt.Sprintf("/api/complaints/%d", stored.ID), nil, authHeader)
	assertStatus(t, getResp, http.StatusOK)
	var loaded models.Complaint
	decodeJSON(t, getResp.Body.Bytes(), &loaded)
	if loaded.Status != models.StatusInReview {
		t.Fatalf("status not updated: %s", loaded.Status)
	}

	rec = doJSONRequest(t, router, http.MethodPatch, "/api/complaints/9999/status",
		map[string]string{"status": "resolved"}, authHeader)
	assertStatus(t, rec, http.StatusNotFound)

	rec = doJSONRequest(t, router, http.MethodPatch,
		fmt.Sprintf("/api/complaints/%d/status", stored.ID),
		map[string]string{"status": "archived"}, authHeader)
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestExportEndpoint(t *testing.T) {
	router, db, svc := newTestServer(t)
	defer db.Close()
	ctx := context.Background()

	authHeader := registerAndLogin(t, router)

	rec := doJSONRequest(t, router, http.MethodPost, "/api/complaints/export", nil, authHeader)
	assertStatus(t, rec, http.StatusNotFound)

	session, _ := svc.GetOrCreateSession(ctx, 100)
	if _, err := svc.InsertComplaint(ctx, &models.Complaint{
		SessionID: session.ID, ChatID: 100, Branch: "Central", Category: "Service", Text: "issue",
	}); err != nil {
		t.Fatalf("InsertComplaint: %v", err)
	}

	rec = doJSONRequest(t, router, http.MethodPost, "/api/complaints/export", nil, authHeader)
	assertStatus(t, rec, http.StatusCreated)
	var exportBody struct {
		FileName string `json:"file_name"`
		URL      string `json:"url"`
		Records  int    `json:"records"`
	}
	decodeJSON(t, rec.Body.Bytes(), &exportBody)
	if exportBody.Records != 1 || exportBody.URL != "/exports/"+exportBody.FileName {
		t.Fatalf("unexpected export response: %#v", exportBody)
	}

	getResp := doJSONRequest(t, router, http.MethodGet, exportBody.URL, nil, authHeader)
	assertStatus(t, getResp, http.StatusOK)
	if !bytes.Contains(getResp.Body.Bytes(), []byte("issue")) {
		t.Fatalf("export artifact missing complaint text")
	}
}

func TestSessionResetEndpoint(t *testing.T) {
	router, db, svc := newTestServer(t)
	defer db.Close()
	ctx := context.Background()

	sendEvent(t, router, 100, "text", "1234")
	sendEvent(t, router, 100, "text", bot.CmdNewComplaint)
	sendEvent(t, router, 100, "text", "Central")

	authHeader := registerAndLogin(t, router)
	rec := doJSONRequest(t, router, http.MethodPost, "/api/sessions/100/reset", nil, authHeader)
	assertStatus(t, rec, http.StatusNoContent)

	session, err := svc.GetOrCreateSession(ctx, 100)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if session.Step != models.StepIdle || !session.ScratchEmpty() {
		t.Fatalf("reset endpoint did not clear the flow: %#v", session)
	}
	if !session.Authorized {
		t.Fatalf("reset must not revoke authorization")
	}

	rec = doJSONRequest(t, router, http.MethodPost, "/api/sessions/0/reset", nil, authHeader)
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestLogoutRevokesToken(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	authHeader := registerAndLogin(t, router)
	rec := doJSONRequest(t, router, http.MethodPost, "/api/operators/logout", nil, authHeader)
	assertStatus(t, rec, http.StatusNoContent)

	rec = doJSONRequest(t, router, http.MethodGet, "/api/complaints", nil, authHeader)
	assertStatus(t, rec, http.StatusUnauthorized)
}

func TestCookieAuthRequiresCSRF(t *testing.T) {
	router, db, svc := newTestServer(t)
	defer db.Close()
	ctx := context.Background()

	session, _ := svc.GetOrCreateSession(ctx, 100)
	stored, err := svc.InsertComplaint(ctx, &models.Complaint{
		SessionID: session.ID, ChatID: 100, Branch: "Central", Category: "Service",
	})
	if err != nil {
		t.Fatalf("InsertComplaint: %v", err)
	}

	username := fmt.Sprintf("operator_%d", time.Now().UnixNano())
	doJSONRequest(t, router, http.MethodPost, "/api/operators/register", map[string]string{
		"username": username, "password": "pass123",
	}, nil)
	loginResp := doJSONRequest(t, router, http.MethodPost, "/api/operators/login", map[string]string{
		"username": username, "password": "pass123",
	}, nil)
	assertStatus(t, loginResp, http.StatusOK)

	var authCookie, csrfCookie *http.Cookie
	for _, c := range loginResp.Result().Cookies() {
		switch c.Name {
		case "auth_token":
			authCookie = c
		case "csrf_token":
			csrfCookie = c
		}
	}
	if authCookie == nil || csrfCookie == nil {
		t.Fatalf("login must set auth and csrf cookies")
	}

	path := fmt.Sprintf("/api/complaints/%d/status", stored.ID)
	body, _ := json.Marshal(map[string]string{"status": "resolved"})

	// Cookie auth without the CSRF header is refused.
	req := httptest.NewRequest(http.MethodPatch, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(authCookie)
	req.AddCookie(csrfCookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusForbidden)

	// The double-submit pair passes.
	req = httptest.NewRequest(http.MethodPatch, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(authCookie)
	req.AddCookie(csrfCookie)
	req.Header.Set("X-CSRF-Token", csrfCookie.Value)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusNoContent)
}
