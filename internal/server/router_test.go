package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/sigillo-app/backend/internal/accounts"
	"github.com/sigillo-app/backend/internal/auth"
	"github.com/sigillo-app/backend/internal/messaging"
	"github.com/sigillo-app/backend/internal/storage"
	"github.com/sigillo-app/backend/internal/submissions"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type sequentialIDGenerator struct {
	prefix string
	next   int
}

func (g *sequentialIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next), nil
}

type routerFixture struct {
	handler     http.Handler
	tokens      *auth.TokenIssuer
	submissions *submissions.Service
	messaging   *messaging.Service
	database    *gorm.DB
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:sigillo_router_%d?mode=memory&cache=shared", time.Now().UnixNano())
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(
		&accounts.Account{}, &accounts.Client{}, &accounts.Notary{},
		&submissions.Submission{}, &messaging.Message{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("router-test-secret"),
		Issuer:        "sigillo-auth",
		Audience:      "sigillo-api",
		TokenTTL:      time.Hour,
	})

	ids := &sequentialIDGenerator{prefix: "row"}

	accountService, err := accounts.NewService(accounts.ServiceConfig{
		Database:   database,
		Clock:      time.Now,
		IDProvider: ids,
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build account service: %v", err)
	}

	submissionService, err := submissions.NewService(submissions.ServiceConfig{
		Database:   database,
		Clock:      time.Now,
		IDProvider: &sequentialIDGenerator{prefix: "sub"},
		Notaries:   accountService,
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build submission service: %v", err)
	}

	objectStore, err := storage.NewStore(storage.StoreConfig{
		Fs:            afero.NewMemMapFs(),
		Root:          "objects",
		PublicBaseURL: "",
		Clock:         time.Now,
	})
	if err != nil {
		t.Fatalf("failed to build object store: %v", err)
	}

	dispatcher := NewRealtimeDispatcher()
	messagingService, err := messaging.NewService(messaging.ServiceConfig{
		Database:    database,
		Clock:       time.Now,
		IDProvider:  &sequentialIDGenerator{prefix: "msg"},
		Publisher:   dispatcher,
		Attachments: objectStore,
		Submissions: submissionService,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build messaging service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		TokenManager: tokenManager,
		Accounts:     accountService,
		Submissions:  submissionService,
		Messaging:    messagingService,
		Realtime:     dispatcher,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}

	return &routerFixture{
		handler:     handler,
		tokens:      tokenManager,
		submissions: submissionService,
		messaging:   messagingService,
		database:    database,
	}
}

func (f *routerFixture) seedAccount(t *testing.T, id, email, password, role string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	account := accounts.Account{ID: id, Email: email, PasswordHash: string(hash), Role: role}
	if err := f.database.Create(&account).Error; err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
}

func (f *routerFixture) seedNotary(t *testing.T, id, accountID string, active bool) {
	t.Helper()
	notary := accounts.Notary{ID: id, AccountID: &accountID, Email: id + "@example.com", Active: active}
	if err := f.database.Create(&notary).Error; err != nil {
		t.Fatalf("failed to seed notary: %v", err)
	}
}

func (f *routerFixture) issueToken(t *testing.T, subject, role string) string {
	t.Helper()
	token, _, err := f.tokens.IssueSessionToken(context.Background(), auth.Identity{Subject: subject, Role: role})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func (f *routerFixture) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, target, http.NoBody)
	} else {
		request = httptest.NewRequest(method, target, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func TestLoginIssuesSessionToken(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.seedAccount(t, "acct-admin", "admin@example.com", "secret-pass", auth.RoleAdmin)

	recorder := fixture.do(t, http.MethodPost, "/auth/session", "",
		`{"email":"Admin@Example.com","password":"secret-pass"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ok status, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(t, recorder)
	if payload["token_type"] != "Bearer" || payload["role"] != auth.RoleAdmin {
		t.Fatalf("unexpected login payload: %v", payload)
	}
	token, _ := payload["access_token"].(string)
	if token == "" {
		t.Fatal("expected access token in login response")
	}

	identity, err := fixture.tokens.ValidateToken(token)
	if err != nil {
		t.Fatalf("expected issued token to validate: %v", err)
	}
	if identity.Subject != "acct-admin" {
		t.Fatalf("expected admin account as subject, got %q", identity.Subject)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.seedAccount(t, "acct-admin", "admin@example.com", "secret-pass", auth.RoleAdmin)

	recorder := fixture.do(t, http.MethodPost, "/auth/session", "",
		`{"email":"admin@example.com","password":"wrong"}`)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", recorder.Code)
	}
}

func TestLoginNotaryUsesProfileSubject(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.seedAccount(t, "acct-notary", "notary@example.com", "secret-pass", auth.RoleNotary)
	fixture.seedNotary(t, "notary-1", "acct-notary", true)

	recorder := fixture.do(t, http.MethodPost, "/auth/session", "",
		`{"email":"notary@example.com","password":"secret-pass"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ok status, got %d: %s", recorder.Code, recorder.Body.String())
	}
	token := decodeBody(t, recorder)["access_token"].(string)
	identity, err := fixture.tokens.ValidateToken(token)
	if err != nil {
		t.Fatalf("expected token to validate: %v", err)
	}
	if identity.Subject != "notary-1" {
		t.Fatalf("expected notary profile as subject, got %q", identity.Subject)
	}
}

func TestLoginNotaryWithoutProfileForbidden(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.seedAccount(t, "acct-orphan", "orphan@example.com", "secret-pass", auth.RoleNotary)

	recorder := fixture.do(t, http.MethodPost, "/auth/session", "",
		`{"email":"orphan@example.com","password":"secret-pass"}`)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden, got %d", recorder.Code)
	}
	if payload := decodeBody(t, recorder); payload["error"] != "no_notary_profile" {
		t.Fatalf("unexpected error payload: %v", payload)
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	fixture := newRouterFixture(t)

	recorder := fixture.do(t, http.MethodGet, "/api/submissions", "", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized without token, got %d", recorder.Code)
	}

	recorder = fixture.do(t, http.MethodGet, "/api/submissions", "garbage-token", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized with invalid token, got %d", recorder.Code)
	}
}

func TestAPITokenAcceptedFromQueryParameter(t *testing.T) {
	fixture := newRouterFixture(t)
	token := fixture.issueToken(t, "acct-admin", auth.RoleAdmin)

	recorder := fixture.do(t, http.MethodGet, "/api/submissions?access_token="+token, "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ok with query token, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestNotaryListScopedToOwnAssignments(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.seedNotary(t, "notary-1", "acct-notary", true)
	ctx := context.Background()

	assigned, err := fixture.submissions.Create(ctx, submissions.CreateRequest{
		ClientEmail: "claire@example.com",
	})
	if err != nil {
		t.Fatalf("failed to create submission: %v", err)
	}
	if _, err := fixture.submissions.AssignNotary(ctx, assigned.ID, "notary-1"); err != nil {
		t.Fatalf("failed to assign notary: %v", err)
	}
	if _, err := fixture.submissions.Create(ctx, submissions.CreateRequest{
		ClientEmail: "marc@example.com",
	}); err != nil {
		t.Fatalf("failed to create unassigned submission: %v", err)
	}

	token := fixture.issueToken(t, "notary-1", auth.RoleNotary)
	recorder := fixture.do(t, http.MethodGet, "/api/submissions?notary_id=notary-2", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ok status, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(t, recorder)
	rows, _ := payload["submissions"].([]any)
	if len(rows) != 1 {
		t.Fatalf("expected 1 scoped submission, got %d", len(rows))
	}
	row := rows[0].(map[string]any)
	if row["id"] != assigned.ID {
		t.Fatalf("expected assigned submission, got %v", row["id"])
	}
}

func TestNotaryForbiddenFromUnassignedSubmission(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.seedNotary(t, "notary-1", "acct-notary", true)

	submission, err := fixture.submissions.Create(context.Background(), submissions.CreateRequest{
		ClientEmail: "claire@example.com",
	})
	if err != nil {
		t.Fatalf("failed to create submission: %v", err)
	}

	token := fixture.issueToken(t, "notary-1", auth.RoleNotary)
	recorder := fixture.do(t, http.MethodGet, "/api/submissions/"+submission.ID, token, "")
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden for unassigned submission, got %d", recorder.Code)
	}
}

func TestStatusUpdateRequiresAdminRole(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.seedNotary(t, "notary-1", "acct-notary", true)

	submission, err := fixture.submissions.Create(context.Background(), submissions.CreateRequest{
		ClientEmail: "claire@example.com",
	})
	if err != nil {
		t.Fatalf("failed to create submission: %v", err)
	}

	notaryToken := fixture.issueToken(t, "notary-1", auth.RoleNotary)
	recorder := fixture.do(t, http.MethodPost, "/api/submissions/"+submission.ID+"/status",
		notaryToken, `{"status":"pending_payment"}`)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden for notary, got %d", recorder.Code)
	}

	adminToken := fixture.issueToken(t, "acct-admin", auth.RoleAdmin)
	recorder = fixture.do(t, http.MethodPost, "/api/submissions/"+submission.ID+"/status",
		adminToken, `{"status":"pending_payment"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ok for admin, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(t, recorder)
	if payload["status"] != "pending_payment" || payload["status_label"] != "Awaiting payment" {
		t.Fatalf("unexpected status payload: %v", payload)
	}
}

func TestIllegalTransitionMapsToConflict(t *testing.T) {
	fixture := newRouterFixture(t)

	submission, err := fixture.submissions.Create(context.Background(), submissions.CreateRequest{
		ClientEmail: "claire@example.com",
	})
	if err != nil {
		t.Fatalf("failed to create submission: %v", err)
	}

	adminToken := fixture.issueToken(t, "acct-admin", auth.RoleAdmin)
	recorder := fixture.do(t, http.MethodPost, "/api/submissions/"+submission.ID+"/status",
		adminToken, `{"status":"completed"}`)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected conflict for illegal transition, got %d", recorder.Code)
	}
	payload := decodeBody(t, recorder)
	if payload["code"] != "submissions.update_status.illegal_transition" {
		t.Fatalf("expected transition code, got %v", payload["code"])
	}
}

func TestFinanceRoutesAbsentWithoutAdminCapability(t *testing.T) {
	fixture := newRouterFixture(t)
	adminToken := fixture.issueToken(t, "acct-admin", auth.RoleAdmin)

	recorder := fixture.do(t, http.MethodGet, "/api/finance/kpis?month=2026-04", adminToken, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected finance routes to be unmounted, got %d", recorder.Code)
	}
	recorder = fixture.do(t, http.MethodGet, "/api/catalog/services", adminToken, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected catalog routes to be unmounted, got %d", recorder.Code)
	}
}

func TestCheckoutRouteAbsentWithoutBridge(t *testing.T) {
	fixture := newRouterFixture(t)

	recorder := fixture.do(t, http.MethodPost, "/checkout/session", "", `{}`)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected checkout route to be unmounted, got %d", recorder.Code)
	}
}

func TestUnreadCountReflectsClientMessages(t *testing.T) {
	fixture := newRouterFixture(t)
	ctx := context.Background()

	submission, err := fixture.submissions.Create(ctx, submissions.CreateRequest{
		ClientEmail: "claire@example.com",
	})
	if err != nil {
		t.Fatalf("failed to create submission: %v", err)
	}
	if _, err := fixture.messaging.Send(ctx, messaging.SendRequest{
		SubmissionID: submission.ID,
		SenderType:   messaging.SenderClient,
		SenderID:     "client-1",
		Content:      "quand est le rendez-vous ?",
	}); err != nil {
		t.Fatalf("failed to send message: %v", err)
	}

	adminToken := fixture.issueToken(t, "acct-admin", auth.RoleAdmin)
	recorder := fixture.do(t, http.MethodGet, "/api/messages/unread-count", adminToken, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ok status, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(t, recorder)
	if payload["unread"] != float64(1) {
		t.Fatalf("expected 1 unread message, got %v", payload["unread"])
	}

	recorder = fixture.do(t, http.MethodPost, "/api/submissions/"+submission.ID+"/messages/read", adminToken, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ok status marking read, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if payload := decodeBody(t, recorder); payload["updated"] != float64(1) {
		t.Fatalf("expected 1 updated message, got %v", payload["updated"])
	}

	recorder = fixture.do(t, http.MethodGet, "/api/messages/unread-count", adminToken, "")
	if payload := decodeBody(t, recorder); payload["unread"] != float64(0) {
		t.Fatalf("expected 0 unread after read, got %v", payload["unread"])
	}
}
