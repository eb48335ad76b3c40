package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zwubman/software-company-sub002/internal/cache"
	"github.com/Zwubman/software-company-sub002/internal/config"
	"github.com/Zwubman/software-company-sub002/internal/domain"
	"github.com/Zwubman/software-company-sub002/internal/hub"
	"github.com/Zwubman/software-company-sub002/internal/identity"
	"github.com/Zwubman/software-company-sub002/internal/service"
	"github.com/Zwubman/software-company-sub002/internal/store"
)

type stubValidator struct {
	tokens map[string]*identity.Identity
}

func (v *stubValidator) Validate(ctx context.Context, credential string) (*identity.Identity, error) {
	if ident, ok := v.tokens[credential]; ok {
		return ident, nil
	}
	return nil, domain.ErrInvalidCredential
}

// stubRegistry serves lookups from a fixed table.
type stubRegistry struct {
	addrs map[string]string
}

func (s *stubRegistry) Register(ctx context.Context, conversationID string) error   { return nil }
func (s *stubRegistry) Deregister(ctx context.Context, conversationID string) error { return nil }
func (s *stubRegistry) Lookup(ctx context.Context, conversationID string) (string, error) {
	return s.addrs[conversationID], nil
}
func (s *stubRegistry) StartHeartbeat(ctx context.Context) error { return nil }
func (s *stubRegistry) StopHeartbeat()                           {}
func (s *stubRegistry) Close() error                             { return nil }

func newTestEngine(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	conv, err := st.EnsureConversation(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ensure conversation: %v", err)
	}
	for _, body := range []string{"hello", "anyone there?"} {
		if _, _, err := st.Append(context.Background(), conv.ID, "user-1", domain.RoleUser, body, body); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	validator := &stubValidator{tokens: map[string]*identity.Identity{
		"user-token":  {ParticipantID: "user-1", Role: domain.RoleUser},
		"user2-token": {ParticipantID: "user-2", Role: domain.RoleUser},
		"agent-token": {ParticipantID: "agent-1", Role: domain.RoleAgent},
	}}
	reg := &stubRegistry{addrs: map[string]string{conv.ID: "10.0.0.5:8080"}}

	wsCfg := config.WebSocketConfig{SendQueueSize: 8}
	wsH := NewWSHandler(hub.NewHub(wsCfg), nil, wsCfg)
	historySvc := service.NewHistoryService(st, cache.NewNoopHistoryCache(), time.Minute)

	engine := gin.New()
	NewHTTPHandler(historySvc, validator, reg, wsH, 100).RegisterRoutes(engine)
	return engine, conv.ID
}

func doRequest(t *testing.T, engine *gin.Engine, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Success {
		t.Fatalf("response not successful: %s", rec.Body.String())
	}
	return envelope.Data
}

func TestGetMessagesAccess(t *testing.T) {
	engine, convID := newTestEngine(t)
	path := "/api/v1/conversations/" + convID + "/messages"

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"no token", path, "", http.StatusUnauthorized},
		{"owner", path, "user-token", http.StatusOK},
		{"agent", path, "agent-token", http.StatusOK},
		{"other user", path, "user2-token", http.StatusForbidden},
		{"unknown conversation", "/api/v1/conversations/missing/messages", "agent-token", http.StatusNotFound},
		{"bad after", path + "?after=-1", "user-token", http.StatusBadRequest},
		{"bad limit", path + "?limit=zero", "user-token", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, engine, tt.path, tt.token)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestGetMessagesReturnsPage(t *testing.T) {
	engine, convID := newTestEngine(t)

	rec := doRequest(t, engine, "/api/v1/conversations/"+convID+"/messages", "user-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	data := decodeData(t, rec)
	messages, ok := data["messages"].([]interface{})
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %v, want 2 entries", data["messages"])
	}
	if data["has_more"] != false {
		t.Errorf("has_more = %v, want false", data["has_more"])
	}
}

func TestGetPresence(t *testing.T) {
	engine, convID := newTestEngine(t)

	// Presence is for the agent console only.
	if rec := doRequest(t, engine, "/api/v1/conversations/"+convID+"/presence", "user-token"); rec.Code != http.StatusForbidden {
		t.Errorf("user presence status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec := doRequest(t, engine, "/api/v1/conversations/"+convID+"/presence", "agent-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	data := decodeData(t, rec)
	if data["online"] != true || data["instance"] != "10.0.0.5:8080" {
		t.Errorf("unexpected presence payload: %v", data)
	}

	rec = doRequest(t, engine, "/api/v1/conversations/idle-conv/presence", "agent-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if data := decodeData(t, rec); data["online"] != false {
		t.Errorf("idle conversation reported online: %v", data)
	}
}
