package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/service"
)

// mockTokenService 是用于测试的会话令牌服务模拟实现
type mockTokenService struct {
	sessions map[string]*service.SessionClaims
	expired  map[string]bool
	renew    bool
	issued   int
	failNew  bool
}

func newMockTokenService() *mockTokenService {
	return &mockTokenService{
		sessions: make(map[string]*service.SessionClaims),
		expired:  make(map[string]bool),
	}
}

func (m *mockTokenService) NewSession() (string, string, error) {
	if m.failNew {
		return "", "", errors.New("signing failed")
	}
	m.issued++
	id := "session-new"
	token, _ := m.Issue(id)
	return id, token, nil
}

func (m *mockTokenService) Issue(sessionID string) (string, error) {
	token := "token_" + sessionID
	m.sessions[token] = &service.SessionClaims{SessionID: sessionID}
	return token, nil
}

func (m *mockTokenService) Validate(token string) (*service.SessionClaims, error) {
	if m.expired[token] {
		return nil, service.ErrTokenExpired
	}
	claims, ok := m.sessions[token]
	if !ok {
		return nil, service.ErrInvalidToken
	}
	return claims, nil
}

func (m *mockTokenService) NeedsRenewal(claims *service.SessionClaims) bool {
	return m.renew
}

func setupSessionRouter(tokens service.SessionTokenService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CartSession(tokens, zap.NewNop()))
	router.GET("/test", func(c *gin.Context) {
		// gin 上下文与请求上下文中的会话 ID 必须一致
		if CartSessionFromContext(c.Request.Context()) != CartSessionID(c) {
			c.Status(http.StatusConflict)
			return
		}
		c.Header("X-Test-New", strconv.FormatBool(c.GetBool(ContextKeyNewCartSession)))
		c.String(http.StatusOK, CartSessionID(c))
	})
	return router
}

func TestCartSession(t *testing.T) {
	tokens := newMockTokenService()
	existing, _ := tokens.Issue("session-1")
	tokens.expired["token_stale"] = true

	tests := []struct {
		name        string
		header      string
		renew       bool
		wantSession string
		wantHeader  string
		wantNew     bool
	}{
		{"no token starts session", "", false, "session-new", "token_session-new", true},
		{"valid token kept", existing, false, "session-1", "", false},
		{"valid token renewed", existing, true, "session-1", existing, false},
		{"expired token replaced", "token_stale", false, "session-new", "token_session-new", true},
		{"garbage token replaced", "garbage", false, "session-new", "token_session-new", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens.renew = tt.renew
			router := setupSessionRouter(tokens)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set(HeaderCartSession, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if w.Body.String() != tt.wantSession {
				t.Errorf("session = %q, want %q", w.Body.String(), tt.wantSession)
			}
			if got := w.Header().Get(HeaderCartSession); got != tt.wantHeader {
				t.Errorf("response token = %q, want %q", got, tt.wantHeader)
			}
			if got := w.Header().Get("X-Test-New"); got != strconv.FormatBool(tt.wantNew) {
				t.Errorf("new session flag = %s, want %v", got, tt.wantNew)
			}
		})
	}
}

func TestCartSession_IssueFailure(t *testing.T) {
	tokens := newMockTokenService()
	tokens.failNew = true
	router := setupSessionRouter(tokens)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestLogFields(t *testing.T) {
	ctx := withRequestID(context.Background(), "req-1")
	if got := LogFields(ctx); len(got) != 1 || got[0].String != "req-1" {
		t.Fatalf("unexpected fields without session: %+v", got)
	}

	ctx = withCartSession(ctx, "session-1")
	got := LogFields(ctx)
	if len(got) != 2 || got[1].Key != "cart_session" || got[1].String != "session-1" {
		t.Errorf("unexpected fields with session: %+v", got)
	}
}
