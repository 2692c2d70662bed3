package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/capitalize-ai/chatrooms/pkg/logger"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject string, scopes ...string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scopes: scopes,
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-User", GetUserID(r.Context()))
	w.WriteHeader(http.StatusOK)
})

func TestAuth(t *testing.T) {
	h := Auth(testSecret)(okHandler)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"bad format", "Token abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other", "u1"), http.StatusUnauthorized},
		{"no subject", "Bearer " + signToken(t, testSecret, ""), http.StatusUnauthorized},
		{"valid", "Bearer " + signToken(t, testSecret, "u1"), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "u1", rec.Header().Get("X-User"))
			} else {
				assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)
			}
		})
	}
}

func TestRequireScope(t *testing.T) {
	h := Auth(testSecret)(RequireScope(ScopeChatWrite)(okHandler))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "u1", "chat:read"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "u1", "chat:read", ScopeChatWrite))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoggingCorrelationAndUser(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &logger.Logger{Logger: zap.New(core)}

	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})
	h := Logging(log)(Auth(testSecret)(inner))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "u42"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	id := rec.Header().Get(CorrelationIDHeader)
	require.NotEmpty(t, id)
	assert.Equal(t, id, seen)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "u42", fields["user_id"])
	assert.Equal(t, id, fields["correlation_id"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
}

func TestLoggingKeepsIncomingCorrelationID(t *testing.T) {
	h := Logging(logger.NewNop())(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(CorrelationIDHeader))
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(1, time.Minute)(okHandler)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "rate_limited")
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/rooms", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	CORS()(okHandler).ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestValidation(t *testing.T) {
	assert.NoError(t, ValidateRoomID("room-1"))
	assert.Error(t, ValidateRoomID("room 1"))

	assert.NoError(t, ValidatePrompt(""))
	assert.NoError(t, ValidatePrompt("hello"))
	assert.Error(t, ValidatePrompt(strings.Repeat("x", MaxPromptBytes+1)))
	assert.Error(t, ValidatePrompt(string([]byte{0xff, 0xfe})))

	assert.NoError(t, ValidateTitle("Team sync"))
	assert.Error(t, ValidateTitle(strings.Repeat("t", 257)))
}
