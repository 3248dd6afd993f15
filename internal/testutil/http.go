// internal/testutil/http.go
package testutil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/labflow/internal/app/system/auth"
	"github.com/golang-jwt/jwt/v5"
)

// TestSecret signs every token produced by SignToken.
const TestSecret = "test-token-secret-must-be-32-chars-long"

// SignToken issues an HS256 token for userID the way the login service does.
func SignToken(t *testing.T, secret string, userID int64, deviceID string) string {
	t.Helper()
	return signToken(t, secret, userID, deviceID, "operator", time.Now().Add(time.Hour))
}

// SignAdminToken issues a token carrying the admin role.
func SignAdminToken(t *testing.T, secret string, userID int64) string {
	t.Helper()
	return signToken(t, secret, userID, "", "admin", time.Now().Add(time.Hour))
}

// SignExpiredToken issues a token that expired a minute ago.
func SignExpiredToken(t *testing.T, secret string, userID int64) string {
	t.Helper()
	return signToken(t, secret, userID, "", "operator", time.Now().Add(-time.Minute))
}

func signToken(t *testing.T, secret string, userID int64, deviceID, role string, exp time.Time) string {
	t.Helper()
	claims := auth.Claims{
		DeviceID: deviceID,
		Name:     "User " + strconv.FormatInt(userID, 10),
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// WithUser adds an identity to the request context for testing authenticated handlers.
// This bypasses the bearer middleware and injects the user directly.
func WithUser(r *http.Request, userID int64) *http.Request {
	return auth.WithTestUser(r, &auth.Identity{
		UserID: userID,
		Name:   "User " + strconv.FormatInt(userID, 10),
		Role:   "operator",
	})
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewAuthenticatedRequest creates an HTTP request with a user in context.
// A non-empty body is sent as JSON.
func NewAuthenticatedRequest(method, target, body string, userID int64) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return WithUser(req, userID)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d (body %q)", r.Code, expected, r.Body.String())
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if body := r.Body.String(); !strings.Contains(body, expected) {
		t.Errorf("response body %q does not contain %q", body, expected)
	}
}
