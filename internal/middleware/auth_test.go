package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"studyloop-backend/internal/models"
)

func authedRequest(t *testing.T, j *JWTAuth, token string) (*httptest.ResponseRecorder, uuid.UUID) {
	t.Helper()

	var seen uuid.UUID
	handler := j.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/overview", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr, seen
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error.Code
}

func TestJWTAuth_RoundTrip(t *testing.T) {
	j := NewJWTAuth("round-trip-secret")
	userID := uuid.New()

	token, err := j.GenerateAccessToken(userID, "ada@studyloop.app")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	rr, seen := authedRequest(t, j, token)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if seen != userID {
		t.Fatalf("context user = %s, want %s", seen, userID)
	}
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	j := NewJWTAuth("secret")

	rr, _ := authedRequest(t, j, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %q", code)
	}
}

func TestJWTAuth_ExpiredToken(t *testing.T) {
	j := NewJWTAuth("secret")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.New().String(),
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	token, err := expired.SignedString(j.Secret)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	rr, _ := authedRequest(t, j, token)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "TOKEN_EXPIRED" {
		t.Fatalf("expected TOKEN_EXPIRED, got %q", code)
	}
}

func TestJWTAuth_RejectsWrongAlgorithm(t *testing.T) {
	j := NewJWTAuth("secret")

	// HS384 is a valid HMAC method but not the one this service mints.
	other := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.MapClaims{
		"user_id": uuid.New().String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	token, err := other.SignedString(j.Secret)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	rr, _ := authedRequest(t, j, token)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %q", code)
	}
}

func TestJWTAuth_TamperedSignature(t *testing.T) {
	minter := NewJWTAuth("the-real-secret")
	verifier := NewJWTAuth("a-different-secret")

	token, err := minter.GenerateAccessToken(uuid.New(), "mallory@studyloop.app")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	rr, _ := authedRequest(t, verifier, token)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
