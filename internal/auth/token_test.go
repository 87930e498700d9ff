// ABOUTME: Unit tests for JWT token verification and generation
// ABOUTME: Tests valid tokens, invalid tokens, expired tokens and role claims

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-for-jwt-signing!")

func newTestVerifier(t *testing.T) *JWTVerifier {
	t.Helper()
	verifier, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	return verifier
}

func TestNewJWTVerifier_ShortSecret(t *testing.T) {
	_, err := NewJWTVerifier([]byte("short"))
	if !errors.Is(err, ErrShortSecret) {
		t.Errorf("NewJWTVerifier() error = %v, want ErrShortSecret", err)
	}
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := newTestVerifier(t)

	token, err := verifier.Generate("ops", []string{RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	authCtx, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if authCtx.Subject != "ops" {
		t.Errorf("Subject = %q, want %q", authCtx.Subject, "ops")
	}
	if !authCtx.IsAdmin() {
		t.Errorf("Roles = %v, want admin", authCtx.Roles)
	}
}

func TestJWTVerifier_NoRoles(t *testing.T) {
	verifier := newTestVerifier(t)

	token, err := verifier.Generate("viewer", nil, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	authCtx, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if authCtx.IsAdmin() {
		t.Error("IsAdmin() = true for a token without roles")
	}
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier := newTestVerifier(t)

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "empty token",
			token: "",
		},
		{
			name:  "garbage token",
			token: "not-a-jwt-token",
		},
		{
			name:  "malformed JWT",
			token: "header.payload.signature",
		},
		{
			name: "wrong secret",
			token: func() string {
				other, _ := NewJWTVerifier([]byte("a-completely-different-secret-32"))
				token, _ := other.Generate("ops", []string{RoleAdmin}, time.Hour)
				return token
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier := newTestVerifier(t)
	verifier.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := verifier.Generate("ops", []string{RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	verifier.now = time.Now
	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTVerifier_MissingSubject(t *testing.T) {
	verifier := newTestVerifier(t)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Verify() error = %v, want ErrMissingClaim", err)
	}
}

func TestJWTVerifier_RejectsOtherAlgorithms(t *testing.T) {
	verifier := newTestVerifier(t)

	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}
