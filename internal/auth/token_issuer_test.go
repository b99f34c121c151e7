package auth

import (
	"context"
	"testing"
	"time"
)

func newTestIssuer(clock func() time.Time) *TokenIssuer {
	return NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "sigillo-auth",
		Audience:      "sigillo-api",
		TokenTTL:      30 * time.Minute,
		Clock:         clock,
	})
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	issuer := newTestIssuer(func() time.Time { return time.Unix(1770000000, 0).UTC() })

	token, expiresIn, err := issuer.IssueSessionToken(context.Background(), Identity{Subject: "notary-1", Role: RoleNotary})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expiresIn != int64((30 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expiry seconds: %d", expiresIn)
	}

	identity, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if identity.Subject != "notary-1" || identity.Role != RoleNotary {
		t.Fatalf("unexpected identity: %#v", identity)
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	now := time.Unix(1770000000, 0).UTC()
	issuer := newTestIssuer(func() time.Time { return now })

	token, _, err := issuer.IssueSessionToken(context.Background(), Identity{Subject: "admin-1", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now = now.Add(31 * time.Minute)
	if _, err := issuer.ValidateToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	clock := func() time.Time { return time.Unix(1770000000, 0).UTC() }
	issuer := newTestIssuer(clock)

	token, _, err := issuer.IssueSessionToken(context.Background(), Identity{Subject: "admin-1", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("different-secret"),
		Issuer:        "sigillo-auth",
		Audience:      "sigillo-api",
		Clock:         clock,
	})
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatalf("expected signature mismatch to be rejected")
	}
}

func TestIssueSessionTokenRequiresClaims(t *testing.T) {
	issuer := newTestIssuer(nil)

	if _, _, err := issuer.IssueSessionToken(context.Background(), Identity{Role: RoleAdmin}); err == nil {
		t.Fatalf("expected missing subject to be rejected")
	}
	if _, _, err := issuer.IssueSessionToken(context.Background(), Identity{Subject: "admin-1"}); err == nil {
		t.Fatalf("expected missing role to be rejected")
	}
}
