package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

const testAccount = "00000000-0000-0000-0000-00000000000a"

func TestVerifierSignAndVerify(t *testing.T) {
	verifier, err := NewVerifier("secret")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token, err := verifier.Sign(testAccount, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	accountID, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if accountID != testAccount {
		t.Fatalf("expected %s got %s", testAccount, accountID)
	}
}

func TestVerifierRejects(t *testing.T) {
	verifier, _ := NewVerifier("secret")
	other, _ := NewVerifier("other-secret")

	foreign, err := other.Sign(testAccount, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	expired, err := verifier.Sign(testAccount, -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	badSubject, err := verifier.Sign("not-an-account", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	for name, token := range map[string]string{
		"garbage":    "not.a.token",
		"wrongKey":   foreign,
		"expired":    expired,
		"badSubject": badSubject,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken got %v", err)
			}
		})
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewVerifier("  "); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret got %v", err)
	}
}

func TestAccountIDContext(t *testing.T) {
	if _, ok := AccountIDFromContext(context.Background()); ok {
		t.Fatal("expected no account on empty context")
	}

	ctx := WithAccountID(context.Background(), testAccount)
	accountID, ok := AccountIDFromContext(ctx)
	if !ok || accountID != testAccount {
		t.Fatalf("unexpected account %q %v", accountID, ok)
	}
}
