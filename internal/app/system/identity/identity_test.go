package identity_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dalemusser/venturecamp/internal/app/system/identity"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{identity.CodeInvalidCredential, "Invalid email or password"},
		{identity.CodeWrongPassword, "Invalid email or password"},
		{identity.CodeUserNotFound, "No account found with this email"},
		{identity.CodeEmailInUse, "An account already exists with this email"},
		{identity.CodeWeakPassword, "Password should be at least 6 characters"},
		{identity.CodeTooManyRequests, "Too many failed attempts. Please try again later"},
		{identity.CodePopupClosed, "Sign-in popup was closed"},
		{identity.CodeInvalidState, identity.GenericMessage},
		{"auth/something-new", identity.GenericMessage},
		{"", identity.GenericMessage},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := identity.Message(tt.code); got != tt.want {
				t.Errorf("Message(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestCode_Wrapped(t *testing.T) {
	base := identity.NewError("signIn", identity.CodeUserDisabled, nil)
	err := fmt.Errorf("login handler: %w", base)

	if got := identity.Code(err); got != identity.CodeUserDisabled {
		t.Errorf("Code() = %q, want %q", got, identity.CodeUserDisabled)
	}
	if got := identity.UserMessage(err); got != "This account has been disabled" {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := identity.Code(errors.New("plain")); got != "" {
		t.Errorf("Code(plain) = %q, want empty", got)
	}
}

func TestParseProvider(t *testing.T) {
	for _, p := range identity.Providers() {
		got, err := identity.ParseProvider(p.String())
		if err != nil {
			t.Fatalf("ParseProvider(%q) error: %v", p.String(), err)
		}
		if got != p {
			t.Errorf("ParseProvider(%q) = %v, want %v", p.String(), got, p)
		}
		if p.ProviderID() == "" {
			t.Errorf("%v has empty provider id", p)
		}
	}

	if _, err := identity.ParseProvider("  GitHub "); err != nil {
		t.Errorf("expected case-insensitive parse, got %v", err)
	}
	if _, err := identity.ParseProvider("twitter"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

type countingVerifier struct{}

func (countingVerifier) VerifyIDToken(ctx context.Context, idToken string) (*identity.Token, error) {
	return &identity.Token{UID: idToken}, nil
}

func (countingVerifier) SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	return "cookie-" + idToken, nil
}

func (countingVerifier) VerifySessionCookie(ctx context.Context, cookie string) (*identity.Token, error) {
	return &identity.Token{UID: cookie}, nil
}

func TestLazy_InitializesOnce(t *testing.T) {
	calls := 0
	lazy := identity.NewLazy(func(ctx context.Context) (identity.Verifier, error) {
		calls++
		return countingVerifier{}, nil
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := lazy.VerifyIDToken(ctx, "tok"); err != nil {
			t.Fatalf("VerifyIDToken: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("init called %d times, want 1", calls)
	}
}

func TestLazy_RetriesAfterFailure(t *testing.T) {
	calls := 0
	lazy := identity.NewLazy(func(ctx context.Context) (identity.Verifier, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("credentials missing")
		}
		return countingVerifier{}, nil
	})

	ctx := context.Background()
	_, err := lazy.SessionCookie(ctx, "tok", time.Hour)
	if !errors.Is(err, identity.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	cookie, err := lazy.SessionCookie(ctx, "tok", time.Hour)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if cookie != "cookie-tok" {
		t.Errorf("cookie = %q", cookie)
	}
}
