package local

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/venturecamp/internal/app/system/identity"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New([]byte("test-signing-key-0123456789"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestNew_RejectsShortKey(t *testing.T) {
	if _, err := New([]byte("short")); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestSignUp_ThenSignIn(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	res, err := b.SignUp(ctx, "Camper@Example.com", "secret1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if res.User.Email != "camper@example.com" {
		t.Errorf("email = %q, want normalized", res.User.Email)
	}
	if res.IDToken == "" {
		t.Error("expected an ID token")
	}

	in, err := b.SignInWithPassword(ctx, "camper@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	if in.User.UID != res.User.UID {
		t.Errorf("uid = %q, want %q", in.User.UID, res.User.UID)
	}
}

func TestSignUp_Errors(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	if _, err := b.SignUp(ctx, "a@b.co", "secret1"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		code     string
	}{
		{"duplicate", "a@b.co", "secret1", identity.CodeEmailInUse},
		{"bad email", "not-an-email", "secret1", identity.CodeInvalidEmail},
		{"weak password", "c@d.co", "12345", identity.CodeWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.SignUp(ctx, tt.email, tt.password)
			if got := identity.Code(err); got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}
	if n := b.Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestSignIn_WrongPasswordAndUnknownUser(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	b.SignUp(ctx, "a@b.co", "secret1")

	_, err := b.SignInWithPassword(ctx, "a@b.co", "wrong-password")
	if got := identity.Code(err); got != identity.CodeInvalidCredential {
		t.Errorf("wrong password code = %q", got)
	}
	_, err = b.SignInWithPassword(ctx, "nobody@b.co", "secret1")
	if got := identity.Code(err); got != identity.CodeInvalidCredential {
		t.Errorf("unknown user code = %q", got)
	}
}

func TestSignIn_Disabled(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	b.SignUp(ctx, "a@b.co", "secret1")
	b.Disable("a@b.co")

	_, err := b.SignInWithPassword(ctx, "a@b.co", "secret1")
	if got := identity.Code(err); got != identity.CodeUserDisabled {
		t.Errorf("code = %q, want %q", got, identity.CodeUserDisabled)
	}
}

func TestSessionCookie_RoundTrip(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	res, _ := b.SignUp(ctx, "a@b.co", "secret1")

	cookie, err := b.SessionCookie(ctx, res.IDToken, 5*24*time.Hour)
	if err != nil {
		t.Fatalf("SessionCookie: %v", err)
	}
	tok, err := b.VerifySessionCookie(ctx, cookie)
	if err != nil {
		t.Fatalf("VerifySessionCookie: %v", err)
	}
	if tok.UID != res.User.UID {
		t.Errorf("uid = %q, want %q", tok.UID, res.User.UID)
	}
	if tok.SignInProvider != "password" {
		t.Errorf("provider = %q", tok.SignInProvider)
	}

	// An ID token is not a session cookie and the reverse.
	if _, err := b.VerifySessionCookie(ctx, res.IDToken); err == nil {
		t.Error("ID token accepted as session cookie")
	}
	if _, err := b.VerifyIDToken(ctx, cookie); err == nil {
		t.Error("session cookie accepted as ID token")
	}
}

func TestSessionCookie_SharedKeyAcrossBackends(t *testing.T) {
	ctx := context.Background()
	minter := newBackend(t)
	server := newBackend(t)

	res, _ := minter.SignUp(ctx, "a@b.co", "secret1")
	cookie, err := server.SessionCookie(ctx, res.IDToken, 24*time.Hour)
	if err != nil {
		t.Fatalf("SessionCookie: %v", err)
	}
	if _, err := server.VerifySessionCookie(ctx, cookie); err != nil {
		t.Fatalf("VerifySessionCookie: %v", err)
	}

	other, _ := New([]byte("a-different-key-0123456789"))
	if _, err := other.VerifySessionCookie(ctx, cookie); err == nil {
		t.Error("cookie accepted under a different key")
	}
}

func TestSessionCookie_RejectsBadInput(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	res, _ := b.SignUp(ctx, "a@b.co", "secret1")

	if _, err := b.SessionCookie(ctx, "garbage", time.Hour); identity.Code(err) != identity.CodeInvalidIDToken {
		t.Errorf("garbage token: %v", err)
	}
	if _, err := b.SessionCookie(ctx, res.IDToken, time.Minute); err == nil {
		t.Error("expected error for too-short duration")
	}
}

func TestVerifyIDToken_Expired(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	res, _ := b.SignUp(ctx, "a@b.co", "secret1")

	b.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	if _, err := b.VerifyIDToken(ctx, res.IDToken); identity.Code(err) != identity.CodeInvalidIDToken {
		t.Errorf("expired token: %v", err)
	}
}

func TestSignInWithIdp_LinksByEmail(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	pw, _ := b.SignUp(ctx, "a@b.co", "secret1")

	res, err := b.SignInWithIdp(ctx, identity.FederatedCredential{
		Provider:      identity.Google,
		Subject:       "g-123",
		Email:         "A@b.co",
		EmailVerified: true,
		DisplayName:   "Ada",
	})
	if err != nil {
		t.Fatalf("SignInWithIdp: %v", err)
	}
	if res.User.UID != pw.User.UID {
		t.Errorf("uid = %q, want linked %q", res.User.UID, pw.User.UID)
	}
	if res.User.DisplayName != "Ada" {
		t.Errorf("display name = %q", res.User.DisplayName)
	}
	if len(res.User.Providers) != 2 {
		t.Errorf("providers = %v", res.User.Providers)
	}

	again, _ := b.SignInWithIdp(ctx, identity.FederatedCredential{Provider: identity.Google, Subject: "g-123"})
	if again.User.UID != pw.User.UID {
		t.Error("second federated sign-in should reuse the account")
	}
	if b.Count() != 1 {
		t.Errorf("Count() = %d, want 1", b.Count())
	}
}

func TestSignInWithIdp_UnverifiedEmailDoesNotLink(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	b.SignUp(ctx, "a@b.co", "secret1")

	_, err := b.SignInWithIdp(ctx, identity.FederatedCredential{
		Provider: identity.Facebook,
		Subject:  "fb-1",
		Email:    "a@b.co",
	})
	if got := identity.Code(err); got != identity.CodeAccountExists {
		t.Fatalf("code = %q, want %q", got, identity.CodeAccountExists)
	}
	if b.Count() != 1 {
		t.Errorf("Count() = %d, want 1", b.Count())
	}

	// The subject was not recorded, so a later verified sign-in still links.
	res, err := b.SignInWithIdp(ctx, identity.FederatedCredential{
		Provider:      identity.Facebook,
		Subject:       "fb-1",
		Email:         "a@b.co",
		EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("verified SignInWithIdp: %v", err)
	}
	if len(res.User.Providers) != 2 {
		t.Errorf("providers = %v", res.User.Providers)
	}
}

func TestUpdateDisplayName(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	res, _ := b.SignUp(ctx, "a@b.co", "secret1")

	u, err := b.UpdateDisplayName(ctx, res.IDToken, "Ada Lovelace")
	if err != nil {
		t.Fatalf("UpdateDisplayName: %v", err)
	}
	if u.DisplayName != "Ada Lovelace" {
		t.Errorf("display name = %q", u.DisplayName)
	}
}

func TestSendPasswordReset(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	b.SignUp(ctx, "a@b.co", "secret1")

	if err := b.SendPasswordReset(ctx, "a@b.co"); err != nil {
		t.Fatalf("SendPasswordReset: %v", err)
	}
	if err := b.SendPasswordReset(ctx, "nobody@b.co"); identity.Code(err) != identity.CodeUserNotFound {
		t.Errorf("unknown email: %v", err)
	}
	if got := b.Resets(); len(got) != 1 || got[0] != "a@b.co" {
		t.Errorf("Resets() = %v", got)
	}
}
