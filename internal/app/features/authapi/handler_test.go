package authapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/venturecamp/internal/app/features/authapi"
	"github.com/dalemusser/venturecamp/internal/app/store/audit"
	"github.com/dalemusser/venturecamp/internal/app/system/auditlog"
	"github.com/dalemusser/venturecamp/internal/app/system/federated"
	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/app/system/identity/local"
	"github.com/dalemusser/venturecamp/internal/app/system/ratelimit"
	"github.com/dalemusser/venturecamp/internal/app/system/session"
	"github.com/dalemusser/venturecamp/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

type fakeFlow struct {
	cred identity.FederatedCredential
}

func (f fakeFlow) AuthCodeURL(state string) string {
	return "https://provider.example.com/auth?state=" + url.QueryEscape(state)
}

func (f fakeFlow) Exchange(ctx context.Context, code string) (identity.FederatedCredential, error) {
	return f.cred, nil
}

type auditSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *auditSink) Log(_ context.Context, e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *auditSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	router   http.Handler
	backend  *local.Backend
	profiles *testutil.MemoryProfiles
	audit    *auditSink
}

func newFixture(t *testing.T, limiter *ratelimit.Limiter) *fixture {
	t.Helper()
	b, err := local.New([]byte("authapi-test-signing-key"))
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	profiles := testutil.NewMemoryProfiles()
	reg := federated.NewRegistry("http://localhost:8080", nil)
	reg.Register(identity.Google, fakeFlow{cred: identity.FederatedCredential{
		Provider:    identity.Google,
		AccessToken: "access",
		Subject:     "g-1",
		Email:       "grace@example.com",
		DisplayName: "Grace",
	}})

	sink := &auditSink{}
	h := authapi.NewHandler(authapi.Config{
		Backend:   b,
		Profiles:  profiles,
		States:    testutil.NewMemoryStates(),
		Providers: reg,
		Issuer:    session.NewIssuer(b, session.Cookies{}, nil),
		Limiter:   limiter,
		Public:    authapi.PublicConfig{APIKey: "public-key", ProjectID: "venturecamp-dev"},
		Audit:     auditlog.New(sink, zap.NewNop(), auditlog.Config{Auth: auditlog.ModeDB}),
		Log:       zap.NewNop(),
	})
	return &fixture{router: authapi.Routes(h), backend: b, profiles: profiles, audit: sink}
}

func (f *fixture) do(req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) postJSON(t *testing.T, path string, body any) *testutil.ResponseRecorder {
	t.Helper()
	return f.do(testutil.NewJSONRequest(http.MethodPost, path, body))
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestRegister_CreatesIdentityProfileAndSession(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.postJSON(t, "/register", map[string]string{
		"email": "Camper@Example.com", "password": "secret1", "displayName": "  Casey <b>C</b> ",
	})
	rec.AssertStatus(t, http.StatusOK)

	var body struct {
		User    identity.User `json:"user"`
		Profile struct {
			UID         string `json:"uid"`
			DisplayName string `json:"displayName"`
			Role        string `json:"role"`
		} `json:"profile"`
	}
	rec.DecodeJSON(t, &body)

	if body.User.Email != "camper@example.com" || body.User.DisplayName != "Casey C" {
		t.Errorf("user = %+v", body.User)
	}
	if body.Profile.UID != body.User.UID || body.Profile.Role != "participant" {
		t.Errorf("profile = %+v", body.Profile)
	}
	if f.backend.Count() != 1 || f.profiles.Len() != 1 {
		t.Errorf("identities=%d profiles=%d, want 1 each", f.backend.Count(), f.profiles.Len())
	}
	if c := rec.SessionCookie("__session"); c == nil || c.Value == "" {
		t.Error("session cookie not set")
	}
}

func TestRegister_Errors(t *testing.T) {
	f := newFixture(t, nil)
	f.postJSON(t, "/register", map[string]string{"email": "dup@example.com", "password": "secret1"}).
		AssertStatus(t, http.StatusOK)

	tests := []struct {
		name   string
		body   map[string]string
		status int
		want   errorBody
	}{
		{"weak password", map[string]string{"email": "a@example.com", "password": "123"},
			http.StatusBadRequest, errorBody{"Password should be at least 6 characters", identity.CodeWeakPassword}},
		{"bad email", map[string]string{"email": "nope", "password": "secret1"},
			http.StatusBadRequest, errorBody{"Invalid email address", identity.CodeInvalidEmail}},
		{"duplicate", map[string]string{"email": "dup@example.com", "password": "secret1"},
			http.StatusConflict, errorBody{"An account already exists with this email", identity.CodeEmailInUse}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.postJSON(t, "/register", tt.body)
			rec.AssertStatus(t, tt.status)
			var got errorBody
			rec.DecodeJSON(t, &got)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
			if rec.SessionCookie("__session") != nil {
				t.Error("session cookie set on failure")
			}
		})
	}
	if f.backend.Count() != 1 {
		t.Errorf("identities = %d, want 1", f.backend.Count())
	}
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t, nil)
	f.postJSON(t, "/register", map[string]string{"email": "camper@example.com", "password": "secret1"})

	rec := f.postJSON(t, "/login", map[string]any{"email": "camper@example.com", "password": "secret1", "remember": false})
	rec.AssertStatus(t, http.StatusOK)

	var body struct {
		User    identity.User `json:"user"`
		Profile struct {
			UID string `json:"uid"`
		} `json:"profile"`
	}
	rec.DecodeJSON(t, &body)
	if body.User.UID == "" || body.User.UID != body.Profile.UID {
		t.Errorf("user uid %q, profile uid %q", body.User.UID, body.Profile.UID)
	}

	c := rec.SessionCookie("__session")
	if c == nil {
		t.Fatal("session cookie not set")
	}
	if c.MaxAge != 0 {
		t.Errorf("MaxAge = %d, want session-only cookie", c.MaxAge)
	}
}

func TestLogin_WrongPasswordLeavesProfilesUntouched(t *testing.T) {
	f := newFixture(t, nil)
	f.postJSON(t, "/register", map[string]string{"email": "camper@example.com", "password": "secret1"})
	before := f.profiles.CallCount()

	rec := f.postJSON(t, "/login", map[string]string{"email": "camper@example.com", "password": "wrong-pass"})
	rec.AssertStatus(t, http.StatusUnauthorized)

	var got errorBody
	rec.DecodeJSON(t, &got)
	if got.Error != "Invalid email or password" {
		t.Errorf("error = %q", got.Error)
	}
	if f.profiles.CallCount() != before {
		t.Errorf("profile store touched: %d calls, want %d", f.profiles.CallCount(), before)
	}
	if rec.SessionCookie("__session") != nil {
		t.Error("session cookie set on failed login")
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	f := newFixture(t, nil)
	f.postJSON(t, "/register", map[string]string{"email": "camper@example.com", "password": "secret1"})
	f.backend.Disable("camper@example.com")

	rec := f.postJSON(t, "/login", map[string]string{"email": "camper@example.com", "password": "secret1"})
	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertContains(t, identity.CodeUserDisabled)
}

func TestLogin_RateLimited(t *testing.T) {
	limiter := ratelimit.PerMinute(1, time.Minute)
	t.Cleanup(limiter.Stop)
	f := newFixture(t, limiter)

	body := map[string]string{"email": "camper@example.com", "password": "secret1"}
	f.postJSON(t, "/login", body).AssertStatus(t, http.StatusUnauthorized)

	rec := f.postJSON(t, "/login", body)
	rec.AssertStatus(t, http.StatusTooManyRequests)
	var got errorBody
	rec.DecodeJSON(t, &got)
	if got.Code != identity.CodeTooManyRequests || got.Error != "Too many failed attempts. Please try again later" {
		t.Errorf("body = %+v", got)
	}
}

func TestLogin_SuccessResetsLimiter(t *testing.T) {
	limiter := ratelimit.PerMinute(2, time.Minute)
	t.Cleanup(limiter.Stop)
	f := newFixture(t, limiter)
	f.postJSON(t, "/register", map[string]string{"email": "camper@example.com", "password": "secret1"})

	wrong := map[string]string{"email": "camper@example.com", "password": "nope-nope"}
	right := map[string]string{"email": "camper@example.com", "password": "secret1"}

	f.postJSON(t, "/login", wrong).AssertStatus(t, http.StatusUnauthorized)
	if n := limiter.Len(); n != 1 {
		t.Fatalf("Len() after failure = %d, want 1", n)
	}
	f.postJSON(t, "/login", right).AssertStatus(t, http.StatusOK)
	if n := limiter.Len(); n != 0 {
		t.Errorf("Len() after success = %d, want 0", n)
	}

	// The bucket starts full again: two more failures fit before the block.
	f.postJSON(t, "/login", wrong).AssertStatus(t, http.StatusUnauthorized)
	f.postJSON(t, "/login", wrong).AssertStatus(t, http.StatusUnauthorized)
	f.postJSON(t, "/login", wrong).AssertStatus(t, http.StatusTooManyRequests)
}

func TestForgotPassword(t *testing.T) {
	f := newFixture(t, nil)
	f.postJSON(t, "/register", map[string]string{"email": "camper@example.com", "password": "secret1"})

	f.postJSON(t, "/forgot-password", map[string]string{"email": "camper@example.com"}).AssertStatus(t, http.StatusOK)
	f.postJSON(t, "/forgot-password", map[string]string{"email": "nobody@example.com"}).AssertStatus(t, http.StatusOK)
	f.postJSON(t, "/forgot-password", map[string]string{"email": "not-an-email"}).AssertStatus(t, http.StatusBadRequest)

	if diff := cmp.Diff([]string{"camper@example.com"}, f.backend.Resets()); diff != "" {
		t.Errorf("resets mismatch (-want +got):\n%s", diff)
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(testutil.NewRequest(http.MethodPost, "/logout"))
	rec.AssertStatus(t, http.StatusOK)
	c := rec.SessionCookie("__session")
	if c == nil || c.MaxAge != -1 {
		t.Errorf("cookie = %+v, want expired", c)
	}
}

func TestConfig_ListsConfiguredProviders(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(testutil.NewRequest(http.MethodGet, "/config"))
	rec.AssertStatus(t, http.StatusOK)

	var got authapi.PublicConfig
	rec.DecodeJSON(t, &got)
	want := authapi.PublicConfig{APIKey: "public-key", ProjectID: "venturecamp-dev", Providers: []string{"google"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestMe(t *testing.T) {
	f := newFixture(t, nil)

	f.do(testutil.NewRequest(http.MethodGet, "/me")).AssertStatus(t, http.StatusUnauthorized)

	req := testutil.WithUser(testutil.NewRequest(http.MethodGet, "/me"), testutil.MentorUser())
	rec := f.do(req)
	rec.AssertStatus(t, http.StatusOK)

	var got struct {
		User    identity.User `json:"user"`
		Loading bool          `json:"loading"`
	}
	rec.DecodeJSON(t, &got)
	if got.User.UID != "mentor-uid" || got.Loading {
		t.Errorf("me = %+v", got)
	}
}

func TestProviders_RoundTrip(t *testing.T) {
	f := newFixture(t, nil)

	begin := f.do(testutil.NewRequest(http.MethodGet, "/providers/google?from=%2Fprojects"))
	begin.AssertStatus(t, http.StatusFound)

	loc, err := url.Parse(begin.Header().Get("Location"))
	if err != nil || loc.Host != "provider.example.com" {
		t.Fatalf("Location = %q", begin.Header().Get("Location"))
	}
	state := loc.Query().Get("state")
	binding := begin.SessionCookie("vc_oauth_state")
	if state == "" || binding == nil {
		t.Fatalf("state %q, binding cookie %v", state, binding)
	}

	cb := testutil.NewRequest(http.MethodGet, "/providers/google/callback?code=abc&state="+url.QueryEscape(state))
	cb.AddCookie(binding)
	rec := f.do(cb)
	rec.AssertRedirect(t, "/projects")

	if c := rec.SessionCookie("__session"); c == nil || c.Value == "" {
		t.Error("session cookie not set after provider sign-in")
	}
	if f.profiles.Len() != 1 {
		t.Errorf("profiles = %d, want 1", f.profiles.Len())
	}
}

func TestProviders_CallbackWithoutBindingCookie(t *testing.T) {
	f := newFixture(t, nil)

	begin := f.do(testutil.NewRequest(http.MethodGet, "/providers/google"))
	loc, _ := url.Parse(begin.Header().Get("Location"))

	cb := testutil.NewRequest(http.MethodGet, "/providers/google/callback?code=abc&state="+url.QueryEscape(loc.Query().Get("state")))
	rec := f.do(cb)
	rec.AssertRedirect(t, "/login?error="+url.QueryEscape(identity.CodeInvalidState))
	if rec.SessionCookie("__session") != nil {
		t.Error("session cookie set without a bound state")
	}
}

func TestProviders_AccessDenied(t *testing.T) {
	f := newFixture(t, nil)

	begin := f.do(testutil.NewRequest(http.MethodGet, "/providers/google"))
	loc, _ := url.Parse(begin.Header().Get("Location"))

	cb := testutil.NewRequest(http.MethodGet, "/providers/google/callback?error=access_denied&state="+url.QueryEscape(loc.Query().Get("state")))
	cb.AddCookie(begin.SessionCookie("vc_oauth_state"))
	f.do(cb).AssertRedirect(t, "/login?error="+url.QueryEscape(identity.CodePopupClosed))
}

func TestProviders_UnknownAndUnconfigured(t *testing.T) {
	f := newFixture(t, nil)

	f.do(testutil.NewRequest(http.MethodGet, "/providers/myspace")).AssertStatus(t, http.StatusNotFound)

	rec := f.do(testutil.NewRequest(http.MethodGet, "/providers/github"))
	rec.AssertStatus(t, http.StatusBadRequest)
	var got errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Code != identity.CodeOperationNotAllowed {
		t.Errorf("code = %q", got.Code)
	}
}

func TestAudit_RecordsAuthEvents(t *testing.T) {
	f := newFixture(t, nil)

	f.postJSON(t, "/register", map[string]string{"email": "sam@example.com", "password": "secret1"}).
		AssertStatus(t, http.StatusOK)
	f.postJSON(t, "/login", map[string]string{"email": "sam@example.com", "password": "wrong-one"}).
		AssertStatus(t, http.StatusUnauthorized)
	f.postJSON(t, "/login", map[string]string{"email": "sam@example.com", "password": "secret1"}).
		AssertStatus(t, http.StatusOK)
	f.postJSON(t, "/logout", nil).AssertStatus(t, http.StatusOK)

	want := []string{audit.EventSignUp, audit.EventLoginFailed, audit.EventLoginSuccess, audit.EventLogout}
	if diff := cmp.Diff(want, f.audit.types()); diff != "" {
		t.Errorf("audit events mismatch (-want +got):\n%s", diff)
	}
	if got := f.audit.events[1].Code; got != identity.CodeInvalidCredential {
		t.Errorf("failed login code = %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[string]int{
		identity.CodeInvalidEmail:      http.StatusBadRequest,
		identity.CodeInvalidCredential: http.StatusUnauthorized,
		identity.CodeUserDisabled:      http.StatusForbidden,
		identity.CodeEmailInUse:        http.StatusConflict,
		identity.CodeTooManyRequests:   http.StatusTooManyRequests,
		identity.CodeNetworkFailed:     http.StatusBadGateway,
		identity.CodeSessionSyncFailed: http.StatusInternalServerError,
		"auth/something-new":           http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := authapi.StatusFor(code); got != want {
			t.Errorf("StatusFor(%q) = %d, want %d", code, got, want)
		}
	}
}
