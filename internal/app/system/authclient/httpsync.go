package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/dalemusser/venturecamp/internal/app/system/identity"
)

// HTTPSync is a SessionSync that calls a running server's session endpoint
// and keeps the resulting cookie in a jar, the way a browser would.
type HTTPSync struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSync returns a sync for the server at baseURL.
func NewHTTPSync(baseURL string) (*HTTPSync, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &HTTPSync{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Jar: jar, CheckRedirect: noRedirect},
	}, nil
}

// HTTPClient shares the cookie jar, so later requests carry the session.
func (s *HTTPSync) HTTPClient() *http.Client { return s.client }

func (s *HTTPSync) Create(ctx context.Context, idToken string, p identity.Persistence) error {
	body, err := json.Marshal(map[string]any{
		"idToken":  idToken,
		"remember": p == identity.Durable,
	})
	if err != nil {
		return err
	}
	return s.do(ctx, http.MethodPost, body)
}

func (s *HTTPSync) Clear(ctx context.Context) error {
	return s.do(ctx, http.MethodDelete, nil)
}

func (s *HTTPSync) do(ctx context.Context, method string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+"/api/auth/session", bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("session %s: %w", strings.ToLower(method), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("session %s: status %d: %s", strings.ToLower(method), resp.StatusCode, e.Error)
	}
	return nil
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}
