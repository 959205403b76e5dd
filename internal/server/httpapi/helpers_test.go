package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/dumpvault/internal/logging"
	"github.com/dmitrijs2005/dumpvault/internal/server/ratelimit"
	"github.com/dmitrijs2005/dumpvault/internal/server/services"
)

const validToken = "valid-token"

var testIdentity = services.Identity{AccountID: "acc-1", Email: "alice@example.com"}

type fakeAuth struct {
	mu sync.Mutex

	signupErr  error
	loginErr   error
	changeErr  error
	loggedOut  []string
	changedFor string
}

func (f *fakeAuth) Signup(_ context.Context, email, _ string) (*services.Session, error) {
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	return &services.Session{Token: validToken, AccountID: testIdentity.AccountID, Email: email}, nil
}

func (f *fakeAuth) Login(_ context.Context, email, _ string) (*services.Session, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &services.Session{Token: validToken, AccountID: testIdentity.AccountID, Email: email}, nil
}

func (f *fakeAuth) Logout(_ context.Context, accountID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = append(f.loggedOut, accountID)
}

func (f *fakeAuth) ChangePassword(_ context.Context, accountID, _, _ string) error {
	f.mu.Lock()
	f.changedFor = accountID
	f.mu.Unlock()
	return f.changeErr
}

func (f *fakeAuth) VerifySession(token string) (services.Identity, bool) {
	if token == validToken {
		return testIdentity, true
	}
	return services.Identity{}, false
}

type fakeFiles struct {
	list      []services.FileView
	listErr   error
	uploaded  services.FileUpload
	body      string
	uploadErr error
	deleteErr error
	deleted   []string
}

func (f *fakeFiles) Upload(_ context.Context, accountID string, in services.FileUpload) (*services.FileView, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.uploaded, f.body = in, string(b)
	v := services.FileView{URL: "https://blobs.local/k"}
	v.File = newTestFile("f-new", accountID, in.Name, in.Size)
	return &v, nil
}

func (f *fakeFiles) List(context.Context, string) ([]services.FileView, error) {
	return f.list, f.listErr
}

func (f *fakeFiles) Delete(_ context.Context, accountID, fileID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, accountID+"/"+fileID)
	return nil
}

type fakeLimiter struct {
	decision ratelimit.Decision
	err      error
	scopes   []string
}

func (f *fakeLimiter) Allow(_ context.Context, scope, _ string) (ratelimit.Decision, error) {
	f.scopes = append(f.scopes, scope)
	return f.decision, f.err
}

func newTestServer(t *testing.T, a AuthService, f FileService, opts Options) *Server {
	t.Helper()
	return NewServer(opts, a, f, logging.NewDiscardLogger())
}

func doRequest(t *testing.T, s *Server, req *http.Request) *http.Response {
	t.Helper()
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func jsonRequest(method, target, body string) *http.Request {
	req, _ := http.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withSession(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "auth-token", Value: validToken})
	return req
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "auth-token" {
			return c
		}
	}
	return nil
}
