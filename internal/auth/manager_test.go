// ABOUTME: Tests for the session manager lifecycle and the 401 redirect flow
// ABOUTME: Uses a fake API, an in-memory token store, and a recording navigator

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/kbchat/internal/client"
	"github.com/2389/kbchat/internal/config"
	"github.com/2389/kbchat/internal/store"
)

type fakeAPI struct {
	mu            sync.Mutex
	loginResp     *client.LoginResponse
	loginErr      error
	user          *client.User
	meErr         error
	meCalls       int
	registerResp  *client.RegisterResponse
	registerErr   error
	registerCalls int
}

func (f *fakeAPI) Login(_ context.Context, _, _ string) (*client.LoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginResp, f.loginErr
}

func (f *fakeAPI) Me(_ context.Context) (*client.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCalls++
	return f.user, f.meErr
}

func (f *fakeAPI) Register(_ context.Context, _ client.RegisterRequest) (*client.RegisterResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	return f.registerResp, f.registerErr
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingNavigator) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recordingNavigator) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func newTestManager(t *testing.T, api API) (*Manager, *store.TokenStore, *recordingNavigator) {
	t.Helper()
	tokens := store.NewTokenStore(store.NewMemoryStore())
	nav := &recordingNavigator{}
	m := NewManager(api, tokens, nav, config.AuthConfig{}, nil)
	t.Cleanup(m.Close)
	return m, tokens, nav
}

var alice = &client.User{ID: "u1", Username: "alice", Role: client.RoleUser}

func TestManager_StartsLoading(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeAPI{})
	assert.True(t, m.State().Loading)
	assert.Equal(t, Wait, m.Guard("/knowledge").Action)
}

func TestManager_InitWithoutToken(t *testing.T) {
	api := &fakeAPI{user: alice}
	m, _, _ := newTestManager(t, api)

	m.Init(context.Background())

	s := m.State()
	assert.False(t, s.Loading)
	assert.False(t, s.IsAuthenticated)
	assert.Nil(t, s.User)
	assert.Zero(t, api.meCalls, "no token means no network call")
}

func TestManager_InitWithValidToken(t *testing.T) {
	api := &fakeAPI{user: alice}
	m, tokens, _ := newTestManager(t, api)
	require.NoError(t, tokens.SetToken(context.Background(), "tok", time.Now().Add(time.Hour)))

	m.Init(context.Background())

	s := m.State()
	assert.False(t, s.Loading)
	assert.True(t, s.IsAuthenticated)
	assert.Equal(t, "alice", s.User.Username)
}

func TestManager_InitWithRejectedToken(t *testing.T) {
	api := &fakeAPI{meErr: &client.APIError{Op: "Me", StatusCode: http.StatusUnauthorized, Detail: "expired"}}
	m, tokens, _ := newTestManager(t, api)
	require.NoError(t, tokens.SetToken(context.Background(), "tok", time.Now().Add(time.Hour)))

	m.Init(context.Background())

	assert.False(t, m.State().IsAuthenticated)
	assert.False(t, m.State().Loading)
}

func TestManager_LoginStoresTokenWithClaimExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice", "exp": exp.Unix()}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	api := &fakeAPI{loginResp: &client.LoginResponse{AccessToken: token}, user: alice}
	m, tokens, _ := newTestManager(t, api)

	user, err := m.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, m.State().IsAuthenticated)

	stored, err := tokens.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, stored)
}

func TestManager_LoginFailureLeavesStoreEmpty(t *testing.T) {
	api := &fakeAPI{loginErr: &client.APIError{Op: "Login", StatusCode: 400, Detail: "Incorrect username or password"}}
	m, tokens, _ := newTestManager(t, api)

	_, err := m.Login(context.Background(), "alice", "bad")
	require.Error(t, err)
	assert.Equal(t, "Incorrect username or password", client.Message(err))

	stored, err := tokens.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestManager_LogoutClearsTokenAndNavigates(t *testing.T) {
	api := &fakeAPI{loginResp: &client.LoginResponse{AccessToken: "opaque"}, user: alice}
	m, tokens, nav := newTestManager(t, api)

	_, err := m.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	require.NoError(t, m.Logout(context.Background()))

	stored, err := tokens.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.False(t, m.State().IsAuthenticated)
	assert.Nil(t, m.User())
	assert.Equal(t, []string{PathLogin}, nav.Paths())
}

func TestManager_Register(t *testing.T) {
	tests := []struct {
		name        string
		req         client.RegisterRequest
		api         *fakeAPI
		wantSuccess bool
		wantDetail  string
		wantErr     error
		wantCalls   int
	}{
		{
			name:      "password mismatch is local",
			req:       client.RegisterRequest{Username: "bob", Email: "b@x", Password: "a", RetypePassword: "b"},
			api:       &fakeAPI{},
			wantErr:   ErrPasswordMismatch,
			wantCalls: 0,
		},
		{
			name:      "missing email is local",
			req:       client.RegisterRequest{Username: "bob", Password: "a", RetypePassword: "a"},
			api:       &fakeAPI{},
			wantErr:   ErrMissingField,
			wantCalls: 0,
		},
		{
			name:        "server rejection carries detail",
			req:         client.RegisterRequest{Username: "bob", Email: "b@x", Password: "a", RetypePassword: "a"},
			api:         &fakeAPI{registerErr: &client.APIError{Op: "Register", StatusCode: 400, Detail: "Username already exists"}},
			wantDetail:  "Username already exists",
			wantCalls:   1,
			wantSuccess: false,
		},
		{
			name:        "success",
			req:         client.RegisterRequest{Username: "bob", Email: "b@x", Password: "a", RetypePassword: "a"},
			api:         &fakeAPI{registerResp: &client.RegisterResponse{Username: "bob", Detail: "Done"}},
			wantSuccess: true,
			wantDetail:  "Done",
			wantCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _ := newTestManager(t, tt.api)
			res, err := m.Register(context.Background(), tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantDetail, res.Detail)
			}
			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.Equal(t, tt.wantCalls, tt.api.registerCalls)
		})
	}
}

func TestManager_ChangeUser(t *testing.T) {
	m, tokens, _ := newTestManager(t, &fakeAPI{})
	carol := &client.User{ID: "u3", Username: "carol", Role: client.RoleUser}

	require.NoError(t, m.ChangeUser(context.Background(), carol, "carol-tok", "2099-01-01T00:00:00Z"))

	assert.True(t, m.State().IsAuthenticated)
	assert.Equal(t, "carol", m.User().Username)
	stored, err := tokens.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "carol-tok", stored)
}

func TestManager_EnterRedirectsAndRecordsPath(t *testing.T) {
	m, _, nav := newTestManager(t, &fakeAPI{})
	m.Init(context.Background())

	d := m.Enter("/knowledge/kb-1")
	assert.Equal(t, Redirect, d.Action)
	assert.Equal(t, "/login?redirect=%2Fknowledge%2Fkb-1", d.Target)
	assert.Equal(t, "/knowledge/kb-1", m.CurrentPath())
	assert.Equal(t, []string{d.Target}, nav.Paths())
}

func TestManager_SubscribeSeesStateChanges(t *testing.T) {
	api := &fakeAPI{user: alice}
	m, tokens, _ := newTestManager(t, api)
	require.NoError(t, tokens.SetToken(context.Background(), "tok", time.Time{}))

	states := m.Subscribe(t.Context())
	m.Init(context.Background())

	var last State
	timeout := time.After(time.Second)
	for !last.IsAuthenticated {
		select {
		case last = <-states:
		case <-timeout:
			t.Fatal("timed out waiting for authenticated state")
		}
	}
	assert.Equal(t, "alice", last.User.Username)
}

func TestManager_RevalidateLosesSession(t *testing.T) {
	api := &fakeAPI{user: alice}
	m, tokens, nav := newTestManager(t, api)
	ctx := context.Background()
	require.NoError(t, tokens.SetToken(ctx, "tok", time.Time{}))
	m.Init(ctx)
	m.Enter("/chat")

	// Token vanishes (logout in another process)
	require.NoError(t, tokens.ClearToken(ctx))
	m.revalidate(ctx)

	assert.False(t, m.State().IsAuthenticated)
	assert.Equal(t, []string{"/login?redirect=%2Fchat"}, nav.Paths())
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	api := &fakeAPI{user: alice}
	tokens := store.NewTokenStore(store.NewMemoryStore())
	require.NoError(t, tokens.SetToken(context.Background(), "tok", time.Time{}))
	m := NewManager(api, tokens, nil, config.AuthConfig{RevalidateInterval: 5 * time.Millisecond}, nil)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.meCalls >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// An authenticated request answered with 401 drops the session and redirects
// to login with the original route preserved.
func TestUnauthorizedResponseRedirectsToLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/me":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"u1","username":"alice","role":"user"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Token expired"}`))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	tokens := store.NewTokenStore(store.NewMemoryStore())
	require.NoError(t, tokens.SetToken(ctx, "tok", time.Time{}))

	api, err := client.New(srv.URL, tokens)
	require.NoError(t, err)

	nav := &recordingNavigator{}
	m := NewManager(api, tokens, nav, config.AuthConfig{}, nil)
	defer m.Close()
	api.SetUnauthorizedHandler(m.HandleUnauthorized)

	m.Init(ctx)
	require.True(t, m.State().IsAuthenticated)
	require.Equal(t, Allow, m.Enter("/knowledge/kb-7").Action)

	_, err = api.GetKnowledgeBase(ctx, "kb-7")
	require.True(t, errors.Is(err, client.ErrUnauthorized))

	assert.False(t, m.State().IsAuthenticated)
	assert.Equal(t, []string{"/login?redirect=%2Fknowledge%2Fkb-7"}, nav.Paths())
}
