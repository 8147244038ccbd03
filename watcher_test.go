package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	auth "github.com/autoresum/autoresum-go"
	"github.com/autoresum/autoresum-go/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newWatcherFixture(t *testing.T, server *httptest.Server, cfg auth.SimpleConfig) (*auth.SessionWatcher, *auth.SessionManager, *store.Memory, *fakeClock) {
	t.Helper()
	credentials := store.NewMemory()
	transport, err := auth.NewTransport(cfg, credentials)
	require.NoError(t, err)

	clock := newFakeClock()
	manager := auth.NewSessionManager(cfg, credentials, transport).WithClock(clock.Now)
	watcher := auth.NewSessionWatcher(cfg, manager).WithClock(clock.Now)
	return watcher, manager, credentials, clock
}

func TestWatcherStartsAnonymous(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer server.Close()

	cfg := auth.SimpleConfig{BaseURL: server.URL + "/api/", IdleCheckInterval: time.Hour}
	watcher, _, _, _ := newWatcherFixture(t, server, cfg)

	assert.True(t, watcher.State().Loading)

	watcher.Start(context.Background())
	defer watcher.Stop()

	state := watcher.State()
	assert.True(t, state.Initialized)
	assert.False(t, state.Loading)
	assert.False(t, state.Authenticated)
	assert.Nil(t, state.User)
}

func TestWatcherRestoresFreshProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(profileResponse(map[string]any{"email": "fresh@example.com"}))
	}))
	defer server.Close()

	cfg := auth.SimpleConfig{
		BaseURL:           server.URL + "/api/",
		ProfileTimeout:    2 * time.Second,
		RetryDelay:        time.Millisecond,
		IdleCheckInterval: time.Hour,
	}
	watcher, _, credentials, _ := newWatcherFixture(t, server, cfg)
	require.NoError(t, credentials.SetCredential(context.Background(), auth.Credential{AccessToken: "a"}))
	require.NoError(t, credentials.SetUser(context.Background(), &auth.UserProfile{Email: "stale@example.com"}))

	var notified []auth.WatcherState
	watcher.Subscribe(func(s auth.WatcherState) { notified = append(notified, s) })

	watcher.Start(context.Background())
	defer watcher.Stop()

	state := watcher.State()
	assert.True(t, state.Authenticated)
	require.NotNil(t, state.User)
	assert.Equal(t, "fresh@example.com", state.User.Email)
	assert.NotEmpty(t, notified)
}

func TestWatcherKeepsCacheWhenServerUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	cfg := auth.SimpleConfig{
		BaseURL:           server.URL + "/api/",
		ProfileTimeout:    20 * time.Millisecond,
		RetryDelay:        time.Millisecond,
		IdleCheckInterval: time.Hour,
	}
	watcher, _, credentials, _ := newWatcherFixture(t, server, cfg)
	require.NoError(t, credentials.SetCredential(context.Background(), auth.Credential{AccessToken: "a"}))
	require.NoError(t, credentials.SetUser(context.Background(), &auth.UserProfile{Email: "cached@example.com"}))

	watcher.Start(context.Background())
	defer watcher.Stop()

	state := watcher.State()
	assert.True(t, state.Authenticated)
	require.NotNil(t, state.User)
	assert.Equal(t, "cached@example.com", state.User.Email)
}

func TestWatcherClearsSessionOnRejectedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"token invalid"}`))
	}))
	defer server.Close()

	cfg := auth.SimpleConfig{
		BaseURL:           server.URL + "/api/",
		ProfileTimeout:    2 * time.Second,
		RetryDelay:        time.Millisecond,
		IdleCheckInterval: time.Hour,
	}
	watcher, _, credentials, _ := newWatcherFixture(t, server, cfg)
	// No refresh token stored, so the 401 cannot be recovered from.
	require.NoError(t, credentials.SetCredential(context.Background(), auth.Credential{AccessToken: "bad"}))
	require.NoError(t, credentials.SetUser(context.Background(), &auth.UserProfile{Email: "cached@example.com"}))

	watcher.Start(context.Background())
	defer watcher.Stop()

	state := watcher.State()
	assert.False(t, state.Authenticated)
	assert.Nil(t, state.User)

	cred, err := credentials.Credential(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestWatcherIdleTimeoutFiresOnce(t *testing.T) {
	var signOuts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/profile":
			w.Write(profileResponse(map[string]any{"email": "casey@example.com"}))
		case "/api/auth/logout":
			atomic.AddInt32(&signOuts, 1)
			w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := auth.SimpleConfig{
		BaseURL:           server.URL + "/api/",
		ProfileTimeout:    2 * time.Second,
		RetryDelay:        time.Millisecond,
		IdleTimeout:       24 * time.Hour,
		IdleCheckInterval: 10 * time.Millisecond,
	}
	watcher, manager, credentials, clock := newWatcherFixture(t, server, cfg)
	require.NoError(t, credentials.SetCredential(context.Background(), auth.Credential{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, credentials.SetUser(context.Background(), &auth.UserProfile{Email: "casey@example.com"}))

	watcher.Start(context.Background())
	defer watcher.Stop()
	require.True(t, watcher.State().Authenticated)

	// Jump past the idle ceiling and let several checks elapse.
	clock.Advance(25 * time.Hour)
	require.Eventually(t, func() bool {
		return !watcher.State().Authenticated
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&signOuts))
	assert.False(t, watcher.State().Authenticated)
	assert.False(t, manager.IsAuthenticated(context.Background()))
}

func TestWatcherTracksSignInAfterStart(t *testing.T) {
	var signOuts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			w.Write([]byte(`{"access":"access-1","refresh":"refresh-1"}`))
		case "/api/auth/profile":
			w.Write(profileResponse(map[string]any{"email": "casey@example.com"}))
		case "/api/auth/logout":
			atomic.AddInt32(&signOuts, 1)
			w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := auth.SimpleConfig{
		BaseURL:           server.URL + "/api/",
		ProfileTimeout:    2 * time.Second,
		RetryDelay:        time.Millisecond,
		IdleTimeout:       24 * time.Hour,
		IdleCheckInterval: 10 * time.Millisecond,
	}
	watcher, manager, _, clock := newWatcherFixture(t, server, cfg)

	// Anonymous start; the session arrives afterwards.
	watcher.Start(context.Background())
	defer watcher.Stop()
	require.False(t, watcher.State().Authenticated)

	_, err := manager.SignIn(context.Background(), auth.SignInPayload{Username: "casey", Password: "Secret&Pass10"})
	require.NoError(t, err)

	state := watcher.State()
	assert.True(t, state.Authenticated)
	require.NotNil(t, state.User)
	assert.Equal(t, "casey@example.com", state.User.Email)

	// The watchdog must cover the post-start session too.
	clock.Advance(25 * time.Hour)
	require.Eventually(t, func() bool {
		return !watcher.State().Authenticated
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&signOuts))
	assert.False(t, manager.IsAuthenticated(context.Background()))
	assert.Nil(t, watcher.State().User)
}

func TestWatcherTouchReArmsWatchdog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(profileResponse(map[string]any{"email": "casey@example.com"}))
	}))
	defer server.Close()

	cfg := auth.SimpleConfig{
		BaseURL:           server.URL + "/api/",
		ProfileTimeout:    2 * time.Second,
		RetryDelay:        time.Millisecond,
		IdleTimeout:       24 * time.Hour,
		IdleCheckInterval: 10 * time.Millisecond,
	}
	watcher, _, credentials, clock := newWatcherFixture(t, server, cfg)
	require.NoError(t, credentials.SetCredential(context.Background(), auth.Credential{AccessToken: "a"}))
	require.NoError(t, credentials.SetUser(context.Background(), &auth.UserProfile{Email: "casey@example.com"}))

	watcher.Start(context.Background())
	defer watcher.Stop()
	require.True(t, watcher.State().Authenticated)

	// Activity just before the ceiling keeps the session alive.
	clock.Advance(23 * time.Hour)
	watcher.Touch()
	clock.Advance(2 * time.Hour)
	time.Sleep(50 * time.Millisecond)

	assert.True(t, watcher.State().Authenticated)
}

func TestWatcherStopWithoutStart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	cfg := auth.SimpleConfig{BaseURL: server.URL + "/api/"}
	watcher, _, _, _ := newWatcherFixture(t, server, cfg)
	watcher.Stop()
}
