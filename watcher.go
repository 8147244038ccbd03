package auth

import (
	"context"
	"sync"
	"time"
)

// WatcherState is the reactive snapshot UI layers render from.
type WatcherState struct {
	User          *UserProfile
	Loading       bool
	Authenticated bool
	Initialized   bool
}

// SessionWatcher adapts the session manager to a UI layer: it owns a
// reactive copy of the profile, re-verifies the session on start, and
// runs the idle-timeout watchdog. The embedding layer reports user
// interaction through Touch.
type SessionWatcher struct {
	manager *SessionManager
	cfg     Config
	logger  Logger
	now     func() time.Time

	mu           sync.Mutex
	state        WatcherState
	subscribers  []func(WatcherState)
	lastActivity time.Time
	timedOut     bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	started  bool
}

// NewSessionWatcher builds a watcher over the given manager.
func NewSessionWatcher(cfg Config, manager *SessionManager) *SessionWatcher {
	w := &SessionWatcher{
		manager: manager,
		cfg:     cfg,
		logger:  defLogger{},
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	w.state = WatcherState{Loading: true}
	return w
}

func (w *SessionWatcher) WithLogger(logger Logger) *SessionWatcher {
	if logger != nil {
		w.logger = logger
	}
	return w
}

// WithClock injects a custom clock, primarily for tests.
func (w *SessionWatcher) WithClock(clock func() time.Time) *SessionWatcher {
	if clock != nil {
		w.now = clock
	}
	return w
}

// Subscribe registers a callback invoked on every state change. The
// callback runs on the mutating goroutine; keep it cheap.
func (w *SessionWatcher) Subscribe(fn func(WatcherState)) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.subscribers = append(w.subscribers, fn)
	w.mu.Unlock()
}

// State returns the current snapshot.
func (w *SessionWatcher) State() WatcherState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Touch records user interaction. The embedding layer calls it for
// pointer-down, key-down, scroll, and touch-start events. New activity
// re-arms the idle watchdog after a timeout fired.
func (w *SessionWatcher) Touch() {
	w.mu.Lock()
	w.lastActivity = w.now()
	w.timedOut = false
	w.mu.Unlock()
}

// Start restores the session and launches the idle watchdog. The
// restore precedence is fixed: a fresh profile wins, a cached profile
// survives network-class errors, anything else clears the session.
func (w *SessionWatcher) Start(ctx context.Context) {
	w.Touch()
	w.restore(ctx)

	// Track sessions established or torn down after start, so the
	// snapshot and the idle watchdog follow SignIn and SignOut too.
	w.manager.OnStateChange(func(state SessionState) {
		w.onSessionState(ctx, state)
	})

	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.watch(ctx)
}

// Stop terminates the watchdog loop.
func (w *SessionWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}
}

func (w *SessionWatcher) restore(ctx context.Context) {
	defer w.setInitialized()

	if !w.manager.IsAuthenticated(ctx) {
		w.update(nil, false)
		return
	}

	cached := w.manager.CachedUser(ctx)
	if cached == nil {
		w.update(nil, false)
		return
	}

	fresh, err := w.manager.CurrentUser(ctx)
	switch {
	case err == nil:
		w.update(fresh, true)
	case IsTransientError(err):
		// Offline start: trust the cache rather than forcing a logout.
		w.logger.Info("session re-verification unreachable, keeping cached profile")
		w.update(cached, true)
	default:
		w.logger.Info("session re-verification rejected, clearing session", "error", err)
		w.manager.SignOut(ctx)
		w.update(nil, false)
	}
}

func (w *SessionWatcher) watch(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.GetIdleCheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.checkIdle(ctx)
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		}
	}
}

// onSessionState mirrors manager transitions into the watcher snapshot.
func (w *SessionWatcher) onSessionState(ctx context.Context, state SessionState) {
	switch state {
	case StateAuthenticated:
		w.Touch()
		w.update(w.manager.CachedUser(ctx), true)
	case StateAnonymous:
		w.update(nil, false)
	}
}

// checkIdle force-terminates the session when the idle ceiling is
// exceeded -- exactly once per timeout event, however many check
// intervals elapse while the user stays idle.
func (w *SessionWatcher) checkIdle(ctx context.Context) {
	w.mu.Lock()
	idle := w.now().Sub(w.lastActivity)
	fired := w.timedOut
	w.mu.Unlock()
	if fired || idle < w.cfg.GetIdleTimeout() {
		return
	}
	if !w.manager.IsAuthenticated(ctx) {
		return
	}

	w.mu.Lock()
	if w.timedOut {
		w.mu.Unlock()
		return
	}
	w.timedOut = true
	w.mu.Unlock()

	w.logger.Info("idle timeout reached, terminating session", "idle", idle)
	w.manager.record(ctx, ActivityEventIdleTimeout, "", map[string]any{"idle": idle.String()})
	w.manager.SignOut(ctx)
}

func (w *SessionWatcher) setInitialized() {
	w.mu.Lock()
	w.state.Initialized = true
	w.state.Loading = false
	state := w.state
	subs := append([]func(WatcherState){}, w.subscribers...)
	w.mu.Unlock()
	for _, fn := range subs {
		fn(state)
	}
}

// update applies a state change and notifies subscribers.
func (w *SessionWatcher) update(user *UserProfile, authenticated bool) {
	w.mu.Lock()
	w.state.User = user
	w.state.Authenticated = authenticated
	w.state.Loading = false
	state := w.state
	subs := append([]func(WatcherState){}, w.subscribers...)
	w.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}
