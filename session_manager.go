package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Backend path suffixes, relative to the configured base URL.
const (
	routeRegister       = "auth/register"
	routeLogin          = "auth/login"
	routeLogout         = "auth/logout"
	routeProfile        = "auth/profile"
	routeForgotPassword = "auth/forgot-password"
	routeResetPassword  = "auth/reset-password"
	routeRefreshToken   = "auth/refresh-token"
	routeChangePassword = "auth/change-password"
)

// backgroundRevalidateDelay is how long CurrentUser waits before the
// single silent retry after serving a cached profile.
const backgroundRevalidateDelay = 5 * time.Second

// profileEnvelope is the profile view's response wrapper.
type profileEnvelope struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	User    *UserProfile `json:"user"`
}

// SessionManager orchestrates the validator, sanitizer, credential
// store, request gate, and transport into the authentication lifecycle.
// Construct exactly one per application root and pass it down; there is
// no package level instance.
type SessionManager struct {
	store     CredentialStore
	transport *Transport
	gate      *Gate
	cfg       Config
	logger    Logger
	sink      ActivitySink
	now       func() time.Time

	mu         sync.Mutex
	state      SessionState
	generation uint64
	stateSubs  []func(SessionState)

	revalidateMu     sync.Mutex
	revalidateCancel context.CancelFunc
	revalidateTimer  *time.Timer
}

// NewSessionManager wires the manager into the transport's refresh
// path and the request gate.
func NewSessionManager(cfg Config, store CredentialStore, transport *Transport) *SessionManager {
	m := &SessionManager{
		store:     store,
		transport: transport,
		gate:      NewGate(cfg.GetGateCapacity()),
		cfg:       cfg,
		logger:    defLogger{},
		sink:      noopActivitySink{},
		now:       time.Now,
		state:     StateAnonymous,
	}
	transport.WithRefresher(m)
	return m
}

func (m *SessionManager) WithLogger(logger Logger) *SessionManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithActivitySink configures an ActivitySink for session events.
func (m *SessionManager) WithActivitySink(sink ActivitySink) *SessionManager {
	m.sink = normalizeActivitySink(sink)
	return m
}

// WithClock injects a custom clock, primarily for tests.
func (m *SessionManager) WithClock(clock func() time.Time) *SessionManager {
	if clock != nil {
		m.now = clock
	}
	return m
}

// Gate exposes the shared request gate so sibling API clients ride the
// same concurrency budget.
func (m *SessionManager) Gate() *Gate {
	return m.gate
}

// Transport exposes the shared transport for sibling API clients.
func (m *SessionManager) Transport() *Transport {
	return m.transport
}

// State returns the current lifecycle phase.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnStateChange registers a callback invoked after every lifecycle
// transition. Callbacks run outside the manager's lock; keep them cheap.
func (m *SessionManager) OnStateChange(fn func(SessionState)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.stateSubs = append(m.stateSubs, fn)
	m.mu.Unlock()
}

func (m *SessionManager) notifyState(state SessionState) {
	m.mu.Lock()
	subs := append([]func(SessionState){}, m.stateSubs...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(state)
	}
}

// IsAuthenticated reports whether a credential is stored.
func (m *SessionManager) IsAuthenticated(ctx context.Context) bool {
	cred, err := m.store.Credential(ctx)
	return err == nil && cred != nil && cred.AccessToken != ""
}

// Token returns the stored access token, if any.
func (m *SessionManager) Token(ctx context.Context) (string, bool) {
	cred, err := m.store.Credential(ctx)
	if err != nil || cred == nil || cred.AccessToken == "" {
		return "", false
	}
	return cred.AccessToken, true
}

// CachedUser returns the stored profile without a network call.
func (m *SessionManager) CachedUser(ctx context.Context) *UserProfile {
	user, err := m.store.User(ctx)
	if err != nil {
		m.logger.Error("cached user read failed", "error", err)
		return nil
	}
	return user
}

// SignUp registers a new account. Validation failures are reported
// before any network call; a 2xx response without an access token is a
// protocol error and leaves the session anonymous.
func (m *SessionManager) SignUp(ctx context.Context, payload SignUpPayload) (*UserProfile, error) {
	if err := payload.Validate(); err != nil {
		return nil, NewValidationError(FormatValidationErrorToMap(err))
	}

	payload.FirstName = SanitizeInput(payload.FirstName)
	payload.LastName = SanitizeInput(payload.LastName)
	payload.Email = SanitizeInput(payload.Email)
	payload.Username = SanitizeInput(payload.Username)
	if payload.Username == "" {
		payload.Username = usernameFromEmail(payload.Email)
	}

	gen, err := m.beginAuthenticating()
	if err != nil {
		return nil, err
	}

	resp, err := m.transport.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   routeRegister,
		Body:   payload,
		NoAuth: true,
	})
	if err != nil {
		m.setState(StateAnonymous)
		return nil, err
	}

	var envelope tokenEnvelope
	if decodeErr := resp.Decode(&envelope); decodeErr != nil {
		m.setState(StateAnonymous)
		return nil, decodeErr
	}
	cred, ok := envelope.credential()
	if !ok {
		m.setState(StateAnonymous)
		return nil, ErrNoToken
	}

	profile := &UserProfile{}
	if decodeErr := resp.Decode(profile); decodeErr != nil {
		profile = &UserProfile{Email: payload.Email, Username: payload.Username}
	}
	if profile.Email == "" {
		profile.Email = payload.Email
	}

	if err := m.commitCredential(ctx, gen, cred, profile); err != nil {
		m.setState(StateAnonymous)
		return nil, err
	}

	m.setState(StateAuthenticated)
	m.record(ctx, ActivityEventSignUpSuccess, profile.ID.String(), nil)
	return profile, nil
}

// SignIn authenticates with username/password. Either both the token
// and authenticated state are set, or neither is: a token-less 2xx
// response clears every partial write.
func (m *SessionManager) SignIn(ctx context.Context, payload SignInPayload) (*UserProfile, error) {
	if err := payload.Validate(); err != nil {
		return nil, NewValidationError(FormatValidationErrorToMap(err))
	}

	payload.Username = SanitizeInput(payload.Username)

	gen, err := m.beginAuthenticating()
	if err != nil {
		return nil, err
	}

	var envelope tokenEnvelope
	err = m.transport.JSON(ctx, Request{
		Method: http.MethodPost,
		Path:   routeLogin,
		Body:   payload,
		NoAuth: true,
	}, &envelope)
	if err != nil {
		m.setState(StateAnonymous)
		m.record(ctx, ActivityEventSignInFailure, "", map[string]any{"error": err.Error()})
		return nil, err
	}

	cred, ok := envelope.credential()
	if !ok {
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			m.logger.Error("partial state clear failed", "error", clearErr)
		}
		m.setState(StateAnonymous)
		m.record(ctx, ActivityEventSignInFailure, "", map[string]any{"error": "missing access token"})
		return nil, ErrNoToken
	}

	if err := m.commitCredential(ctx, gen, cred, nil); err != nil {
		m.setState(StateAnonymous)
		return nil, err
	}

	// Secondary profile fetch is best-effort: a failure falls back to a
	// minimal profile carrying the submitted username.
	profile, profileErr := m.fetchProfile(ctx, 0, nil)
	if profileErr != nil {
		m.logger.Info("profile fetch after sign-in failed, using minimal profile", "error", profileErr)
		profile = &UserProfile{Email: payload.Username, Username: payload.Username}
	}
	if err := m.storeUser(ctx, gen, profile); err != nil {
		m.logger.Error("profile cache write failed", "error", err)
	}

	m.setState(StateAuthenticated)
	m.record(ctx, ActivityEventSignInSuccess, profile.ID.String(), nil)
	return profile, nil
}

// SignOut is infallible from the caller's perspective: server side
// invalidation is best-effort, local credentials are always cleared,
// and the session generation is bumped so any in-flight refresh cannot
// repopulate the store afterwards.
func (m *SessionManager) SignOut(ctx context.Context) {
	m.cancelRevalidation()

	var refreshToken string
	if cred, err := m.store.Credential(ctx); err == nil && cred != nil {
		refreshToken = cred.RefreshToken
	}

	m.mu.Lock()
	m.generation++
	m.state = StateAnonymous
	m.mu.Unlock()

	if refreshToken != "" {
		err := m.transport.JSON(ctx, Request{
			Method: http.MethodPost,
			Path:   routeLogout,
			Body:   map[string]string{"refresh": refreshToken},
		}, nil)
		if err != nil {
			m.logger.Info("server side logout failed", "error", err)
		}
	}

	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("credential clear failed", "error", err)
	}
	m.record(ctx, ActivityEventSignOut, "", nil)
	m.notifyState(StateAnonymous)
}

// ForgotPassword requests a reset email. No session state changes.
func (m *SessionManager) ForgotPassword(ctx context.Context, email string) error {
	email = SanitizeInput(email)
	if !ValidateEmail(email) {
		return NewValidationError(map[string]string{"email": "invalid email address"})
	}
	return m.transport.JSON(ctx, Request{
		Method: http.MethodPost,
		Path:   routeForgotPassword,
		Body:   map[string]string{"email": email},
		NoAuth: true,
	}, nil)
}

// ResetPassword finalizes a reset with the emailed token. No session
// state changes.
func (m *SessionManager) ResetPassword(ctx context.Context, payload ResetPasswordPayload) error {
	if err := payload.Validate(); err != nil {
		return NewValidationError(FormatValidationErrorToMap(err))
	}
	payload.Token = SanitizeInput(payload.Token)
	err := m.transport.JSON(ctx, Request{
		Method: http.MethodPost,
		Path:   routeResetPassword,
		Body:   payload,
		NoAuth: true,
	}, nil)
	if err != nil {
		return err
	}
	m.record(ctx, ActivityEventPasswordReset, "", nil)
	return nil
}

// RefreshToken exchanges the stored refresh token for a new credential.
// A 2xx response without a token is a protocol error the transport
// treats as a hard authentication failure. The store is only updated
// when no sign-out happened since the exchange started.
func (m *SessionManager) RefreshToken(ctx context.Context) (*Credential, error) {
	cred, err := m.store.Credential(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "credential read failed")
	}
	if cred == nil || cred.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	m.mu.Lock()
	gen := m.generation
	refreshing := false
	if m.state == StateAuthenticated {
		m.state = StateRefreshing
		refreshing = true
	}
	m.mu.Unlock()
	if refreshing {
		m.notifyState(StateRefreshing)
	}

	var envelope tokenEnvelope
	err = m.transport.JSON(ctx, Request{
		Method: http.MethodPost,
		Path:   routeRefreshToken,
		Body:   map[string]string{"refresh": cred.RefreshToken},
		NoAuth: true,
	}, &envelope)
	if err != nil {
		m.record(ctx, ActivityEventRefreshFailure, "", map[string]any{"error": err.Error()})
		m.restoreAfterRefresh(gen, false)
		return nil, err
	}

	fresh, ok := envelope.credential()
	if !ok {
		m.record(ctx, ActivityEventRefreshFailure, "", map[string]any{"error": "missing token"})
		m.restoreAfterRefresh(gen, false)
		return nil, ErrNoToken
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = cred.RefreshToken
	}

	if err := m.commitCredential(ctx, gen, fresh, nil); err != nil {
		return nil, err
	}

	m.restoreAfterRefresh(gen, true)
	m.record(ctx, ActivityEventTokenRefreshed, "", nil)
	return &fresh, nil
}

// CurrentUser fetches the profile through the request gate with the
// shorter profile timeout and a single retry. On a timeout/network
// failure with a cached profile present, the cache is served and
// exactly one silent revalidation is scheduled; a newer foreground call
// cancels a stale pending one.
func (m *SessionManager) CurrentUser(ctx context.Context) (*UserProfile, error) {
	if !m.IsAuthenticated(ctx) {
		return nil, ErrNotAuthenticated
	}

	m.cancelRevalidation()

	retries := 1
	var profile *UserProfile
	err := m.gate.Do(ctx, func() error {
		fetched, fetchErr := m.fetchProfile(ctx, m.cfg.GetProfileTimeout(), &retries)
		if fetchErr != nil {
			return fetchErr
		}
		profile = fetched
		return nil
	})

	if err == nil {
		m.mu.Lock()
		gen := m.generation
		m.mu.Unlock()
		if storeErr := m.storeUser(ctx, gen, profile); storeErr != nil {
			m.logger.Error("profile cache write failed", "error", storeErr)
		}
		return profile, nil
	}

	if IsTransientError(err) {
		if cached := m.CachedUser(ctx); cached != nil {
			m.logger.Info("profile fetch timed out, serving cached profile")
			m.scheduleRevalidation()
			return cached, nil
		}
	}

	return nil, err
}

// UpdateProfile validates and sanitizes the editable fields, then
// returns the server's updated profile verbatim.
func (m *SessionManager) UpdateProfile(ctx context.Context, payload UpdateProfilePayload) (*UserProfile, error) {
	if err := payload.Validate(); err != nil {
		return nil, NewValidationError(FormatValidationErrorToMap(err))
	}
	if payload.Email == "" && payload.FirstName == "" && payload.LastName == "" {
		return nil, NewValidationError(map[string]string{"form": "no fields to update"})
	}

	payload.Email = SanitizeInput(payload.Email)
	payload.FirstName = SanitizeInput(payload.FirstName)
	payload.LastName = SanitizeInput(payload.LastName)

	var envelope profileEnvelope
	err := m.transport.JSON(ctx, Request{
		Method: http.MethodPatch,
		Path:   routeProfile,
		Body:   payload,
	}, &envelope)
	if err != nil {
		return nil, err
	}
	if envelope.User == nil {
		return nil, goerrors.New("profile response missing user", goerrors.CategoryOperation)
	}

	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()
	if storeErr := m.storeUser(ctx, gen, envelope.User); storeErr != nil {
		m.logger.Error("profile cache write failed", "error", storeErr)
	}
	return envelope.User, nil
}

// ChangePassword validates locally and forwards the change. The server
// payload is returned verbatim for the caller to surface.
func (m *SessionManager) ChangePassword(ctx context.Context, payload ChangePasswordPayload) (json.RawMessage, error) {
	if err := payload.Validate(); err != nil {
		return nil, NewValidationError(FormatValidationErrorToMap(err))
	}

	resp, err := m.transport.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   routeChangePassword,
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}

// fetchProfile performs the GET, optionally with a custom timeout and
// retry budget.
func (m *SessionManager) fetchProfile(ctx context.Context, timeout time.Duration, retries *int) (*UserProfile, error) {
	var envelope profileEnvelope
	err := m.transport.JSON(ctx, Request{
		Method:  http.MethodGet,
		Path:    routeProfile,
		Timeout: timeout,
		Retries: retries,
	}, &envelope)
	if err != nil {
		return nil, err
	}
	if envelope.User == nil {
		return nil, goerrors.New("profile response missing user", goerrors.CategoryOperation)
	}
	return envelope.User, nil
}

// beginAuthenticating moves to the authenticating state and captures
// the generation the credential write must validate against. A second
// authentication attempt while one is in flight is rejected.
func (m *SessionManager) beginAuthenticating() (uint64, error) {
	m.mu.Lock()
	if !canTransition(m.state, StateAuthenticating) {
		m.mu.Unlock()
		return 0, ErrInvalidTransition
	}
	m.state = StateAuthenticating
	gen := m.generation
	m.mu.Unlock()
	m.notifyState(StateAuthenticating)
	return gen, nil
}

func (m *SessionManager) setState(to SessionState) {
	m.mu.Lock()
	if !canTransition(m.state, to) {
		m.logger.Debug("state transition forced", "from", m.state, "to", to)
	}
	m.state = to
	m.mu.Unlock()
	m.notifyState(to)
}

func (m *SessionManager) restoreAfterRefresh(gen uint64, ok bool) {
	m.mu.Lock()
	if m.generation != gen || m.state != StateRefreshing {
		m.mu.Unlock()
		return
	}
	if ok {
		m.state = StateAuthenticated
	} else {
		m.state = StateAnonymous
	}
	next := m.state
	m.mu.Unlock()
	m.notifyState(next)
}

// commitCredential writes the credential (and optional profile) only
// when the session generation is unchanged, so a response that raced a
// sign-out cannot repopulate the store.
func (m *SessionManager) commitCredential(ctx context.Context, gen uint64, cred Credential, profile *UserProfile) error {
	m.mu.Lock()
	stale := m.generation != gen
	m.mu.Unlock()
	if stale {
		m.logger.Info("discarding credential from a superseded session")
		return ErrSessionExpired
	}

	if err := m.store.SetCredential(ctx, cred); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "credential write failed")
	}
	if profile != nil {
		if err := m.store.SetUser(ctx, profile); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "profile write failed")
		}
	}
	return nil
}

func (m *SessionManager) storeUser(ctx context.Context, gen uint64, profile *UserProfile) error {
	m.mu.Lock()
	stale := m.generation != gen
	m.mu.Unlock()
	if stale || profile == nil {
		return nil
	}
	return m.store.SetUser(ctx, profile)
}

// scheduleRevalidation arms the single background profile retry. A
// previously pending one is cancelled first so two can never race.
func (m *SessionManager) scheduleRevalidation() {
	m.revalidateMu.Lock()
	defer m.revalidateMu.Unlock()

	if m.revalidateCancel != nil {
		m.revalidateCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.revalidateCancel = cancel

	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()

	m.revalidateTimer = time.AfterFunc(backgroundRevalidateDelay, func() {
		defer cancel()
		if ctx.Err() != nil {
			return
		}
		profile, err := m.fetchProfile(ctx, m.cfg.GetProfileTimeout(), nil)
		if err != nil {
			m.logger.Debug("background profile revalidation failed", "error", err)
			return
		}
		if storeErr := m.storeUser(ctx, gen, profile); storeErr != nil {
			m.logger.Error("profile cache write failed", "error", storeErr)
		}
	})
}

func (m *SessionManager) cancelRevalidation() {
	m.revalidateMu.Lock()
	defer m.revalidateMu.Unlock()
	if m.revalidateCancel != nil {
		m.revalidateCancel()
		m.revalidateCancel = nil
	}
	if m.revalidateTimer != nil {
		m.revalidateTimer.Stop()
		m.revalidateTimer = nil
	}
}

func (m *SessionManager) record(ctx context.Context, event ActivityEventType, userID string, meta map[string]any) {
	err := m.sink.Record(ctx, ActivityEvent{
		EventType:  event,
		UserID:     userID,
		Metadata:   meta,
		OccurredAt: m.now(),
	})
	if err != nil {
		m.logger.Error("activity sink error", "event", event, "error", err)
	}
}

func usernameFromEmail(email string) string {
	if idx := strings.Index(email, "@"); idx > 0 {
		return email[:idx]
	}
	return email
}
