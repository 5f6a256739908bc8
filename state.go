package authgate

import (
	"context"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// DefaultStoreTimeout bounds the initial session fetch and other one-shot
// store calls; past it the call is aborted and treated as a failure.
var DefaultStoreTimeout = 5 * time.Second

// MinPasswordLength mirrors the hosted provider's minimum so we can reject
// before a round trip. The provider remains the authority.
var MinPasswordLength = 6

// Snapshot is an immutable per-read view of the auth state.
type Snapshot struct {
	User    *User
	Session *Session
	Loading bool
}

// HardRedirect performs a full-page navigation, bypassing client-side
// routing. See WithHardRedirect.
type HardRedirect func(path string)

// Manager is the process-wide single source of truth for "who is logged in".
// It is constructed once at application start; all writes originate from the
// store callbacks or the four operations below, never from outside.
type Manager struct {
	store        SessionStore
	allow        AllowList
	routes       Routes
	oauthTarget  string
	signupTarget string
	logger       Logger
	sink         ActivitySink
	hardRedirect HardRedirect
	timeout      time.Duration

	mu          sync.RWMutex
	session     *Session
	user        *User
	loading     bool
	subs        map[int]func(Snapshot)
	subSeq      int
	unsubscribe func()
	started     bool
}

// ManagerOption customizes Manager construction.
type ManagerOption func(*Manager)

// WithLogger overrides the default logger.
func WithLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func WithActivitySink(sink ActivitySink) ManagerOption {
	return func(m *Manager) {
		m.sink = normalizeActivitySink(sink)
	}
}

// WithHardRedirect installs the full-page navigation escape hatch used for
// the admin post-login transition. It deliberately bypasses the in-app
// router so the admin area bootstraps from a clean reload; it is not a soft
// navigation and must not be "fixed" into one.
func WithHardRedirect(fn HardRedirect) ManagerOption {
	return func(m *Manager) {
		m.hardRedirect = fn
	}
}

// WithStoreTimeout overrides the timeout applied to one-shot store calls.
func WithStoreTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// NewManager returns a new Manager wrapping the hosted session store.
func NewManager(store SessionStore, cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:        store,
		allow:        NewAllowList(cfg.GetAdminEmails()...),
		routes:       RoutesFromConfig(cfg),
		oauthTarget:  cfg.GetOAuthRedirect(),
		signupTarget: cfg.GetSignUpRedirect(),
		logger:       defLogger{},
		sink:         noopActivitySink{},
		timeout:      DefaultStoreTimeout,
		loading:      true,
		subs:         map[int]func(Snapshot){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// AllowList exposes the configured admin allow-list.
func (m *Manager) AllowList() AllowList {
	return m.allow
}

// Routes exposes the configured route surface.
func (m *Manager) Routes() Routes {
	return m.routes
}

// Start registers the push subscription and kicks off the explicit session
// fetch. The two initialization paths race; both funnel into the idempotent
// applySession so either may resolve first and the last write wins.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.unsubscribeStore(m.store.OnSessionChange(func(s *Session) {
		m.applySession(s)
	}))

	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		session, err := m.store.GetCurrentSession(fetchCtx)
		if err != nil {
			m.logger.Warn("initial session fetch failed: %v", err)
			m.applySession(nil)
			return
		}
		m.applySession(session)
	}()
}

// Close severs the store subscription. Mandatory on teardown so we never act
// on a destroyed consumer.
func (m *Manager) Close() {
	m.mu.Lock()
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.subs = map[int]func(Snapshot){}
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (m *Manager) unsubscribeStore(unsub func()) {
	m.mu.Lock()
	m.unsubscribe = unsub
	m.mu.Unlock()
}

// Snapshot returns the current auth state. Reads are synchronous; the copy
// is safe to hold across suspension points.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		User:    m.user,
		Session: m.session,
		Loading: m.loading,
	}
}

// Subscribe registers a listener notified on every state change. The
// returned function severs the subscription; store teardown logic alongside
// registration, never rely on garbage collection.
func (m *Manager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.mu.Lock()
	m.subSeq++
	id := m.subSeq
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// applySession is the single sink for both initialization paths and all
// provider-pushed updates. It is idempotent and order-independent: applying
// an equal value twice notifies no one, and the last write wins.
func (m *Manager) applySession(session *Session) {
	m.mu.Lock()

	changed := m.loading || !sessionEqual(m.session, session)
	m.loading = false
	m.session = session
	m.user = session.User()

	if !changed {
		m.mu.Unlock()
		return
	}

	snap := Snapshot{User: m.user, Session: m.session, Loading: false}
	listeners := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// SignIn delegates to the store's password grant. Errors are translated into
// the taxonomy and returned, never thrown past this boundary. On success, an
// allow-listed admin triggers the hard full-page redirect to the admin home
// so the transition survives any route-guard re-evaluation race.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	if err := validateCredentials(email, password); err != nil {
		return err
	}

	session, err := m.store.SignInWithPassword(ctx, email, password)
	if err != nil {
		terr := TranslateProviderError(err)
		m.emit(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email": email,
			"error": terr.Error(),
		})
		return terr
	}

	m.applySession(session)
	m.emit(ctx, ActivityEventLoginSuccess, ActorRef{ID: session.UserID, Type: "user"}, session.UserID, map[string]any{
		"email": email,
	})

	if m.allow.IsAdmin(session.Email) && m.hardRedirect != nil {
		m.hardRedirect(m.routes.AdminHome)
	}

	return nil
}

// SignUp delegates to the store's registration, attaching the
// post-confirmation redirect target and the display name as session
// metadata.
func (m *Manager) SignUp(ctx context.Context, email, password, fullName string) error {
	return m.SignUpWithMetadata(ctx, email, password, fullName, nil)
}

// SignUpWithMetadata is SignUp with extra session metadata merged in.
func (m *Manager) SignUpWithMetadata(ctx context.Context, email, password, fullName string, metadata map[string]any) error {
	if err := validateRegistration(email, password, fullName); err != nil {
		return err
	}

	data := map[string]any{"full_name": fullName}
	for k, v := range metadata {
		data[k] = v
	}

	err := m.store.SignUp(ctx, email, password, SignUpOptions{
		RedirectTo: m.signupTarget,
		Metadata:   data,
	})
	if err != nil {
		terr := TranslateProviderError(err)
		m.emit(ctx, ActivityEventSignUpFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email": email,
			"error": terr.Error(),
		})
		return terr
	}

	m.emit(ctx, ActivityEventSignUpSuccess, ActorRef{Type: "unknown"}, "", map[string]any{
		"email": email,
	})

	return nil
}

// SignInWithGoogle starts the OAuth flow with offline access and forced
// consent so a refresh token is obtained. The returned URL is where the
// browser must be sent; the provider redirects away, so a nil error means
// "redirect initiated".
func (m *Manager) SignInWithGoogle(ctx context.Context) (string, error) {
	url, err := m.store.SignInWithOAuth(ctx, "google", OAuthOptions{
		RedirectTo: m.oauthTarget,
		QueryParams: map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		},
	})
	if err != nil {
		return "", TranslateProviderError(err)
	}

	m.emit(ctx, ActivityEventOAuthRedirect, ActorRef{Type: "unknown"}, "", map[string]any{
		"provider": "google",
	})

	return url, nil
}

// SignOut always succeeds from the caller's perspective: the store error, if
// any, is logged and swallowed, and the cached session is cleared either way.
func (m *Manager) SignOut(ctx context.Context) {
	var userID string
	if snap := m.Snapshot(); snap.User != nil {
		userID = snap.User.ID
	}

	if err := m.store.SignOut(ctx); err != nil {
		m.logger.Warn("sign out store error: %v", err)
	}

	m.applySession(nil)
	m.emit(ctx, ActivityEventSignOut, ActorRef{ID: userID, Type: "user"}, userID, nil)
}

func (m *Manager) emit(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(m.sink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}

// validateCredentials is defense in depth; primary validation happens in the
// UI before this layer.
func validateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return ErrMissingFields
	}

	if err := validation.Validate(email, is.Email); err != nil {
		return ErrInvalidEmail
	}

	return nil
}

func validateRegistration(email, password, fullName string) error {
	if strings.TrimSpace(email) == "" || password == "" || strings.TrimSpace(fullName) == "" {
		return ErrMissingFields
	}

	if err := validation.Validate(email, is.Email); err != nil {
		return ErrInvalidEmail
	}

	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}

	return nil
}
