package authgate

import (
	"context"
	"sync"
	"time"
)

// EntitlementState is the tri-state lifecycle of entitlement resolution as
// observed by the client: unknown until the query resolves, then present or
// absent. A query error is treated identically to "no active row".
type EntitlementState string

const (
	EntitlementUnknown EntitlementState = "unknown"
	EntitlementPresent EntitlementState = "present"
	EntitlementAbsent  EntitlementState = "absent"
)

// Resolved reports whether the query has completed either way.
func (s EntitlementState) Resolved() bool {
	return s == EntitlementPresent || s == EntitlementAbsent
}

// Entitlement is the resolved plan-entitlement fact for the current user.
type Entitlement struct {
	State EntitlementState
	Plan  Plan
}

// EntitlementResolver derives entitlement facts from the entitlement store.
type EntitlementResolver struct {
	store  EntitlementStore
	logger Logger
}

// NewEntitlementResolver returns a new resolver.
func NewEntitlementResolver(store EntitlementStore) *EntitlementResolver {
	return &EntitlementResolver{
		store:  store,
		logger: defLogger{},
	}
}

// WithLogger overrides the resolver logger.
func (r *EntitlementResolver) WithLogger(logger Logger) *EntitlementResolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Resolve queries the entitlement store for the most recent active row.
// Admins and absent users short-circuit to unknown without issuing a query;
// entitlement is never applicable to them. Query errors and malformed user
// identifiers degrade to absent so access-granting paths are never reached
// on error.
func (r *EntitlementResolver) Resolve(ctx context.Context, user *User, isAdmin bool) Entitlement {
	if user == nil || isAdmin {
		return Entitlement{State: EntitlementUnknown}
	}

	userID, err := (&Session{UserID: user.ID}).UserUUID()
	if err != nil {
		r.logger.Warn("entitlement resolve: bad user id %q: %v", user.ID, err)
		return Entitlement{State: EntitlementAbsent}
	}

	row, err := r.store.QueryActiveEntitlement(ctx, userID)
	if err != nil {
		r.logger.Warn("entitlement query failed for %s, treating as absent: %v", user.ID, err)
		return Entitlement{State: EntitlementAbsent}
	}

	if !row.IsActive() {
		return Entitlement{State: EntitlementAbsent}
	}

	return Entitlement{State: EntitlementPresent, Plan: row.Plan}
}

// EntitlementTracker re-resolves entitlement on every identity change and
// fans the result out to subscribers. Results are fetched fresh per user and
// never persisted; a response that arrives after the user has changed again
// is discarded (stale-response guard).
type EntitlementTracker struct {
	resolver *EntitlementResolver
	allow    AllowList
	logger   Logger
	sink     ActivitySink
	timeout  time.Duration

	mu     sync.Mutex
	userID string
	ent    Entitlement
	subs   map[int]func(Entitlement)
	subSeq int
}

// TrackerOption customizes EntitlementTracker construction.
type TrackerOption func(*EntitlementTracker)

// WithTrackerLogger overrides the tracker logger.
func WithTrackerLogger(logger Logger) TrackerOption {
	return func(t *EntitlementTracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithTrackerActivitySink emits an event whenever resolution completes.
func WithTrackerActivitySink(sink ActivitySink) TrackerOption {
	return func(t *EntitlementTracker) {
		t.sink = normalizeActivitySink(sink)
	}
}

// WithTrackerTimeout bounds each entitlement query.
func WithTrackerTimeout(d time.Duration) TrackerOption {
	return func(t *EntitlementTracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// NewEntitlementTracker returns a tracker for the given resolver and admin
// allow-list.
func NewEntitlementTracker(resolver *EntitlementResolver, allow AllowList, opts ...TrackerOption) *EntitlementTracker {
	t := &EntitlementTracker{
		resolver: resolver,
		allow:    allow,
		logger:   defLogger{},
		sink:     noopActivitySink{},
		timeout:  DefaultStoreTimeout,
		ent:      Entitlement{State: EntitlementUnknown},
		subs:     map[int]func(Entitlement){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	return t
}

// Bind subscribes the tracker to the auth manager. The returned function
// severs the subscription and must be called on teardown.
func (t *EntitlementTracker) Bind(m *Manager) (unsubscribe func()) {
	return m.Subscribe(t.OnAuthChange)
}

// OnAuthChange resets the tracker for the new identity and, for non-admin
// users, issues a fresh query. Queries are not de-duplicated; instead each
// response is applied only if its target user still matches.
func (t *EntitlementTracker) OnAuthChange(snap Snapshot) {
	if snap.Loading {
		return
	}

	var user *User
	var newID string
	if snap.User != nil {
		user = snap.User
		newID = snap.User.ID
	}

	t.mu.Lock()
	if t.userID == newID && newID != "" {
		t.mu.Unlock()
		return
	}
	t.userID = newID
	t.ent = Entitlement{State: EntitlementUnknown}
	listeners := t.listenersLocked()
	t.mu.Unlock()

	notify(listeners, Entitlement{State: EntitlementUnknown})

	if user == nil || t.allow.IsAdminUser(user) {
		return
	}

	go t.fetch(user)
}

func (t *EntitlementTracker) fetch(user *User) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	ent := t.resolver.Resolve(ctx, user, false)

	t.mu.Lock()
	if t.userID != user.ID {
		// stale response: the user changed mid-flight
		t.mu.Unlock()
		return
	}
	t.ent = ent
	listeners := t.listenersLocked()
	t.mu.Unlock()

	notify(listeners, ent)

	event := ActivityEvent{
		EventType: ActivityEventEntitlementResolved,
		Actor:     ActorRef{ID: user.ID, Type: "user"},
		UserID:    user.ID,
		Metadata: map[string]any{
			"state": string(ent.State),
			"plan":  string(ent.Plan),
		},
		OccurredAt: time.Now(),
	}
	if err := normalizeActivitySink(t.sink).Record(ctx, event); err != nil {
		t.logger.Warn("entitlement activity sink error: %v", err)
	}
}

// Entitlement returns the current resolution state.
func (t *EntitlementTracker) Entitlement() Entitlement {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ent
}

// Subscribe registers a listener notified on every resolution change.
func (t *EntitlementTracker) Subscribe(fn func(Entitlement)) (unsubscribe func()) {
	t.mu.Lock()
	t.subSeq++
	id := t.subSeq
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

func (t *EntitlementTracker) listenersLocked() []func(Entitlement) {
	out := make([]func(Entitlement), 0, len(t.subs))
	for _, fn := range t.subs {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []func(Entitlement), ent Entitlement) {
	for _, fn := range listeners {
		fn(ent)
	}
}
