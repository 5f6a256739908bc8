package authgate

import (
	"strings"
	"sync"
)

// Routes is the route surface the guard decides over. These are
// configuration constants, not derived values.
type Routes struct {
	// Login is the shared login entry point
	Login string
	// AdminPrefix scopes the admin area
	AdminPrefix string
	// AdminHome is the admin landing page
	AdminHome string
	// Dashboard is the standard user dashboard
	Dashboard string
	// Landing is the public landing page
	Landing string
}

// DefaultRoutes is the route surface used when configuration is silent.
func DefaultRoutes() Routes {
	return Routes{
		Login:       "/login",
		AdminPrefix: "/admin",
		AdminHome:   "/admin/dashboard",
		Dashboard:   "/dashboard",
		Landing:     "/",
	}
}

// RoutesFromConfig builds the route surface from config, falling back to
// defaults for empty values.
func RoutesFromConfig(cfg Config) Routes {
	r := DefaultRoutes()
	if v := cfg.GetLoginPath(); v != "" {
		r.Login = v
	}
	if v := cfg.GetAdminPathPrefix(); v != "" {
		r.AdminPrefix = v
	}
	if v := cfg.GetAdminHomePath(); v != "" {
		r.AdminHome = v
	}
	if v := cfg.GetDashboardPath(); v != "" {
		r.Dashboard = v
	}
	if v := cfg.GetLandingPath(); v != "" {
		r.Landing = v
	}
	return r
}

// InAdminArea reports whether the path is within the admin area.
func (r Routes) InAdminArea(path string) bool {
	return strings.HasPrefix(path, r.AdminPrefix)
}

// RouteDecision is the ephemeral outcome of one policy evaluation: allow the
// render, or redirect to a target path. It is computed per evaluation and
// never stored.
type RouteDecision struct {
	Redirect bool
	Path     string
}

// Allow renders the current path.
func Allow() RouteDecision {
	return RouteDecision{}
}

// RedirectTo navigates to the target path.
func RedirectTo(path string) RouteDecision {
	return RouteDecision{Redirect: true, Path: path}
}

// RouteGuard evaluates the access policy table for a path.
type RouteGuard struct {
	routes Routes
	allow  AllowList
}

// NewRouteGuard returns a guard for the given route surface and admin
// allow-list.
func NewRouteGuard(routes Routes, allow AllowList) *RouteGuard {
	return &RouteGuard{routes: routes, allow: allow}
}

// Routes exposes the guard's route surface.
func (g *RouteGuard) Routes() Routes {
	return g.routes
}

// Evaluate runs the policy table top to bottom, first match wins. It never
// acts while the auth state is still loading, and the rules are mutually
// exclusive on the redirected path, so chained re-evaluations reach a fixed
// point instead of looping.
//
//  1. no user, admin-area path            -> login
//  2. admin on the login path             -> admin home
//  3. non-admin in the admin area         -> dashboard
//  4. non-admin on the login path, with a
//     resolved entitlement                -> dashboard if present, else landing
//  5. otherwise                           -> allow
//
// Rule 4 deliberately waits for resolution: while entitlement is unknown no
// navigation is issued. Admin rules never consult entitlement.
func (g *RouteGuard) Evaluate(snap Snapshot, ent Entitlement, path string) RouteDecision {
	if snap.Loading {
		return Allow()
	}

	user := snap.User
	isAdmin := g.allow.IsAdminUser(user)
	inAdmin := g.routes.InAdminArea(path)
	onLogin := path == g.routes.Login

	switch {
	case user == nil && inAdmin:
		return RedirectTo(g.routes.Login)

	case user != nil && isAdmin && onLogin:
		return RedirectTo(g.routes.AdminHome)

	case user != nil && !isAdmin && inAdmin:
		return RedirectTo(g.routes.Dashboard)

	case user != nil && !isAdmin && onLogin && ent.State.Resolved():
		if ent.State == EntitlementPresent {
			return RedirectTo(g.routes.Dashboard)
		}
		return RedirectTo(g.routes.Landing)
	}

	return Allow()
}

// Navigator performs a client-side (soft) navigation.
type Navigator func(path string)

// AdminRedirector drives the admin area and the post-login landing decision
// reactively: every change to (user, loading, path, role, entitlement)
// re-runs the policy table, and each evaluation issues at most one
// navigation. A navigation changes the path, which triggers the next
// evaluation; the table's exclusivity guarantees termination.
type AdminRedirector struct {
	guard    *RouteGuard
	navigate Navigator

	mu   sync.Mutex
	path string
	snap Snapshot
	ent  Entitlement
}

// NewAdminRedirector returns a redirector evaluating the guard against the
// given navigator.
func NewAdminRedirector(guard *RouteGuard, navigate Navigator) *AdminRedirector {
	return &AdminRedirector{
		guard:    guard,
		navigate: navigate,
		snap:     Snapshot{Loading: true},
		ent:      Entitlement{State: EntitlementUnknown},
	}
}

// Bind subscribes the redirector to auth and entitlement changes. The
// returned function severs both subscriptions.
func (r *AdminRedirector) Bind(m *Manager, t *EntitlementTracker) (unsubscribe func()) {
	unsubAuth := m.Subscribe(r.OnAuthChange)
	unsubEnt := t.Subscribe(r.OnEntitlementChange)
	return func() {
		unsubAuth()
		unsubEnt()
	}
}

// SetPath records an external (router-driven) path change and re-evaluates.
func (r *AdminRedirector) SetPath(path string) {
	r.mu.Lock()
	r.path = path
	r.mu.Unlock()
	r.evaluate()
}

// Path returns the path the redirector currently considers active.
func (r *AdminRedirector) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// OnAuthChange re-evaluates with the new auth snapshot.
func (r *AdminRedirector) OnAuthChange(snap Snapshot) {
	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()
	r.evaluate()
}

// OnEntitlementChange re-evaluates with the new entitlement state.
func (r *AdminRedirector) OnEntitlementChange(ent Entitlement) {
	r.mu.Lock()
	r.ent = ent
	r.mu.Unlock()
	r.evaluate()
}

func (r *AdminRedirector) evaluate() {
	for {
		r.mu.Lock()
		decision := r.guard.Evaluate(r.snap, r.ent, r.path)
		if !decision.Redirect || decision.Path == r.path {
			r.mu.Unlock()
			return
		}
		r.path = decision.Path
		r.mu.Unlock()

		// one navigation per evaluation; the path change re-enters the table
		if r.navigate != nil {
			r.navigate(decision.Path)
		}
	}
}
