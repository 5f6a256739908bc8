package authgate_test

import (
	"testing"

	authgate "github.com/primevalon/go-authgate"
	"github.com/stretchr/testify/assert"
)

func guardFixture() *authgate.RouteGuard {
	return authgate.NewRouteGuard(
		authgate.DefaultRoutes(),
		authgate.NewAllowList("ops@example.com"),
	)
}

func TestRouteGuardEvaluate(t *testing.T) {
	admin := &authgate.User{ID: "admin-1", Email: "ops@example.com"}
	standard := &authgate.User{ID: "user-1", Email: "user@example.com"}

	unknown := authgate.Entitlement{State: authgate.EntitlementUnknown}
	present := authgate.Entitlement{State: authgate.EntitlementPresent, Plan: authgate.PlanPlus}
	absent := authgate.Entitlement{State: authgate.EntitlementAbsent}

	tests := []struct {
		name     string
		snap     authgate.Snapshot
		ent      authgate.Entitlement
		path     string
		expected authgate.RouteDecision
	}{
		{
			name:     "Loading never navigates",
			snap:     authgate.Snapshot{Loading: true},
			ent:      unknown,
			path:     "/admin/users",
			expected: authgate.Allow(),
		},
		{
			name:     "Anonymous in admin area goes to login",
			snap:     authgate.Snapshot{},
			ent:      unknown,
			path:     "/admin/users",
			expected: authgate.RedirectTo("/login"),
		},
		{
			name:     "Anonymous on login stays",
			snap:     authgate.Snapshot{},
			ent:      unknown,
			path:     "/login",
			expected: authgate.Allow(),
		},
		{
			name:     "Anonymous on public page stays",
			snap:     authgate.Snapshot{},
			ent:      unknown,
			path:     "/pricing",
			expected: authgate.Allow(),
		},
		{
			name:     "Admin on login goes to admin home",
			snap:     authgate.Snapshot{User: admin},
			ent:      unknown,
			path:     "/login",
			expected: authgate.RedirectTo("/admin/dashboard"),
		},
		{
			name:     "Admin in admin area stays",
			snap:     authgate.Snapshot{User: admin},
			ent:      unknown,
			path:     "/admin/users",
			expected: authgate.Allow(),
		},
		{
			name:     "Standard user in admin area goes to dashboard",
			snap:     authgate.Snapshot{User: standard},
			ent:      present,
			path:     "/admin/users",
			expected: authgate.RedirectTo("/dashboard"),
		},
		{
			name: "Standard user on login waits for entitlement",
			snap: authgate.Snapshot{User: standard},
			ent:  unknown,
			path: "/login",
			// no action until the entitlement query resolves
			expected: authgate.Allow(),
		},
		{
			name:     "Standard user on login with entitlement goes to dashboard",
			snap:     authgate.Snapshot{User: standard},
			ent:      present,
			path:     "/login",
			expected: authgate.RedirectTo("/dashboard"),
		},
		{
			name:     "Standard user on login without entitlement goes to landing",
			snap:     authgate.Snapshot{User: standard},
			ent:      absent,
			path:     "/login",
			expected: authgate.RedirectTo("/"),
		},
		{
			name:     "Standard user on dashboard stays",
			snap:     authgate.Snapshot{User: standard},
			ent:      present,
			path:     "/dashboard",
			expected: authgate.Allow(),
		},
	}

	guard := guardFixture()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, guard.Evaluate(tt.snap, tt.ent, tt.path))
		})
	}
}

func TestRouteGuardRedirectTargetsAreStable(t *testing.T) {
	guard := guardFixture()
	standard := &authgate.User{ID: "user-1", Email: "user@example.com"}
	present := authgate.Entitlement{State: authgate.EntitlementPresent}

	// re-evaluating on the redirected path must reach a fixed point
	decision := guard.Evaluate(authgate.Snapshot{User: standard}, present, "/admin/users")
	assert.True(t, decision.Redirect)

	decision = guard.Evaluate(authgate.Snapshot{User: standard}, present, decision.Path)
	assert.False(t, decision.Redirect)
}

func TestAdminRedirectorNavigatesOnce(t *testing.T) {
	guard := guardFixture()

	var navigations []string
	redirector := authgate.NewAdminRedirector(guard, func(path string) {
		navigations = append(navigations, path)
	})

	redirector.SetPath("/admin/users")

	// nothing happens while auth is loading
	assert.Empty(t, navigations)

	redirector.OnAuthChange(authgate.Snapshot{
		User: &authgate.User{ID: "user-1", Email: "user@example.com"},
	})

	assert.Equal(t, []string{"/dashboard"}, navigations)
	assert.Equal(t, "/dashboard", redirector.Path())
}

func TestAdminRedirectorAnonymousKickedToLogin(t *testing.T) {
	guard := guardFixture()

	var navigations []string
	redirector := authgate.NewAdminRedirector(guard, func(path string) {
		navigations = append(navigations, path)
	})

	redirector.OnAuthChange(authgate.Snapshot{})
	redirector.SetPath("/admin/users")

	assert.Equal(t, []string{"/login"}, navigations)
}

func TestAdminRedirectorPostLoginLanding(t *testing.T) {
	guard := guardFixture()

	var navigations []string
	redirector := authgate.NewAdminRedirector(guard, func(path string) {
		navigations = append(navigations, path)
	})

	redirector.OnAuthChange(authgate.Snapshot{})
	redirector.SetPath("/login")
	assert.Empty(t, navigations)

	redirector.OnAuthChange(authgate.Snapshot{
		User: &authgate.User{ID: "user-1", Email: "user@example.com"},
	})
	// entitlement still unknown: the redirector waits
	assert.Empty(t, navigations)

	redirector.OnEntitlementChange(authgate.Entitlement{State: authgate.EntitlementAbsent})
	assert.Equal(t, []string{"/"}, navigations)

	// further evaluations on the landing page are a no-op
	redirector.OnEntitlementChange(authgate.Entitlement{State: authgate.EntitlementAbsent})
	assert.Equal(t, []string{"/"}, navigations)
}

func TestAdminRedirectorAdminLogin(t *testing.T) {
	guard := guardFixture()

	var navigations []string
	redirector := authgate.NewAdminRedirector(guard, func(path string) {
		navigations = append(navigations, path)
	})

	redirector.OnAuthChange(authgate.Snapshot{})
	redirector.SetPath("/login")

	redirector.OnAuthChange(authgate.Snapshot{
		User: &authgate.User{ID: "admin-1", Email: "ops@example.com"},
	})

	// admin rules never wait on entitlement
	assert.Equal(t, []string{"/admin/dashboard"}, navigations)
}

func TestRoutesInAdminArea(t *testing.T) {
	routes := authgate.DefaultRoutes()

	assert.True(t, routes.InAdminArea("/admin"))
	assert.True(t, routes.InAdminArea("/admin/users"))
	assert.False(t, routes.InAdminArea("/dashboard"))
	assert.False(t, routes.InAdminArea("/"))
}

func TestRoutesFromConfig(t *testing.T) {
	routes := authgate.RoutesFromConfig(&authgate.EnvConfig{
		LoginPath:   "/signin",
		AdminPrefix: "/backoffice",
	})

	assert.Equal(t, "/signin", routes.Login)
	assert.Equal(t, "/backoffice", routes.AdminPrefix)
	// unset values fall back to defaults
	assert.Equal(t, "/dashboard", routes.Dashboard)
	assert.Equal(t, "/", routes.Landing)
}
