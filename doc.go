// Package authgate implements the authentication and authorization slice of a
// multi-tenant SaaS dashboard: session state, role resolution, plan
// entitlements, and route guarding.
//
// Session state:
//   - Manager is the process-wide source of truth for "who is logged in". It
//     wraps a hosted SessionStore, initializes from both a push subscription
//     and an explicit fetch (last write wins), and exposes SignIn, SignUp,
//     SignInWithGoogle, and SignOut. Store failures are translated into a
//     fixed error taxonomy at this boundary and never escape raw.
//
// Roles and entitlements:
//   - AllowList derives the admin role from a static, build-time configured
//     set of email addresses. EntitlementResolver queries the entitlement
//     store for the newest active subscription row; failures degrade to
//     "absent" so access-granting paths are never reached on error.
//     EntitlementTracker re-resolves on every identity change and discards
//     stale responses.
//
// Route guarding:
//   - RouteGuard evaluates a first-match policy table over (user, loading,
//     path, role, entitlement) and returns a RouteDecision. AdminRedirector
//     runs the table reactively, issuing at most one navigation per
//     evaluation. RequireRole is the scoped middleware variant for protecting
//     individual route subtrees.
package authgate
