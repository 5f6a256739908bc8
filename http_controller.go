package authgate

import (
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the auth controller on a router.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.
		Get(controller.Routes.Login, controller.LoginShow).
		SetName("sign-in.get")

	app.
		Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")

	app.Get(controller.Routes.Register, controller.RegistrationShow).
		SetName("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.Get(controller.Routes.OAuthGoogle, controller.GoogleRedirect).
		SetName("oauth-google.get")
}

type AuthControllerRoutes struct {
	Login       string
	Logout      string
	Register    string
	OAuthGoogle string
}

type AuthControllerViews struct {
	Login    string
	Register string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Manager      *Manager
	Guard        *RouteGuard
	Resolver     *EntitlementResolver
	Routes       *AuthControllerRoutes
	Views        *AuthControllerViews
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerManager sets the auth manager.
func WithControllerManager(m *Manager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Manager = m
		return c
	}
}

// WithControllerGuard sets the route guard.
func WithControllerGuard(g *RouteGuard) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Guard = g
		return c
	}
}

// WithControllerResolver sets the entitlement resolver used for the
// post-login landing decision.
func WithControllerResolver(r *EntitlementResolver) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Resolver = r
		return c
	}
}

// WithControllerLogger sets the logger.
func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = l
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultControllerErrHandler,
		Routes: &AuthControllerRoutes{
			Login:       "/login",
			Logout:      "/logout",
			Register:    "/register",
			OAuthGoogle: "/oauth/google",
		},
		Views: &AuthControllerViews{
			Login:    "login",
			Register: "register",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Manager == nil {
		panic("Missing Manager in auth controller...")
	}

	if c.Guard == nil {
		c.Guard = NewRouteGuard(c.Manager.Routes(), c.Manager.AllowList())
	}

	return c
}

func (a *AuthController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": err.Error(),
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	if err := a.Manager.SignIn(ctx.Context(), payload.Email, payload.Password); err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record": payload,
			"errors": err.Error(),
		})
	}

	return a.redirectAfterLogin(ctx)
}

// redirectAfterLogin applies the guard's policy table to the login path. The
// admin branch answers with a full redirect to the admin home: the admin
// area must bootstrap from a clean page load, not a soft navigation.
func (a *AuthController) redirectAfterLogin(ctx router.Context) error {
	snap := a.Manager.Snapshot()
	routes := a.Guard.Routes()

	if a.Guard.allow.IsAdminUser(snap.User) {
		return ctx.Redirect(routes.AdminHome, http.StatusSeeOther)
	}

	ent := Entitlement{State: EntitlementUnknown}
	if a.Resolver != nil {
		ent = a.Resolver.Resolve(ctx.Context(), snap.User, false)
	}

	decision := a.Guard.Evaluate(snap, ent, routes.Login)
	if decision.Redirect {
		return ctx.Redirect(decision.Path, http.StatusSeeOther)
	}

	return ctx.Redirect(routes.Landing, http.StatusSeeOther)
}

func (a *AuthController) LogOut(ctx router.Context) error {
	a.Manager.SignOut(ctx.Context())
	return ctx.Redirect(a.Guard.Routes().Landing, http.StatusFound)
}

func (a *AuthController) RegistrationShow(ctx router.Context) error {
	return ctx.Render(a.Views.Register, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// RegisterRequest payload
type RegisterRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	FullName string `form:"full_name" json:"full_name"`
	Phone    string `form:"phone" json:"phone"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(MinPasswordLength, 0),
		),
		validation.Field(
			&r.FullName,
			validation.Required,
		),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Register, router.ViewContext{
			"record":     payload,
			"validation": err.Error(),
		})
	}

	handler := NewSignUpHandler(a.Manager)
	if err := handler.Execute(ctx.Context(), SignUpMessage{
		Email:    payload.Email,
		Password: payload.Password,
		FullName: payload.FullName,
		Phone:    payload.Phone,
	}); err != nil {
		return ctx.Render(a.Views.Register, router.ViewContext{
			"record": payload,
			"errors": err.Error(),
		})
	}

	return ctx.Redirect(a.Routes.Login, http.StatusSeeOther)
}

// GoogleRedirect starts the OAuth flow: the browser is sent to the
// provider's authorize URL and comes back through the hosted callback.
func (a *AuthController) GoogleRedirect(ctx router.Context) error {
	url, err := a.Manager.SignInWithGoogle(ctx.Context())
	if err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"errors": err.Error(),
		})
	}

	return ctx.Redirect(url, http.StatusFound)
}

func defaultControllerErrHandler(c router.Context, err error) error {
	return c.Status(http.StatusBadRequest).Render("errors/400", router.ViewContext{
		"error": err.Error(),
	})
}
