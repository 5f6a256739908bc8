// Package gotrue implements the authgate.SessionStore contract against a
// GoTrue-compatible hosted identity provider.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/patrickmn/go-cache"
	authgate "github.com/primevalon/go-authgate"
)

const (
	pathToken     = "/token"
	pathSignUp    = "/signup"
	pathAuthorize = "/authorize"
	pathLogout    = "/logout"
	pathUser      = "/user"
)

// DefaultTimeout bounds every request to the hosted provider; past it the
// request is aborted and treated as a connection failure.
const DefaultTimeout = 5 * time.Second

// Config holds hosted provider options.
type Config struct {
	// BaseURL is the auth endpoint root, e.g. https://xyz.hosted.co/auth/v1
	BaseURL string
	// APIKey is the project's public API key, sent on every request
	APIKey string

	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     authgate.Logger
}

// Client talks to the hosted provider. It caches parsed sessions by access
// token until their expiry and fans session changes out to subscribers.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     authgate.Logger
	sessions   *cache.Cache

	mu        sync.Mutex
	current   *authgate.Session
	listeners map[int]func(*authgate.Session)
	seq       int
	expiry    *time.Timer
}

var _ authgate.SessionStore = (*Client)(nil)

// New creates a hosted provider client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Client{
		config:     cfg,
		httpClient: client,
		logger:     logger,
		sessions:   cache.New(time.Hour, 10*time.Minute),
		listeners:  map[int]func(*authgate.Session){},
	}
}

// GetCurrentSession implements authgate.SessionStore.
func (c *Client) GetCurrentSession(ctx context.Context) (*authgate.Session, error) {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current == nil {
		return nil, nil
	}

	if cached, ok := c.sessions.Get(current.AccessToken); ok {
		return cached.(*authgate.Session), nil
	}

	// cache expired alongside the token; confirm with the provider
	c.logger.Debug("session cache miss for %s, confirming with provider", current.Email)
	session, err := c.fetchUser(ctx, current.AccessToken)
	if err != nil {
		return nil, err
	}

	c.setCurrent(session)
	return session, nil
}

// OnSessionChange implements authgate.SessionStore.
func (c *Client) OnSessionChange(fn func(*authgate.Session)) func() {
	c.mu.Lock()
	c.seq++
	id := c.seq
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
	User        userResponse `json:"user"`
}

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// SignInWithPassword implements authgate.SessionStore.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*authgate.Session, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}

	var out tokenResponse
	if err := c.post(ctx, pathToken+"?grant_type=password", body, &out); err != nil {
		return nil, err
	}

	session := sessionFromTokenResponse(out)
	c.setCurrent(session)
	return session, nil
}

// SignUp implements authgate.SessionStore. The redirect target and metadata
// ride along so the provider can complete email confirmation and seed the
// display name.
func (c *Client) SignUp(ctx context.Context, email, password string, opts authgate.SignUpOptions) error {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	if len(opts.Metadata) > 0 {
		body["data"] = opts.Metadata
	}

	path := pathSignUp
	if opts.RedirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(opts.RedirectTo)
	}

	return c.post(ctx, path, body, nil)
}

// SignInWithOAuth implements authgate.SessionStore: it builds the authorize
// URL the browser must be sent to. The provider redirects away, so a nil
// error means "redirect initiated".
func (c *Client) SignInWithOAuth(_ context.Context, provider string, opts authgate.OAuthOptions) (string, error) {
	if provider == "" {
		return "", goerrors.New("oauth provider is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	params := url.Values{
		"provider": {provider},
	}
	if opts.RedirectTo != "" {
		params.Set("redirect_to", opts.RedirectTo)
	}
	for k, v := range opts.QueryParams {
		params.Set(k, v)
	}

	return c.config.BaseURL + pathAuthorize + "?" + params.Encode(), nil
}

// SignOut implements authgate.SessionStore.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	var err error
	if current != nil {
		err = c.postAuthed(ctx, pathLogout, current.AccessToken)
	}

	c.setCurrent(nil)
	return err
}

// refreshExpired fires when the current session's token reaches its expiry.
// The provider is asked to confirm the token; a rejection clears the session
// so subscribers observe the sign-out.
func (c *Client) refreshExpired(token string) {
	c.mu.Lock()
	stale := c.current == nil || c.current.AccessToken != token
	c.mu.Unlock()
	if stale {
		return
	}

	timeout := c.config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	session, err := c.fetchUser(ctx, token)
	if err != nil {
		c.logger.Warn("session expired and provider refused refresh: %v", err)
		c.setCurrent(nil)
		return
	}
	c.setCurrent(session)
}

func (c *Client) fetchUser(ctx context.Context, accessToken string) (*authgate.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+pathUser, nil)
	if err != nil {
		return nil, err
	}
	c.decorate(req)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, connectionError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode user response")
	}

	return &authgate.Session{
		AccessToken: accessToken,
		UserID:      user.ID,
		Email:       user.Email,
		Metadata:    user.UserMetadata,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.decorate(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return connectionError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode provider response")
		}
	}

	return nil
}

func (c *Client) postAuthed(ctx context.Context, path, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, nil)
	if err != nil {
		return err
	}
	c.decorate(req)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return connectionError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	return nil
}

func (c *Client) decorate(req *http.Request) {
	if c.config.APIKey != "" {
		req.Header.Set("apikey", c.config.APIKey)
	}
}

func (c *Client) setCurrent(session *authgate.Session) {
	c.mu.Lock()
	c.current = session
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
	if session != nil && session.ExpiresAt != nil {
		token := session.AccessToken
		c.expiry = time.AfterFunc(time.Until(*session.ExpiresAt), func() {
			c.refreshExpired(token)
		})
	}
	listeners := make([]func(*authgate.Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	if session != nil {
		ttl := cache.DefaultExpiration
		if session.ExpiresAt != nil {
			ttl = time.Until(*session.ExpiresAt)
		}
		c.sessions.Set(session.AccessToken, session, ttl)
	}

	for _, fn := range listeners {
		fn(session)
	}
}

func sessionFromTokenResponse(out tokenResponse) *authgate.Session {
	session := &authgate.Session{
		AccessToken: out.AccessToken,
		UserID:      out.User.ID,
		Email:       out.User.Email,
		Metadata:    out.User.UserMetadata,
	}

	if out.ExpiresIn > 0 {
		exp := time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
		session.ExpiresAt = &exp
	}

	return session
}

type providerError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Msg         string `json:"msg"`
	Message     string `json:"message"`
}

// decodeError surfaces the provider's raw message; translation into the
// user-facing taxonomy happens at the Manager boundary.
func decodeError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return goerrors.New(fmt.Sprintf("provider returned status %d", resp.StatusCode), goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	var perr providerError
	msg := ""
	if err := json.Unmarshal(body, &perr); err == nil {
		switch {
		case perr.Description != "":
			msg = perr.Description
		case perr.Msg != "":
			msg = perr.Msg
		case perr.Message != "":
			msg = perr.Message
		case perr.Error != "":
			msg = perr.Error
		}
	}

	if msg == "" {
		msg = fmt.Sprintf("provider returned status %d", resp.StatusCode)
	}

	return goerrors.New(msg, goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithMetadata(map[string]any{"status": resp.StatusCode})
}

func connectionError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "connection error").
		WithCode(goerrors.CodeInternal)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
