package authgate

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MemorySessionStore is an in-process SessionStore for development and
// tests. It issues real HS256 tokens and answers with the hosted provider's
// raw error strings so the taxonomy mapping can be exercised end to end
// without a network.
type MemorySessionStore struct {
	signingKey []byte
	tokenTTL   time.Duration

	mu        sync.Mutex
	users     map[string]*memoryUser
	current   *Session
	listeners map[int]func(*Session)
	seq       int
}

type memoryUser struct {
	id           uuid.UUID
	passwordHash string
	metadata     map[string]any
}

// NewMemorySessionStore returns an empty in-memory store.
func NewMemorySessionStore(signingKey []byte) *MemorySessionStore {
	return &MemorySessionStore{
		signingKey: signingKey,
		tokenTTL:   time.Hour,
		users:      map[string]*memoryUser{},
		listeners:  map[int]func(*Session){},
	}
}

// Seed registers a user directly, bypassing SignUp validation. Returns the
// assigned user id.
func (s *MemorySessionStore) Seed(email, password string, metadata map[string]any) (string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	s.users[email] = &memoryUser{
		id:           id,
		passwordHash: hash,
		metadata:     metadata,
	}
	return id.String(), nil
}

// GetCurrentSession implements SessionStore.
func (s *MemorySessionStore) GetCurrentSession(_ context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

// OnSessionChange implements SessionStore.
func (s *MemorySessionStore) OnSessionChange(fn func(*Session)) func() {
	s.mu.Lock()
	s.seq++
	id := s.seq
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SignInWithPassword implements SessionStore. Failures use the provider's
// raw message so TranslateProviderError has something realistic to map.
func (s *MemorySessionStore) SignInWithPassword(_ context.Context, email, password string) (*Session, error) {
	s.mu.Lock()
	user, ok := s.users[email]
	s.mu.Unlock()

	if !ok {
		return nil, errors.New("Invalid login credentials")
	}

	if err := ComparePasswordAndHash(password, user.passwordHash); err != nil {
		return nil, errors.New("Invalid login credentials")
	}

	session, err := s.issueSession(email, user)
	if err != nil {
		return nil, err
	}

	s.setCurrent(session)
	return session, nil
}

// SignUp implements SessionStore.
func (s *MemorySessionStore) SignUp(_ context.Context, email, password string, opts SignUpOptions) error {
	if len(password) < MinPasswordLength {
		return errors.New("Password should be at least 6 characters")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[email]; exists {
		return errors.New("User already registered")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	s.users[email] = &memoryUser{
		id:           uuid.New(),
		passwordHash: hash,
		metadata:     opts.Metadata,
	}
	return nil
}

// SignInWithOAuth implements SessionStore by returning the authorize URL the
// browser would be sent to.
func (s *MemorySessionStore) SignInWithOAuth(_ context.Context, provider string, opts OAuthOptions) (string, error) {
	params := url.Values{
		"provider": {provider},
	}
	if opts.RedirectTo != "" {
		params.Set("redirect_to", opts.RedirectTo)
	}
	for k, v := range opts.QueryParams {
		params.Set(k, v)
	}
	return "https://hosted.example/authorize?" + params.Encode(), nil
}

// SignOut implements SessionStore.
func (s *MemorySessionStore) SignOut(_ context.Context) error {
	s.setCurrent(nil)
	return nil
}

func (s *MemorySessionStore) issueSession(email string, user *memoryUser) (*Session, error) {
	now := time.Now()
	exp := now.Add(s.tokenTTL)

	claims := jwt.MapClaims{
		"sub":   user.id.String(),
		"email": email,
		"iat":   jwt.NewNumericDate(now),
		"exp":   jwt.NewNumericDate(exp),
	}
	if len(user.metadata) > 0 {
		claims["user_metadata"] = user.metadata
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString(s.signingKey)
	if err != nil {
		return nil, err
	}

	return &Session{
		AccessToken: raw,
		UserID:      user.id.String(),
		Email:       email,
		ExpiresAt:   &exp,
		Metadata:    user.metadata,
	}, nil
}

func (s *MemorySessionStore) setCurrent(session *Session) {
	s.mu.Lock()
	s.current = session
	listeners := make([]func(*Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(session)
	}
}

var _ SessionStore = (*MemorySessionStore)(nil)
