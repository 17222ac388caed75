package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fieldops/riskmeter/internal/cache"
)

// Roles known to the service.
const (
	RoleAdmin      = "admin"
	RoleDispatcher = "dispatcher"
	RoleAgent      = "agent"
	RoleClient     = "client"
)

// Session is an active operator session. Role impersonation creates a
// child session carrying both the real role and the impersonated one, so
// audit trails keep the true identity.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Role             string    `json:"role"`
	ImpersonatedRole string    `json:"impersonated_role,omitempty"`
	ParentID         string    `json:"parent_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// EffectiveRole is the role authorization checks should use.
func (s *Session) EffectiveRole() string {
	if s.ImpersonatedRole != "" {
		return s.ImpersonatedRole
	}
	return s.Role
}

// Store holds active sessions in an injected TTL cache. Nothing here is
// package-level state; callers construct one store and pass it around.
type Store struct {
	cache      *cache.Cache
	jwtSecret  []byte
	defaultTTL time.Duration
}

// NewStore creates a session store over the given cache.
func NewStore(c *cache.Cache, jwtSecret string, defaultTTL time.Duration) *Store {
	return &Store{
		cache:      c,
		jwtSecret:  []byte(jwtSecret),
		defaultTTL: defaultTTL,
	}
}

func sessionKey(id string) string {
	return "session:" + id
}

func (s *Store) put(session *Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	s.cache.SetWithTTL(sessionKey(session.ID), data, ttl)
	return nil
}

// Create starts a new session for a user and role.
func (s *Store) Create(userID, role string) (*Session, error) {
	now := time.Now()
	session := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.defaultTTL),
	}

	if err := s.put(session, s.defaultTTL); err != nil {
		return nil, err
	}

	return session, nil
}

// Impersonate creates a child session acting as another role, with its own
// TTL. Only admins and dispatchers may impersonate.
func (s *Store) Impersonate(parent *Session, role string, ttl time.Duration) (*Session, error) {
	if parent.Role != RoleAdmin && parent.Role != RoleDispatcher {
		return nil, fmt.Errorf("role %s may not impersonate", parent.Role)
	}

	if ttl <= 0 || ttl > s.defaultTTL {
		ttl = s.defaultTTL
	}

	now := time.Now()
	session := &Session{
		ID:               uuid.New().String(),
		UserID:           parent.UserID,
		Role:             parent.Role,
		ImpersonatedRole: role,
		ParentID:         parent.ID,
		CreatedAt:        now,
		ExpiresAt:        now.Add(ttl),
	}

	if err := s.put(session, ttl); err != nil {
		return nil, err
	}

	return session, nil
}

// Get looks up a session by ID. Expired or unknown sessions return false.
func (s *Store) Get(id string) (*Session, bool) {
	data, found := s.cache.Get(sessionKey(id))
	if !found {
		return nil, false
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, false
	}

	if time.Now().After(session.ExpiresAt) {
		s.cache.Delete(sessionKey(id))
		return nil, false
	}

	return &session, true
}

// Revoke removes a session.
func (s *Store) Revoke(id string) {
	s.cache.Delete(sessionKey(id))
}

// sessionClaims are the JWT claims carried by session tokens.
type sessionClaims struct {
	SessionID string `json:"sid"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// MintToken issues a signed JWT referencing the session.
func (s *Store) MintToken(session *Session) (string, error) {
	claims := sessionClaims{
		SessionID: session.ID,
		Role:      session.EffectiveRole(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, nil
}

// VerifyToken validates a JWT and resolves the live session behind it.
func (s *Store) VerifyToken(tokenString string) (*Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token claims")
	}

	session, found := s.Get(claims.SessionID)
	if !found {
		return nil, fmt.Errorf("session expired or revoked")
	}

	return session, nil
}
