package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"gopscope/pkg/models"
)

// Manager issues and redeems single-use upload tokens
type Manager struct {
	tokens map[string]*models.UploadToken // token -> UploadToken
	mu     sync.Mutex

	// Config
	defaultExpiration time.Duration
	maxExpiration     time.Duration
	releaseGrace      time.Duration // how long a redeemed token can still be released
}

// New creates a new auth manager. ttl is the lifetime of tokens issued
// without an explicit expiry; requests are capped at ten times that.
// Redeemed tokens are kept for ttl so a failed upload can release them.
func New(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Manager{
		tokens:            make(map[string]*models.UploadToken),
		defaultExpiration: ttl,
		maxExpiration:     10 * ttl,
		releaseGrace:      ttl,
	}
}

// Issue creates a new upload token
func (m *Manager) Issue(expiresIn time.Duration, clientIP string) (*models.UploadToken, error) {
	// Generate secure random token
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	expiration := m.defaultExpiration
	if expiresIn > 0 {
		expiration = expiresIn
	}
	if expiration > m.maxExpiration {
		expiration = m.maxExpiration
	}

	now := time.Now()
	token := &models.UploadToken{
		Token:     hex.EncodeToString(tokenBytes),
		CreatedAt: now,
		ExpiresAt: now.Add(expiration),
		ClientIP:  clientIP,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeExpired(now)
	m.tokens[token.Token] = token
	return token, nil
}

// Redeem validates a token and marks it used
func (m *Manager) Redeem(tokenString string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, exists := m.tokens[tokenString]
	if !exists {
		return fmt.Errorf("invalid token")
	}
	if !token.IsValid() {
		return fmt.Errorf("token expired or already used")
	}

	token.Used = true
	token.UsedAt = time.Now()
	return nil
}

// Release returns a redeemed token to service after a failed upload
func (m *Manager) Release(tokenString string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if token, exists := m.tokens[tokenString]; exists {
		token.Used = false
		token.UsedAt = time.Time{}
	}
}

// Revoke removes a token
func (m *Manager) Revoke(tokenString string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tokens, tokenString)
}

// Count returns the number of tracked tokens
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// removeExpired drops unused tokens past expiry and redeemed tokens whose
// release window has closed
func (m *Manager) removeExpired(now time.Time) {
	for tokenString, token := range m.tokens {
		var stale bool
		if token.Used {
			stale = now.Sub(token.UsedAt) > m.releaseGrace
		} else {
			stale = now.After(token.ExpiresAt)
		}
		if stale {
			delete(m.tokens, tokenString)
		}
	}
}
