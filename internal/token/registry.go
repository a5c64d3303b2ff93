// Package token issues and redeems single-use, time-limited download tokens.
package token

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ytgrab/pkg/models"
)

// TTL is how long an issued token stays redeemable
const TTL = 5 * time.Minute

// sweepInterval is how often expired tokens are purged
const sweepInterval = 5 * time.Minute

var (
	ErrNotFound = errors.New("token not found")
	ErrUsed     = errors.New("token already used")
	ErrExpired  = errors.New("token expired")
)

// DownloadToken authorizes one stream request for one video and kind
type DownloadToken struct {
	VideoID   string
	Kind      models.MediaKind
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// Registry is the process-wide token store. Redemption is atomic: the
// check-unused-and-mark-used step happens under the lock, so a token can
// never be redeemed twice even under concurrent attempts.
type Registry struct {
	mu     sync.Mutex
	tokens map[string]*DownloadToken
	logger *slog.Logger
}

// NewRegistry creates an empty token registry
func NewRegistry() *Registry {
	return &Registry{
		tokens: make(map[string]*DownloadToken),
		logger: slog.Default(),
	}
}

// Issue creates a new single-use token for the video and kind and returns
// the opaque token string with its TTL
func (r *Registry) Issue(videoID string, kind models.MediaKind) (string, time.Duration) {
	now := time.Now()
	tok := uuid.NewString()

	r.mu.Lock()
	r.tokens[tok] = &DownloadToken{
		VideoID:   videoID,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(TTL),
	}
	r.mu.Unlock()

	return tok, TTL
}

// Redeem consumes a token, returning the video ID and kind it authorizes.
// A token that is unknown, already used or expired is permanently rejected.
func (r *Registry) Redeem(tok string) (string, models.MediaKind, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.tokens[tok]
	if !ok {
		return "", "", ErrNotFound
	}
	if entry.Used {
		return "", "", ErrUsed
	}
	if time.Now().After(entry.ExpiresAt) {
		return "", "", ErrExpired
	}

	entry.Used = true
	return entry.VideoID, entry.Kind, nil
}

// Count returns the number of tokens currently held, used or not
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

// RunJanitor periodically removes expired tokens until the context is
// cancelled
func (r *Registry) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Token janitor shutting down")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep deletes every token past its expiry, regardless of used state
func (r *Registry) Sweep() {
	now := time.Now()
	removed := 0

	r.mu.Lock()
	for tok, entry := range r.tokens {
		if now.After(entry.ExpiresAt) {
			delete(r.tokens, tok)
			removed++
		}
	}
	r.mu.Unlock()

	if removed > 0 {
		r.logger.Info("Removed expired tokens", "count", removed)
	}
}
