package asr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxhalo/halo/internal/api"
)

// defaultRefreshMargin is how long before expiry a token is considered due
// for replacement. Tokens are issued for roughly a day; refreshing at the
// half-way mark leaves ample room for an outage.
const defaultRefreshMargin = 12 * time.Hour

// checkInterval is how often the background refresher re-evaluates the
// cached token.
const checkInterval = 15 * time.Minute

// TokenClient fetches recognizer credentials. Implemented by the API client.
type TokenClient interface {
	FetchToken(ctx context.Context) (api.Token, error)
}

// TokenManager caches the recognizer credential and replaces it before it
// expires. A failed refresh keeps the cached token in service until it
// actually runs out; recognition degrades, the session does not.
type TokenManager struct {
	client TokenClient
	margin time.Duration
	log    *slog.Logger

	mu  sync.Mutex
	tok api.Token
}

// NewTokenManager builds a TokenManager. A non-positive margin uses the
// 12-hour default.
func NewTokenManager(client TokenClient, margin time.Duration, logger *slog.Logger) *TokenManager {
	if margin <= 0 {
		margin = defaultRefreshMargin
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenManager{
		client: client,
		margin: margin,
		log:    logger,
	}
}

// Token returns a credential good for immediate use, fetching a fresh one
// when the cache is empty or due for replacement.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	cached := m.tok
	m.mu.Unlock()

	if cached.Value != "" && time.Until(cached.ExpiresAt) > m.margin {
		return cached.Value, nil
	}

	tok, err := m.client.FetchToken(ctx)
	if err != nil {
		// A token past its refresh margin is still valid until expiry.
		if cached.Value != "" && time.Now().Before(cached.ExpiresAt) {
			m.log.Warn("token refresh failed, serving cached token",
				slog.Time("expires_at", cached.ExpiresAt),
				slog.String("error", err.Error()))
			return cached.Value, nil
		}
		return "", fmt.Errorf("asr: fetch token: %w", err)
	}

	m.mu.Lock()
	m.tok = tok
	m.mu.Unlock()
	return tok.Value, nil
}

// Fresh reports whether the cached token exists and is not yet due for
// replacement. Used by the readiness probe.
func (m *TokenManager) Fresh() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tok.Value != "" && time.Until(m.tok.ExpiresAt) > m.margin
}

// Run refreshes the token proactively until ctx is cancelled. Refresh
// failures are logged and retried on the next check.
func (m *TokenManager) Run(ctx context.Context) error {
	if _, err := m.Token(ctx); err != nil && ctx.Err() == nil {
		m.log.Warn("initial token fetch failed", slog.String("error", err.Error()))
	}

	t := time.NewTicker(checkInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if m.Fresh() {
				continue
			}
			if _, err := m.Token(ctx); err != nil && ctx.Err() == nil {
				m.log.Warn("token refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}
