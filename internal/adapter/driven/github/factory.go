package github

import (
	"sync"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClientFactory = (*Factory)(nil)

// Factory hands out clients scoped to a user credential. Clients are cached
// per token so their httpcache transports (and the conditional-request ETags
// inside them) survive across refreshes of the same user.
type Factory struct {
	timeout time.Duration

	mu      sync.Mutex
	clients map[string]*Client
}

// NewFactory creates a Factory whose clients apply the given outbound
// request timeout.
func NewFactory(timeout time.Duration) *Factory {
	return &Factory{
		timeout: timeout,
		clients: make(map[string]*Client),
	}
}

// ClientFor returns the cached client for the token, creating one on first use.
func (f *Factory) ClientFor(token string) driven.GitHubClient {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[token]; ok {
		return client
	}

	client := NewClient(token, f.timeout)
	f.clients[token] = client
	return client
}
