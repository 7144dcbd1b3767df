package accounts

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Registry routes channel operations to the provider owning the channel
// type. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]ChannelProvider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]ChannelProvider)}
}

// Register adds a provider, replacing any previous provider for its type.
func (r *Registry) Register(p ChannelProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Type()] = p
}

// Provider returns the provider for a channel type.
func (r *Registry) Provider(channelType string) (ChannelProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[channelType]
	return p, ok
}

// CreateChannel dispatches channel creation by type.
func (r *Registry) CreateChannel(ctx context.Context, channelType string, params CreateParams) (string, error) {
	p, ok := r.Provider(channelType)
	if !ok {
		return "", fmt.Errorf("%w: no provider for channel type %q", ErrValidation, channelType)
	}
	return p.CreateChannel(ctx, params)
}

// DeleteChannel dispatches channel deletion by the "<type>:<id>" prefix.
func (r *Registry) DeleteChannel(ctx context.Context, channelID string) error {
	channelType, _, ok := strings.Cut(channelID, ":")
	if !ok {
		return fmt.Errorf("%w: channel id %q has no type prefix", ErrValidation, channelID)
	}
	p, found := r.Provider(channelType)
	if !found {
		return fmt.Errorf("%w: no provider for channel type %q", ErrValidation, channelType)
	}
	return p.DeleteChannel(ctx, channelID)
}
