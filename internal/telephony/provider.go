package telephony

import (
	"context"
	"sync"
)

// ChannelProvider hands out the control surface for a call leg. The real
// implementation talks to the telephony control plane; the mock provider
// backs dry runs and tests.
type ChannelProvider interface {
	ChannelFor(ctx context.Context, callID string) (Channel, error)
}

// MockProvider creates one MockChannel per call and remembers it so tests
// can inspect the channel afterwards.
type MockProvider struct {
	mu       sync.Mutex
	channels map[string]*MockChannel
}

func NewMockProvider() *MockProvider {
	return &MockProvider{channels: make(map[string]*MockChannel)}
}

func (p *MockProvider) ChannelFor(_ context.Context, callID string) (Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.channels[callID]; ok {
		return ch, nil
	}
	ch := NewMockChannel()
	p.channels[callID] = ch
	return ch, nil
}

// Channel returns the mock channel created for a call, if any.
func (p *MockProvider) Channel(callID string) (*MockChannel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[callID]
	return ch, ok
}
