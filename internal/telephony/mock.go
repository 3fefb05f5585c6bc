package telephony

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockChannel is an in-memory Channel used by tests and local dry runs. It
// records every operation and hands out deterministic playback/recording
// identifiers so a test can feed the matching completion events back in.
type MockChannel struct {
	mu         sync.Mutex
	answered   bool
	hungup     bool
	played     []string
	playbacks  int
	recordings int
	redirects  []string

	PlayErr     error
	RecordErr   error
	RedirectErr error
}

func NewMockChannel() *MockChannel { return &MockChannel{} }

func (c *MockChannel) Answer(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hungup {
		return ErrChannelClosed
	}
	c.answered = true
	return nil
}

func (c *MockChannel) Play(_ context.Context, mediaRef string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hungup {
		return "", ErrChannelClosed
	}
	if c.PlayErr != nil {
		return "", c.PlayErr
	}
	c.playbacks++
	c.played = append(c.played, mediaRef)
	return fmt.Sprintf("pb-%d", c.playbacks), nil
}

func (c *MockChannel) Record(_ context.Context, name, _ string, _ time.Duration, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hungup {
		return "", ErrChannelClosed
	}
	if c.RecordErr != nil {
		return "", c.RecordErr
	}
	c.recordings++
	return fmt.Sprintf("rec-%d-%s", c.recordings, name), nil
}

func (c *MockChannel) Hangup(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hungup = true
	return nil
}

func (c *MockChannel) Redirect(_ context.Context, endpoint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hungup {
		return ErrChannelClosed
	}
	if c.RedirectErr != nil {
		return c.RedirectErr
	}
	c.redirects = append(c.redirects, endpoint)
	return nil
}

func (c *MockChannel) Answered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answered
}

func (c *MockChannel) HungUp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hungup
}

// Played returns the media refs played so far, in order.
func (c *MockChannel) Played() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.played))
	copy(out, c.played)
	return out
}

func (c *MockChannel) Recordings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordings
}

func (c *MockChannel) Redirects() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.redirects))
	copy(out, c.redirects)
	return out
}
