package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/reliability"
)

// DNCRegistrar records numbers that must never be dialed again.
type DNCRegistrar interface {
	Add(ctx context.Context, phone, reason string) error
}

// HTTPDNCRegistrar forwards removal requests to the compliance service.
type HTTPDNCRegistrar struct {
	url    string
	client *http.Client
}

func NewHTTPDNCRegistrar(url string) *HTTPDNCRegistrar {
	return &HTTPDNCRegistrar{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (r *HTTPDNCRegistrar) Add(ctx context.Context, phone, reason string) error {
	payload, err := json.Marshal(map[string]string{
		"phone":  phone,
		"reason": reason,
	})
	if err != nil {
		return fmt.Errorf("encode dnc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.client.Do(req)
	if err != nil {
		return reliability.MarkTransient(fmt.Errorf("send dnc request: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		err := fmt.Errorf("dnc service status %d: %s", res.StatusCode, string(msg))
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return reliability.MarkTransient(err)
		}
		return err
	}
	return nil
}

// MemoryDNCRegistrar keeps the list in process; used in tests and when no
// compliance service is configured.
type MemoryDNCRegistrar struct {
	mu      sync.Mutex
	entries map[string]string
	adds    int
}

func NewMemoryDNCRegistrar() *MemoryDNCRegistrar {
	return &MemoryDNCRegistrar{entries: make(map[string]string)}
}

func (r *MemoryDNCRegistrar) Add(_ context.Context, phone, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[phone] = reason
	r.adds++
	return nil
}

func (r *MemoryDNCRegistrar) Contains(phone string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[phone]
	return ok
}

// Adds counts Add calls, duplicates included.
func (r *MemoryDNCRegistrar) Adds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.adds
}
