package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound reports that a campaign has no active script of the given type.
var ErrNotFound = errors.New("script not found")

// Provider resolves campaign script templates.
type Provider interface {
	ResolveScript(ctx context.Context, campaignID string, t Type) (Template, error)
}

// HTTPProvider fetches scripts from the campaign management API.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (p *HTTPProvider) ResolveScript(ctx context.Context, campaignID string, t Type) (Template, error) {
	q := url.Values{}
	q.Set("campaign_id", campaignID)
	q.Set("type", string(t))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/scripts?"+q.Encode(), nil)
	if err != nil {
		return Template{}, fmt.Errorf("create request: %w", err)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return Template{}, fmt.Errorf("fetch script: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return Template{}, ErrNotFound
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Template{}, fmt.Errorf("script service status %d: %s", res.StatusCode, string(body))
	}

	var payload struct {
		Scripts []Template `json:"scripts"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return Template{}, fmt.Errorf("decode scripts: %w", err)
	}
	for _, s := range payload.Scripts {
		if s.Type == t && s.Active {
			return s, nil
		}
	}
	return Template{}, ErrNotFound
}

// StaticProvider serves a fixed script set; used in tests and when no
// campaign API is configured.
type StaticProvider struct {
	templates map[Type]Template
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		templates: map[Type]Template{
			TypeGreeting: {
				Type:    TypeGreeting,
				Content: "Hello {contact_name}, this is calling from {company}. I hope I'm not catching you at a bad time.",
				Active:  true,
			},
			TypeMainPitch: {
				Type:    TypeMainPitch,
				Content: "We help teams like yours at {company} cut costs with our product. Please press 1 if you're interested, 2 if you're not interested, or 0 to speak with a human representative.",
				Active:  true,
			},
			TypeObjectionHandling: {
				Type:    TypeObjectionHandling,
				Content: "I understand your concern, {contact_name}. Many of our clients felt the same before seeing the results.",
				Active:  true,
			},
			TypeClosing: {
				Type:    TypeClosing,
				Content: "Thank you for your time, {contact_name}. Have a great day!",
				Active:  true,
			},
		},
	}
}

// Set replaces one template; handy for test fixtures.
func (p *StaticProvider) Set(t Template) {
	p.templates[t.Type] = t
}

func (p *StaticProvider) ResolveScript(_ context.Context, _ string, t Type) (Template, error) {
	tpl, ok := p.templates[t]
	if !ok || !tpl.Active {
		return Template{}, ErrNotFound
	}
	return tpl, nil
}
