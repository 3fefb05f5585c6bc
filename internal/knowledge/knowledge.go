package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/observability"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/reliability"
)

// Entry is one FAQ answer owned by the knowledge collaborator.
type Entry struct {
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category"`
}

// Service returns ranked knowledge entries for a free-text query.
type Service interface {
	Query(ctx context.Context, text, orgID string) ([]Entry, error)
}

// HTTPService queries the knowledge base over HTTP.
type HTTPService struct {
	baseURL string
	client  *http.Client
	metrics *observability.Metrics
}

func NewHTTPService(baseURL string, metrics *observability.Metrics) *HTTPService {
	return &HTTPService{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		metrics: metrics,
	}
}

func (s *HTTPService) countError(code string) {
	if s.metrics != nil {
		s.metrics.ProviderErrors.WithLabelValues("knowledge", code).Inc()
	}
}

func (s *HTTPService) Query(ctx context.Context, text, orgID string) ([]Entry, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("organization_id", orgID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/knowledge/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	res, err := s.client.Do(req)
	if err != nil {
		s.countError("transport")
		return nil, reliability.MarkTransient(fmt.Errorf("query knowledge: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		s.countError(strconv.Itoa(res.StatusCode))
		err := fmt.Errorf("knowledge service status %d: %s", res.StatusCode, string(body))
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return nil, reliability.MarkTransient(err)
		}
		return nil, err
	}

	var payload struct {
		Entries []Entry `json:"entries"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	return payload.Entries, nil
}

// StaticService matches queries against a fixed entry set by keyword overlap;
// used in tests and when no knowledge service is configured.
type StaticService struct {
	entries []Entry
}

func NewStaticService(entries ...Entry) *StaticService {
	return &StaticService{entries: entries}
}

func (s *StaticService) Query(_ context.Context, text, _ string) ([]Entry, error) {
	words := strings.Fields(strings.ToLower(text))
	var matched []Entry
	for _, e := range s.entries {
		q := strings.ToLower(e.Question)
		for _, w := range words {
			if len(w) > 2 && strings.Contains(q, w) {
				matched = append(matched, e)
				break
			}
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Confidence > matched[j].Confidence
	})
	return matched, nil
}
