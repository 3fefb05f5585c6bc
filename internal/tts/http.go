package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/observability"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/reliability"
)

// HTTPEngine renders speech through an external synthesis service.
type HTTPEngine struct {
	url     string
	client  *http.Client
	metrics *observability.Metrics
}

func NewHTTPEngine(url string, metrics *observability.Metrics) *HTTPEngine {
	return &HTTPEngine{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		metrics: metrics,
	}
}

func (e *HTTPEngine) countError(code string) {
	if e.metrics != nil {
		e.metrics.ProviderErrors.WithLabelValues("tts", code).Inc()
	}
}

type renderRequest struct {
	Text   string `json:"text"`
	Voice  string `json:"voice"`
	Speed  int    `json:"speed"`
	Pitch  int    `json:"pitch"`
	Volume int    `json:"volume"`
}

func (e *HTTPEngine) Render(ctx context.Context, text string, opts VoiceOptions) ([]byte, error) {
	payload, err := json.Marshal(renderRequest{
		Text:   text,
		Voice:  opts.Voice,
		Speed:  opts.Speed,
		Pitch:  opts.Pitch,
		Volume: opts.Volume,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= 1; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(reliability.ExponentialBackoff(attempt, 200*time.Millisecond, 2*time.Second)):
			}
		}

		data, err := e.renderOnce(ctx, payload)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !reliability.IsTransient(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (e *HTTPEngine) renderOnce(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := e.client.Do(req)
	if err != nil {
		e.countError("transport")
		return nil, reliability.MarkTransient(fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		e.countError(strconv.Itoa(res.StatusCode))
		err := fmt.Errorf("tts service status %d: %s", res.StatusCode, string(body))
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return nil, reliability.MarkTransient(err)
		}
		return nil, err
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, reliability.MarkTransient(fmt.Errorf("read audio: %w", err))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("tts service returned empty audio")
	}
	return data, nil
}
