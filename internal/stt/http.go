package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/observability"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/reliability"
)

// HTTPTranscriber uploads recordings to an external speech-to-text service.
type HTTPTranscriber struct {
	url     string
	client  *http.Client
	metrics *observability.Metrics
}

func NewHTTPTranscriber(url string, metrics *observability.Metrics) *HTTPTranscriber {
	return &HTTPTranscriber{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
		metrics: metrics,
	}
}

func (t *HTTPTranscriber) countError(code string) {
	if t.metrics != nil {
		t.metrics.ProviderErrors.WithLabelValues("stt", code).Inc()
	}
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, recordingPath string) (string, float64, error) {
	audio, err := os.ReadFile(recordingPath)
	if err != nil {
		return "", 0, fmt.Errorf("read recording: %w", err)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("audio", filepath.Base(recordingPath))
	if err != nil {
		return "", 0, fmt.Errorf("build form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", 0, fmt.Errorf("build form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", 0, fmt.Errorf("build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, &body)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	res, err := t.client.Do(req)
	if err != nil {
		t.countError("transport")
		return "", 0, reliability.MarkTransient(fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		t.countError(strconv.Itoa(res.StatusCode))
		err := fmt.Errorf("stt service status %d: %s", res.StatusCode, string(msg))
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return "", 0, reliability.MarkTransient(err)
		}
		return "", 0, err
	}

	var payload struct {
		Success    bool    `json:"success"`
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", 0, fmt.Errorf("decode transcript: %w", err)
	}
	if !payload.Success {
		return "", 0, fmt.Errorf("stt service reported failure")
	}
	return payload.Text, payload.Confidence, nil
}
