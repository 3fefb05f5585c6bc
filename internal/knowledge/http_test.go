package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/observability"
	"github.com/DivyanshuTiwari-1/aicall-cold-sub000/internal/reliability"
)

var kbTestMetrics = observability.NewMetrics("kbclient_test")

func TestHTTPServiceQueryDecodesEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "how much does it cost" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("organization_id"); got != "org-1" {
			t.Errorf("organization_id = %q", got)
		}
		fmt.Fprint(w, `{"entries":[{"question":"How much does it cost?","answer":"$99 a month.","confidence":0.92,"category":"pricing"}]}`)
	}))
	defer srv.Close()

	s := NewHTTPService(srv.URL, nil)
	entries, err := s.Query(context.Background(), "how much does it cost", "org-1")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Answer != "$99 a month." {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestHTTPServiceCountsProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewHTTPService(srv.URL, kbTestMetrics)
	_, err := s.Query(context.Background(), "what is the price", "org-1")
	if err == nil {
		t.Fatalf("Query() should fail on status 503")
	}
	if !reliability.IsTransient(err) {
		t.Fatalf("status 503 should be marked transient: %v", err)
	}
	if got := testutil.ToFloat64(kbTestMetrics.ProviderErrors.WithLabelValues("knowledge", "503")); got != 1 {
		t.Fatalf("provider errors = %v, want 1", got)
	}
}
