package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"domainwatch/internal/metrics"
	"domainwatch/internal/models"
)

var baseTime = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type fakeStatus struct {
	known   []string
	records []models.PollRecord
}

func (f *fakeStatus) Known() []string { return f.known }
func (f *fakeStatus) KnownCount() int { return len(f.known) }
func (f *fakeStatus) Interval() time.Duration {
	return time.Minute
}

func (f *fakeStatus) Latest() (models.PollRecord, bool) {
	if len(f.records) == 0 {
		return models.PollRecord{}, false
	}
	return f.records[len(f.records)-1], true
}

func (f *fakeStatus) Records(n int) []models.PollRecord {
	if n <= 0 || n >= len(f.records) {
		return f.records
	}
	return f.records[len(f.records)-n:]
}

func (f *fakeStatus) RecordsSince(cutoff time.Time) []models.PollRecord {
	var out []models.PollRecord
	for _, rec := range f.records {
		if !rec.CheckedAt.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out
}

type fakeDetections []models.Detection

func (f fakeDetections) History(n int) []models.Detection {
	if n <= 0 || n >= len(f) {
		return f
	}
	return f[len(f)-n:]
}

func newTestServer(t *testing.T, status *fakeStatus, detections DetectionSource) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.NewDomains.Add(3)

	srv := New(Options{
		Status:     status,
		Detections: detections,
		Hub:        NewHub(zaptest.NewLogger(t)),
		Gatherer:   reg,
		Logger:     zaptest.NewLogger(t),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, dest any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func sampleStatus() *fakeStatus {
	return &fakeStatus{
		known: []string{"a.com", "b.com"},
		records: []models.PollRecord{
			{CheckedAt: baseTime, OK: true, Fetched: 2, New: []string{"a.com", "b.com"}},
			{CheckedAt: baseTime.Add(time.Minute), OK: false, Error: "unexpected status: 500"},
			{CheckedAt: baseTime.Add(2 * time.Minute), OK: true, Fetched: 2},
		},
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t, sampleStatus(), nil)

	var resp StatusResponse
	getJSON(t, ts.URL+"/api/status", &resp)

	if resp.KnownDomains != 2 || resp.IntervalSeconds != 60 {
		t.Fatalf("status = %+v", resp)
	}
	if resp.Latest == nil || !resp.Latest.CheckedAt.Equal(baseTime.Add(2*time.Minute)) {
		t.Fatalf("latest = %+v", resp.Latest)
	}
}

func TestDomainsEndpoint(t *testing.T) {
	ts := newTestServer(t, sampleStatus(), nil)

	var domains []string
	getJSON(t, ts.URL+"/api/domains", &domains)
	if !reflect.DeepEqual(domains, []string{"a.com", "b.com"}) {
		t.Fatalf("domains = %v", domains)
	}
}

func TestPollsEndpointLimitAndSince(t *testing.T) {
	ts := newTestServer(t, sampleStatus(), nil)

	var limited []models.PollRecord
	getJSON(t, ts.URL+"/api/polls?limit=1", &limited)
	if len(limited) != 1 || !limited[0].OK {
		t.Fatalf("limited = %+v", limited)
	}

	var since []models.PollRecord
	getJSON(t, ts.URL+"/api/polls?since="+baseTime.Add(time.Minute).Format(time.RFC3339), &since)
	if len(since) != 2 {
		t.Fatalf("since = %+v", since)
	}

	var future []models.PollRecord
	getJSON(t, ts.URL+"/api/polls?since="+baseTime.Add(time.Hour).Format(time.RFC3339), &future)
	if len(future) != 0 {
		t.Fatalf("future = %+v, want empty", future)
	}
}

func TestUptimeEndpoint(t *testing.T) {
	ts := newTestServer(t, sampleStatus(), nil)

	var summary metrics.PollSummary
	getJSON(t, ts.URL+"/api/uptime", &summary)
	if summary.TotalPolls != 3 || summary.Failed != 1 || summary.NewDomains != 2 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestDetectionsEndpoint(t *testing.T) {
	detections := fakeDetections{
		{DetectedAt: baseTime, Domains: []string{"a.com"}},
		{DetectedAt: baseTime.Add(time.Hour), Domains: []string{"b.com"}},
	}
	ts := newTestServer(t, sampleStatus(), detections)

	var got []models.Detection
	getJSON(t, ts.URL+"/api/detections?limit=1", &got)
	if len(got) != 1 || got[0].Domains[0] != "b.com" {
		t.Fatalf("detections = %+v", got)
	}

	empty := newTestServer(t, sampleStatus(), nil)
	var none []models.Detection
	getJSON(t, empty.URL+"/api/detections", &none)
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty list, got %+v", none)
	}
}

func TestMetricsAndHealth(t *testing.T) {
	ts := newTestServer(t, sampleStatus(), nil)

	var health map[string]string
	getJSON(t, ts.URL+"/healthz", &health)
	if health["status"] != "ok" {
		t.Fatalf("health = %v", health)
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(body), "domainwatch_new_domains_total 3") {
		t.Fatalf("metrics output missing counter:\n%s", body)
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{query: "", want: 200},
		{query: "limit=5", want: 5},
		{query: "limit=0", want: 200},
		{query: "limit=abc", want: 200},
		{query: "limit=5000", want: 200},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/polls?"+tt.query, nil)
		if got := parseLimit(req, 200); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
