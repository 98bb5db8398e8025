package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []string
		wantErr error
	}{
		{name: "array", body: `["a.com","b.com"]`, want: []string{"a.com", "b.com"}},
		{name: "object", body: `{"domains":["c.com"],"total":1}`, want: []string{"c.com"}},
		{name: "empty array", body: `[]`, want: []string{}},
		{name: "missing key", body: `{"foo":[1,2,3]}`, wantErr: ErrUnexpectedShape},
		{name: "domains not a list", body: `{"domains":"a.com"}`, wantErr: ErrUnexpectedShape},
		{name: "non string element", body: `["a.com",7]`, wantErr: ErrUnexpectedShape},
		{name: "scalar", body: `"a.com"`, wantErr: ErrUnexpectedShape},
		{name: "null", body: `null`, wantErr: ErrUnexpectedShape},
		{name: "html", body: `<html>blocked</html>`, wantErr: ErrInvalidJSON},
		{name: "trailing data", body: `["a.com"] ["b.com"]`, wantErr: ErrInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.body), "domains")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Decode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientFetchSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("User-Agent = %q", ua)
		}
		if tok := r.Header.Get("X-Token"); tok != "static" {
			t.Errorf("X-Token = %q", tok)
		}
		_, _ = w.Write([]byte(`{"domains":["a.com","b.com"]}`))
	}))
	defer srv.Close()

	client := NewClient(Options{
		URL:       srv.URL,
		UserAgent: "test-agent",
		Headers:   map[string]string{"X-Token": "static"},
	}, zaptest.NewLogger(t))

	got, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if want := []string{"a.com", "b.com"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Fetch() = %v, want %v", got, want)
	}
}

func TestClientFetchFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `["a.com"]`, wantErr: ErrUnexpectedStatus},
		{name: "created is not ok", status: http.StatusCreated, body: `["a.com"]`, wantErr: ErrUnexpectedStatus},
		{name: "bad json", status: http.StatusOK, body: strings.Repeat("x", 500), wantErr: ErrInvalidJSON},
		{name: "bad shape", status: http.StatusOK, body: `{"foo":[1,2,3]}`, wantErr: ErrUnexpectedShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(Options{URL: srv.URL}, zaptest.NewLogger(t))
			_, err := client.Fetch(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Fetch() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClientFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(Options{URL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	if _, err := client.Fetch(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestClientFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(Options{URL: url, Timeout: time.Second}, nil)
	if _, err := client.Fetch(context.Background()); err == nil {
		t.Fatal("expected connection error")
	}
}
