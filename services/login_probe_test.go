package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yyup/kadmin/config"
	"github.com/yyup/kadmin/internal/probe"
	"github.com/yyup/kadmin/internal/report"
)

func newLoginProbe(t *testing.T, baseURL string, timeout time.Duration) *LoginProbe {
	t.Helper()

	cfg := config.Defaults().API
	cfg.BaseURL = baseURL
	cfg.Timeout = timeout
	return NewLoginProbe(cfg, nil)
}

func TestLoginProbeInvalidCredentials(t *testing.T) {
	var got loginPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	err := newLoginProbe(t, srv.URL, time.Second).Check(context.Background(), "admin", "wrong", report.New(&buf))

	if got.Username != "admin" || got.Password != "wrong" {
		t.Fatalf("unexpected payload %+v", got)
	}
	var opErr *probe.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected operation error, got %v", err)
	}
	if code := probe.ExitCode(err); code == probe.ExitOK {
		t.Fatalf("expected non-zero exit code")
	}

	out := buf.String()
	for _, want := range []string{"status: 401", "error: invalid credentials"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "operation failed"); n != 1 {
		t.Fatalf("expected the failure reported once, got %d:\n%s", n, out)
	}
}

func TestLoginProbeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"token":"abc","user":{"username":"admin"}}}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	if err := newLoginProbe(t, srv.URL, time.Second).Check(context.Background(), "admin", "admin123", report.New(&buf)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "status: 200") || !strings.Contains(buf.String(), "token returned") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestLoginProbeSuccessFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"account locked"}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	err := newLoginProbe(t, srv.URL, time.Second).Check(context.Background(), "admin", "x", report.New(&buf))
	if probe.ExitCode(err) != probe.ExitOperation {
		t.Fatalf("expected operation failure, got %v", err)
	}
	if !strings.Contains(buf.String(), "error: account locked") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestLoginProbeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	var buf bytes.Buffer
	err := newLoginProbe(t, srv.URL, 50*time.Millisecond).Check(context.Background(), "admin", "x", report.New(&buf))

	var te *probe.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	var ce *probe.ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected the timeout to surface as a connection error, got %T", err)
	}
	if probe.ExitCode(err) != probe.ExitTimeout {
		t.Fatalf("expected timeout exit code, got %d", probe.ExitCode(err))
	}
	if n := strings.Count(buf.String(), "\n"); n != 1 {
		t.Fatalf("expected one line, got %d:\n%s", n, buf.String())
	}
}

func TestLoginProbeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var buf bytes.Buffer
	err := newLoginProbe(t, url, time.Second).Check(context.Background(), "admin", "x", report.New(&buf))

	if probe.ExitCode(err) != probe.ExitConnection {
		t.Fatalf("expected connection error, got %v", err)
	}
	if !strings.Contains(buf.String(), "connection failed") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestErrorMessage(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "plain error string", status: 401, body: `{"error":"invalid credentials"}`, want: "invalid credentials"},
		{name: "vendor envelope", status: 403, body: `{"error":{"code":"AccessDenied","message":" bad key "}}`, want: "AccessDenied: bad key"},
		{name: "message field", status: 400, body: `{"success":false,"message":"missing field"}`, want: "missing field"},
		{name: "not json", status: 502, body: "upstream down", want: "upstream down"},
		{name: "empty body", status: 503, body: "", want: "Service Unavailable"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := errorMessage(tc.status, []byte(tc.body)); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
