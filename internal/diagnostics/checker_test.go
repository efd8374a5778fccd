package diagnostics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"pipeline-console/internal/domain"
)

// itemByID finds one report item or fails the test.
func itemByID(t *testing.T, report domain.DiagnosticReport, id string) domain.DiagnosticItem {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			return item
		}
	}
	t.Fatalf("item %q not found in %+v", id, report.Items)
	return domain.DiagnosticItem{}
}

// TestCheckerRunAllPass validates happy-path diagnostics report.
func TestCheckerRunAllPass(t *testing.T) {
	var dialed string
	checker := NewCheckerForTests(
		func(ctx context.Context, target string) (int, error) { return http.StatusOK, nil },
		func(ctx context.Context, address string) error {
			dialed = address
			return nil
		},
	)

	report := checker.Run(context.Background(), domain.Settings{
		ModelServerURL: "http://127.0.0.1:8000",
		PipelineURL:    "http://127.0.0.1:5000/run-full-pipeline",
	})

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	if len(report.Items) != 4 {
		t.Fatalf("items = %d, want 4", len(report.Items))
	}
	if dialed != "127.0.0.1:5000" {
		t.Fatalf("dialed %q, want 127.0.0.1:5000", dialed)
	}
}

// TestCheckerRunUnreachable validates failure reporting and hints.
func TestCheckerRunUnreachable(t *testing.T) {
	checker := NewCheckerForTests(
		func(context.Context, string) (int, error) { return 0, errors.New("refused") },
		func(context.Context, string) error { return errors.New("refused") },
	)

	report := checker.Run(context.Background(), domain.Settings{
		ModelServerURL: "http://127.0.0.1:8000",
		PipelineURL:    "http://127.0.0.1:5000/run-full-pipeline",
	})

	if !report.HasFailures {
		t.Fatal("expected failures")
	}
	backend := itemByID(t, report, domain.DiagnosticPipeline)
	if backend.Status != domain.DiagnosticStatusFail || backend.Hint != "Check that the backend server (port 5000) is running." {
		t.Fatalf("backend item = %+v", backend)
	}
	if model := itemByID(t, report, domain.DiagnosticModelServer); model.Status != domain.DiagnosticStatusFail || model.Hint == "" {
		t.Fatalf("model item = %+v", model)
	}
}

// TestCheckerRunInvalidURLsSkipReachability checks no connection is attempted for bad settings.
func TestCheckerRunInvalidURLsSkipReachability(t *testing.T) {
	contacted := false
	checker := NewCheckerForTests(
		func(context.Context, string) (int, error) {
			contacted = true
			return http.StatusOK, nil
		},
		func(context.Context, string) error {
			contacted = true
			return nil
		},
	)

	report := checker.Run(context.Background(), domain.Settings{ModelServerURL: "", PipelineURL: "ftp://x"})

	if contacted {
		t.Fatal("invalid URLs should not be contacted")
	}
	if len(report.Items) != 2 || !report.HasFailures {
		t.Fatalf("report = %+v", report)
	}
	if item := itemByID(t, report, domain.DiagnosticModelServerURL); item.Message != "Model server URL is empty." {
		t.Fatalf("model url item = %+v", item)
	}
}

// TestNewCheckerChecksRealServers runs the production checks against loopback listeners.
func TestNewCheckerChecksRealServers(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	report := NewChecker().Run(context.Background(), domain.Settings{
		ModelServerURL: srv.URL,
		PipelineURL:    "http://" + net.JoinHostPort(host, port) + "/run-full-pipeline",
	})
	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	if item := itemByID(t, report, domain.DiagnosticModelServer); item.Message != "Model server answered with status 404" {
		t.Fatalf("model item = %+v", item)
	}
}
