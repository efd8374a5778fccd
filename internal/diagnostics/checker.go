package diagnostics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pipeline-console/internal/domain"
	"pipeline-console/internal/invoker"
)

const probeTimeout = 2 * time.Second

// Checker validates configured endpoints and probes their reachability.
type Checker struct {
	get  func(ctx context.Context, url string) (int, error)
	dial func(ctx context.Context, address string) error
}

// NewChecker builds a checker using real network dependencies.
func NewChecker() *Checker {
	client := &http.Client{Timeout: probeTimeout}
	return &Checker{
		get: func(ctx context.Context, target string) (int, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return 0, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return 0, err
			}
			_ = resp.Body.Close()
			return resp.StatusCode, nil
		},
		dial: func(ctx context.Context, address string) error {
			d := net.Dialer{Timeout: probeTimeout}
			conn, err := d.DialContext(ctx, "tcp", address)
			if err != nil {
				return err
			}
			return conn.Close()
		},
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(ctx context.Context, settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{}

	modelURL, modelItem := checkURL(domain.DiagnosticModelServerURL, "Model server URL", settings.ModelServerURL)
	items = append(items, modelItem)
	if modelURL != nil {
		items = append(items, c.checkModelServer(ctx, modelURL))
	}

	pipelineURL, pipelineItem := checkURL(domain.DiagnosticPipelineURL, "Pipeline URL", settings.PipelineURL)
	items = append(items, pipelineItem)
	if pipelineURL != nil {
		items = append(items, c.checkPipelineBackend(ctx, pipelineURL))
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkURL validates an absolute http(s) URL setting.
func checkURL(id, name, raw string) (*url.URL, domain.DiagnosticItem) {
	item := domain.DiagnosticItem{ID: id, Name: name}

	if strings.TrimSpace(raw) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = name + " is empty."
		item.Hint = "Set it in settings or through the environment, or reset it to the default."
		return nil, item
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Not an absolute http(s) URL: %s", raw)
		item.Hint = "Use a value like http://127.0.0.1:8000."
		return nil, item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Configured: %s", raw)
	return u, item
}

// checkModelServer treats any HTTP answer as reachable.
func (c *Checker) checkModelServer(ctx context.Context, u *url.URL) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticModelServer,
		Name: "Model server",
	}

	status, err := c.get(ctx, u.String())
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Model server is not reachable at %s", u.Host)
		item.Hint = "Start the speech model server before submitting audio or text."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Model server answered with status %d", status)
	return item
}

// checkPipelineBackend verifies the backend port accepts connections.
func (c *Checker) checkPipelineBackend(ctx context.Context, u *url.URL) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticPipeline,
		Name: "Pipeline backend",
	}

	port := invoker.BackendPort(u.String())
	address := net.JoinHostPort(u.Hostname(), port)
	if err := c.dial(ctx, address); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Nothing is listening on %s", address)
		item.Hint = fmt.Sprintf("Check that the backend server (port %s) is running.", port)
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Backend is listening on %s", address)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	get func(ctx context.Context, url string) (int, error),
	dial func(ctx context.Context, address string) error,
) *Checker {
	return &Checker{get: get, dial: dial}
}
