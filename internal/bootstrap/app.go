package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"pipeline-console/internal/apperr"
	"pipeline-console/internal/config"
	"pipeline-console/internal/diagnostics"
	"pipeline-console/internal/domain"
	"pipeline-console/internal/invoker"
	"pipeline-console/internal/jobs"
	"pipeline-console/internal/logger"
	"pipeline-console/internal/page"
	"pipeline-console/internal/relay"
	"pipeline-console/internal/remote"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// runEventName is the Wails runtime event carrying jobs.Event payloads.
const runEventName = "run:event"

// shutdownTimeout bounds graceful shutdown of the headless server.
const shutdownTimeout = 5 * time.Second

// App wires configuration, the trigger guard, remote calls, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Runs        *jobs.Manager
	Pages       *page.Store
	Remote      remoteClient
	Diagnostics domain.DiagnosticReport
	Log         *logrus.Logger
	assets      fs.FS
	checker     *diagnostics.Checker
	newRemote   func(domain.Settings) remoteClient
	lookupEnv   func(string) (string, bool)

	mu         sync.Mutex
	cancel     context.CancelFunc
	events     *jobs.EventBus
	runtimeCtx context.Context
}

// remoteClient isolates the model server and backend behind an interface.
type remoteClient interface {
	Submit(ctx context.Context, form remote.SubmitForm) (string, error)
	invoker.ModelRunner
	invoker.PipelineRunner
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	log := logger.New()

	store := config.NewJSONStore(config.DefaultSettingsPath())
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings, err = config.ApplyEnv(settings, nil)
	if err != nil {
		return nil, fmt.Errorf("apply env: %w", err)
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(context.Background(), settings)
	if report.HasFailures {
		log.WithField("items", failedItemIDs(report)).Warn("startup diagnostics reported failures")
	}

	newRemote := func(s domain.Settings) remoteClient { return remote.NewClient(s) }

	return &App{
		Settings:    settings,
		Store:       store,
		Runs:        jobs.NewManager(),
		Pages:       page.NewStore(),
		Remote:      newRemote(settings),
		Diagnostics: report,
		Log:         log,
		assets:      assets,
		checker:     checker,
		newRemote:   newRemote,
		events:      jobs.NewEventBus(1000),
	}, nil
}

// Run starts the Wails desktop application and binds backend methods.
// Non-asset requests from the webview (the form post and the /api routes)
// are served by the relay engine.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{
		Assets:  a.assets,
		Handler: relay.NewEngine(a, a.log(), nil),
	}
	if a.assets == nil {
		assetOptions.Handler = relay.NewEngine(a, a.log(), a.frontendFS())
	}

	return wails.Run(&options.App{
		Title:       "Pipeline Console",
		Width:       1024,
		Height:      760,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Serve runs the same UI and relay headless on addr until ctx is done.
func (a *App) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           relay.NewEngine(a, a.log(), a.frontendFS()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log().WithField("addr", addr).Info("serving pipeline console")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = a.CancelRun()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings returns persisted settings with environment overrides applied.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.loadSettings()
	if err != nil {
		return domain.Settings{}, err
	}
	a.applySettings(settings)
	return settings, nil
}

// SaveSettings persists settings and returns them with environment
// overrides applied, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	effective, err := a.withEnv(normalized)
	if err != nil {
		return domain.Settings{}, err
	}
	a.refreshDiagnosticsFromSettings(effective)
	return effective, nil
}

// RefreshDiagnostics reloads settings and reruns reachability checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.loadSettings()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// SubmitForm relays the form to the model server and displays the answer.
func (a *App) SubmitForm(ctx context.Context, form remote.SubmitForm) (page.View, error) {
	const op = "App.SubmitForm"

	a.mu.Lock()
	client := a.Remote
	a.mu.Unlock()

	doc, err := client.Submit(ctx, form)
	if err != nil {
		a.log().WithError(err).Warn("submit relay failed")
		return page.View{}, apperr.FromCall(op, err)
	}

	view, err := a.Pages.Replace(doc)
	if err != nil {
		return page.View{}, apperr.E(apperr.CodeInternal, op, "cannot read model server response", err)
	}
	a.log().WithField("mode", view.Mode).Info("submission displayed")
	return view, nil
}

// RunModel activates the trigger and blocks until the run ends. The trigger
// is re-enabled on every path, including a panic inside the run.
func (a *App) RunModel() (relay.RunResponse, error) {
	const op = "App.RunModel"

	runID := uuid.NewString()
	release, err := a.Runs.Acquire(runID)
	if err != nil {
		if errors.Is(err, jobs.ErrRunInProgress) {
			return relay.RunResponse{}, apperr.E(apperr.CodeConflict, op, "run already in progress", err)
		}
		return relay.RunResponse{}, apperr.E(apperr.CodeInternal, op, "cannot start run", err)
	}
	final := domain.RunStatusFailed
	defer func() { release(final) }()

	a.mu.Lock()
	settings := a.Settings
	client := a.Remote
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.mu.Unlock()
	defer a.clearCancel(runID, cancel)

	log := a.log().WithField("run_id", runID)
	a.publishStatus(runID, domain.RunStatusDetecting, "Run started")

	inv := invoker.New(a.Pages, client, client, invoker.Options{
		Variant:     settings.Variant,
		BackendPort: invoker.BackendPort(settings.PipelineURL),
		Logger:      a.log(),
	})
	result := inv.Run(ctx, invoker.Request{
		OnStage: func(stage string) {
			status, ok := mapStageToStatus(stage)
			if !ok {
				return
			}
			if err := a.Runs.Transition(status); err == nil {
				a.publishStatus(runID, status, "Running "+stage+" stage")
			}
		},
		OnRender: func(html string) {
			a.publishEvent(jobs.Event{
				RunID:  runID,
				Type:   jobs.EventTypeRender,
				Status: a.Runs.Current().Status,
				HTML:   html,
			})
		},
	})

	final = finalStatus(ctx, result)
	fields := logrus.Fields{"outcome": result.Outcome, "calls": result.Calls}
	if result.Succeeded() {
		log.WithFields(fields).Info("run completed")
		a.publishEvent(jobs.Event{
			RunID:   runID,
			Type:    jobs.EventTypeResult,
			Status:  domain.RunStatusDone,
			Message: "Run completed",
			HTML:    result.HTML,
		})
	} else {
		log.WithFields(fields).WithError(result.Err).Warn("run ended without a result")
		a.publishEvent(jobs.Event{
			RunID:   runID,
			Type:    jobs.EventTypeError,
			Status:  final,
			Message: errorMessage(result),
			HTML:    result.HTML,
		})
	}

	release(final)
	current := a.Runs.Current()
	a.publishStatus(runID, current.Status, "Run finished")

	return relay.RunResponse{
		Run:            current,
		Outcome:        string(result.Outcome),
		HTML:           result.HTML,
		TriggerEnabled: a.Runs.TriggerEnabled(),
	}, nil
}

// CancelRun cancels the in-flight run, if any.
func (a *App) CancelRun() error {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()

	if cancel == nil {
		return jobs.ErrNoActiveRun
	}
	cancel()
	if err := a.Runs.Cancel(); err != nil && !errors.Is(err, jobs.ErrNoActiveRun) {
		return err
	}
	return nil
}

// TriggerEnabled reports whether the run-model trigger accepts a click.
func (a *App) TriggerEnabled() bool {
	return a.Runs.TriggerEnabled()
}

// CurrentRun returns current run metadata and status.
func (a *App) CurrentRun() domain.Run {
	return a.Runs.Current()
}

// CurrentSubmission returns the view of the displayed submission.
func (a *App) CurrentSubmission() page.View {
	return a.Pages.Current()
}

// RunEvents returns all events with sequence greater than sinceSeq.
func (a *App) RunEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// LastEventSeq returns the sequence of the newest published event.
func (a *App) LastEventSeq() int64 {
	return a.events.LastSeq()
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(runID string, status domain.RunStatus, message string) {
	a.publishEvent(jobs.Event{
		RunID:   runID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	event.TriggerEnabled = a.Runs.TriggerEnabled()
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, runEventName, published)
	}
}

// clearCancel drops the cancel handle once its run is over.
func (a *App) clearCancel(runID string, cancel context.CancelFunc) {
	cancel()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Runs.Current().ID == runID {
		a.cancel = nil
	}
}

// loadSettings reads the store and layers environment overrides on top.
func (a *App) loadSettings() (domain.Settings, error) {
	stored, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return a.withEnv(stored)
}

// withEnv applies environment overrides; they always win over stored values.
func (a *App) withEnv(stored domain.Settings) (domain.Settings, error) {
	settings, err := config.ApplyEnv(stored, a.lookupEnv)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("apply env: %w", err)
	}
	return settings, nil
}

// applySettings swaps in settings and a client built from them.
func (a *App) applySettings(settings domain.Settings) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.newRemote != nil {
		a.Remote = a.newRemote(settings)
	}
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.applySettings(settings)

	var report domain.DiagnosticReport
	if a.checker != nil {
		report = a.checker.Run(context.Background(), settings)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.checker != nil {
		a.Diagnostics = report
	}
	return a.Diagnostics
}

func (a *App) log() *logrus.Logger {
	if a.Log == nil {
		return logger.Discard()
	}
	return a.Log
}

// frontendFS returns the UI assets, falling back to ./frontend on disk.
func (a *App) frontendFS() fs.FS {
	if a.assets != nil {
		return a.assets
	}
	return os.DirFS("frontend")
}

// mapStageToStatus maps invoker stage names to run statuses.
func mapStageToStatus(stage string) (domain.RunStatus, bool) {
	switch stage {
	case invoker.StageDetecting:
		return domain.RunStatusDetecting, true
	case invoker.StageRunningModel:
		return domain.RunStatusRunningModel, true
	case invoker.StageRunningPipeline:
		return domain.RunStatusRunningPipeline, true
	default:
		return "", false
	}
}

func finalStatus(ctx context.Context, result invoker.Result) domain.RunStatus {
	switch {
	case result.Succeeded():
		return domain.RunStatusDone
	case ctx.Err() != nil && errors.Is(result.Err, context.Canceled):
		return domain.RunStatusCancelled
	default:
		return domain.RunStatusFailed
	}
}

func errorMessage(result invoker.Result) string {
	if result.Err != nil {
		return result.Err.Error()
	}
	return string(result.Outcome)
}

func failedItemIDs(report domain.DiagnosticReport) []string {
	ids := []string{}
	for _, item := range report.Items {
		if item.Status == domain.DiagnosticStatusFail {
			ids = append(ids, item.ID)
		}
	}
	return ids
}
