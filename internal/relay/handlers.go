// Package relay is the local HTTP surface the UI talks to. It relays form
// submissions to the model server and exposes the run trigger.
package relay

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pipeline-console/internal/apperr"
	"pipeline-console/internal/domain"
	"pipeline-console/internal/jobs"
	"pipeline-console/internal/page"
	"pipeline-console/internal/remote"
)

// maxUploadBytes bounds the multipart form accepted from the UI.
const maxUploadBytes = 64 << 20

// Controller is the application surface the relay exposes.
type Controller interface {
	SubmitForm(ctx context.Context, form remote.SubmitForm) (page.View, error)
	RunModel() (RunResponse, error)
	TriggerEnabled() bool
	CurrentRun() domain.Run
	RunEvents(sinceSeq int64) []jobs.Event
	LastEventSeq() int64
	GetDiagnostics() domain.DiagnosticReport
}

// RunResponse is returned to the UI after a trigger activation.
type RunResponse struct {
	Run            domain.Run `json:"run"`
	Outcome        string     `json:"outcome"`
	HTML           string     `json:"html"`
	TriggerEnabled bool       `json:"triggerEnabled"`
}

// APIError is the JSON error body.
type APIError struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

// Handler serves the relay routes.
type Handler struct {
	ctrl Controller
	log  *logrus.Logger
}

// NewEngine builds the gin engine. When assets is non-nil it is served for
// every unmatched GET, which is how the headless mode ships the UI.
func NewEngine(ctrl Controller, log *logrus.Logger, assets fs.FS) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log))

	h := &Handler{ctrl: ctrl, log: log}
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.POST("/submit", h.Submit)

	api := r.Group("/api")
	api.POST("/run", h.Run)
	api.GET("/trigger", h.Trigger)
	api.GET("/events", h.Events)
	api.GET("/diagnostics", h.Diagnostics)

	if assets != nil {
		files := http.FileServer(http.FS(assets))
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				c.JSON(http.StatusNotFound, APIError{Code: apperr.CodeNotFound, Message: "not found"})
				return
			}
			files.ServeHTTP(c.Writer, c.Request)
		})
	}
	return r
}

// Submit relays the UI form to the model server and answers with the
// structured view of the returned document.
func (h *Handler) Submit(c *gin.Context) {
	const op = "Relay.Submit"

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(c, apperr.E(apperr.CodeInvalidArgument, op, "invalid form", err))
		return
	}

	form := remote.SubmitForm{UserInput: c.PostForm("user_input")}
	if fh, err := c.FormFile("audio_file"); err == nil && fh.Filename != "" {
		f, err := fh.Open()
		if err != nil {
			writeError(c, apperr.E(apperr.CodeInvalidArgument, op, "cannot read audio file", err))
			return
		}
		defer f.Close()
		form.AudioFileName = fh.Filename
		form.AudioContentType = fh.Header.Get("Content-Type")
		form.Audio = f
	}

	view, err := h.ctrl.SubmitForm(c.Request.Context(), form)
	if err != nil {
		_ = c.Error(err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": view})
}

// Run activates the trigger and blocks until the run ends.
func (h *Handler) Run(c *gin.Context) {
	resp, err := h.ctrl.RunModel()
	if err != nil {
		_ = c.Error(err)
		writeError(c, err)
		return
	}
	c.Set(runIDKey, resp.Run.ID)
	c.Set(outcomeKey, resp.Outcome)
	c.JSON(http.StatusOK, resp)
}

// Trigger reports the trigger state, current run, and the newest event
// sequence, so a freshly loaded page polls only for events after it.
func (h *Handler) Trigger(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"enabled": h.ctrl.TriggerEnabled(),
		"run":     h.ctrl.CurrentRun(),
		"lastSeq": h.ctrl.LastEventSeq(),
	})
}

// Events returns run events newer than ?since.
func (h *Handler) Events(c *gin.Context) {
	var since int64
	if s := c.Query("since"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			writeError(c, apperr.E(apperr.CodeInvalidArgument, "Relay.Events", "since must be a non-negative integer", err))
			return
		}
		since = n
	}
	events := h.ctrl.RunEvents(since)
	if events == nil {
		events = []jobs.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// Diagnostics returns the cached diagnostics report.
func (h *Handler) Diagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.GetDiagnostics())
}

// writeError answers with the AppError's safe message; anything else is
// reported by status text only.
func writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	body := APIError{Code: apperr.CodeOf(err), Message: http.StatusText(status)}

	var ae *apperr.AppError
	if errors.As(err, &ae) && ae.Message != "" {
		body.Message = ae.Message
	}
	c.Set(errorCodeKey, body.Code)
	c.JSON(status, body)
}
