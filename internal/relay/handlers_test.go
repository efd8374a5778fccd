package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeline-console/internal/apperr"
	"pipeline-console/internal/domain"
	"pipeline-console/internal/jobs"
	"pipeline-console/internal/logger"
	"pipeline-console/internal/page"
	"pipeline-console/internal/remote"
)

type fakeController struct {
	gotForm   remote.SubmitForm
	gotAudio  string
	submitErr error
	runResp   RunResponse
	runErr    error
	events    []jobs.Event
	since     int64
	lastSeq   int64
}

func (f *fakeController) SubmitForm(ctx context.Context, form remote.SubmitForm) (page.View, error) {
	f.gotForm = form
	if form.Audio != nil {
		data, _ := io.ReadAll(form.Audio)
		f.gotAudio = string(data)
	}
	if f.submitErr != nil {
		return page.View{}, f.submitErr
	}
	return page.View{Mode: domain.ModeText, Text: form.UserInput}, nil
}

func (f *fakeController) RunModel() (RunResponse, error) { return f.runResp, f.runErr }
func (f *fakeController) TriggerEnabled() bool           { return true }
func (f *fakeController) CurrentRun() domain.Run         { return domain.Run{Status: domain.RunStatusIdle} }
func (f *fakeController) RunEvents(since int64) []jobs.Event {
	f.since = since
	return f.events
}
func (f *fakeController) LastEventSeq() int64 { return f.lastSeq }
func (f *fakeController) GetDiagnostics() domain.DiagnosticReport {
	return domain.DiagnosticReport{HasFailures: true}
}

func multipartBody(t *testing.T, fields map[string]string, fileName, fileContent string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		part, err := w.CreateFormFile("audio_file", fileName)
		require.NoError(t, err)
		_, err = io.WriteString(part, fileContent)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestSubmitRelaysFormAndReturnsView(t *testing.T) {
	ctrl := &fakeController{}
	r := NewEngine(ctrl, logger.Discard(), nil)

	body, ct := multipartBody(t, map[string]string{"user_input": "hello"}, "clip.wav", "RIFF")
	req := httptest.NewRequest(http.MethodPost, "/submit", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "hello", ctrl.gotForm.UserInput)
	assert.Equal(t, "clip.wav", ctrl.gotForm.AudioFileName)
	assert.Equal(t, "RIFF", ctrl.gotAudio)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var resp struct {
		View page.View `json:"view"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.ModeText, resp.View.Mode)
	assert.Equal(t, "hello", resp.View.Text)
}

func TestSubmitUpstreamErrorMapsStatus(t *testing.T) {
	ctrl := &fakeController{submitErr: apperr.E(apperr.CodeUnavailable, "App.SubmitForm", "model server unreachable", nil)}
	r := NewEngine(ctrl, logger.Discard(), nil)

	body, ct := multipartBody(t, map[string]string{"user_input": "x"}, "", "")
	req := httptest.NewRequest(http.MethodPost, "/submit", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"code":"UNAVAILABLE","message":"model server unreachable"}`, rec.Body.String())
}

func TestRunReturnsPanelHTML(t *testing.T) {
	ctrl := &fakeController{runResp: RunResponse{
		Run:            domain.Run{ID: "r1", Status: domain.RunStatusDone},
		Outcome:        "completed",
		HTML:           "<div class=\"card\">&lt;script&gt;</div>",
		TriggerEnabled: true,
	}}
	r := NewEngine(ctrl, logger.Discard(), nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/run", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ctrl.runResp, resp)
}

func TestRunWhileBusyIsConflict(t *testing.T) {
	ctrl := &fakeController{runErr: apperr.E(apperr.CodeConflict, "App.RunModel", "run already in progress", jobs.ErrRunInProgress)}
	r := NewEngine(ctrl, logger.Discard(), nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/run", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "run already in progress")
}

func TestEventsParsesSince(t *testing.T) {
	ctrl := &fakeController{events: []jobs.Event{{Seq: 4, Type: jobs.EventTypeStatus}}}
	r := NewEngine(ctrl, logger.Discard(), nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?since=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, ctrl.since)
	assert.Contains(t, rec.Body.String(), `"seq":4`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?since=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsEmptyIsArray(t *testing.T) {
	r := NewEngine(&fakeController{}, logger.Discard(), nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.JSONEq(t, `{"events":[]}`, rec.Body.String())
}

func TestTriggerAndDiagnostics(t *testing.T) {
	r := NewEngine(&fakeController{lastSeq: 12}, logger.Discard(), nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trigger", nil))
	assert.Contains(t, rec.Body.String(), `"enabled":true`)
	assert.Contains(t, rec.Body.String(), `"lastSeq":12`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/diagnostics", nil))
	assert.Contains(t, rec.Body.String(), `"hasFailures":true`)
}

func TestAssetsServedForUnmatchedGet(t *testing.T) {
	assets := fstest.MapFS{"index.html": &fstest.MapFile{Data: []byte("<button id=\"runModelBtn\">Run</button>")}}
	r := NewEngine(&fakeController{}, logger.Discard(), assets)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "runModelBtn")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestLoggerTagsRunsAndQuietsPolling(t *testing.T) {
	var buf bytes.Buffer
	ctrl := &fakeController{runResp: RunResponse{
		Run:     domain.Run{ID: "run-42", Status: domain.RunStatusDone},
		Outcome: "completed",
	}}
	r := NewEngine(ctrl, logger.NewWithOutput(&buf, "info"), nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?since=0", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, buf.String(), "polling should log below info")

	req := httptest.NewRequest(http.MethodPost, "/api/run", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-Id"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "run-42", line["run_id"])
	assert.Equal(t, "completed", line["outcome"])
	assert.Equal(t, "/api/run", line["path"])
}

func TestRequestLoggerRecordsErrorCode(t *testing.T) {
	var buf bytes.Buffer
	ctrl := &fakeController{runErr: apperr.E(apperr.CodeConflict, "App.RunModel", "run already in progress", jobs.ErrRunInProgress)}
	r := NewEngine(ctrl, logger.NewWithOutput(&buf, "info"), nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/run", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "CONFLICT", line["error_code"])
	assert.Equal(t, "warning", line["level"])
}
