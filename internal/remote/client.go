package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"pipeline-console/internal/domain"
)

// DefaultModelErrorMessage is shown when a failed run-model response has no error text.
const DefaultModelErrorMessage = "model execution error"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// Client talks to the model server and the backend pipeline.
type Client struct {
	modelBaseURL string
	pipelineURL  string
	http         *http.Client
}

// NewClient builds a client from settings. A zero timeout waits forever.
func NewClient(settings domain.Settings) *Client {
	return NewClientWithHTTP(settings, &http.Client{
		Timeout: time.Duration(settings.RequestTimeoutSeconds) * time.Second,
	})
}

// NewClientWithHTTP builds a client around an existing http.Client.
func NewClientWithHTTP(settings domain.Settings, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		modelBaseURL: strings.TrimRight(settings.ModelServerURL, "/"),
		pipelineURL:  settings.PipelineURL,
		http:         httpClient,
	}
}

// SubmitForm is the user's form submission relayed to the model server.
type SubmitForm struct {
	UserInput        string
	AudioFileName    string
	AudioContentType string
	Audio            io.Reader
}

// Submit posts the form to /submit and returns the rendered HTML document.
func (c *Client) Submit(ctx context.Context, form SubmitForm) (string, error) {
	body, contentType, err := encodeSubmitForm(form)
	if err != nil {
		return "", &CallError{Call: CallSubmit, Kind: KindTransport, Message: "cannot encode form", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelBaseURL+"/submit", body)
	if err != nil {
		return "", &CallError{Call: CallSubmit, Kind: KindTransport, Message: "cannot build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	status, raw, err := c.do(req, CallSubmit)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", &CallError{
			Call:       CallSubmit,
			Kind:       KindStatus,
			Message:    "submit rejected",
			StatusCode: status,
			Body:       string(raw),
		}
	}
	return string(raw), nil
}

// runModelResponse mirrors the run-model JSON body.
type runModelResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Result *struct {
		Status  string              `json:"status"`
		Details domain.ModelDetails `json:"details"`
	} `json:"result"`
}

// RunModel posts the submission to /run-model and decodes the outcome.
// A decodable failure is returned as domain.ModelFailed with a nil error.
func (c *Client) RunModel(ctx context.Context, sub domain.Submission) (domain.ModelResult, error) {
	body, contentType, err := encodeRunModelForm(sub)
	if err != nil {
		return nil, &CallError{Call: CallRunModel, Kind: KindTransport, Message: "cannot encode form", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelBaseURL+"/run-model", body)
	if err != nil {
		return nil, &CallError{Call: CallRunModel, Kind: KindTransport, Message: "cannot build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	status, raw, err := c.do(req, CallRunModel)
	if err != nil {
		return nil, err
	}
	return decodeRunModel(status, raw)
}

func decodeRunModel(status int, raw []byte) (domain.ModelResult, error) {
	var resp runModelResponse
	if err := decodeObject(raw, &resp); err != nil {
		return nil, &CallError{
			Call:       CallRunModel,
			Kind:       KindMalformed,
			Message:    "response is not JSON",
			StatusCode: status,
			Body:       string(raw),
			Err:        err,
		}
	}

	if status < 200 || status > 299 || !resp.OK {
		msg := resp.Error
		if msg == "" {
			msg = DefaultModelErrorMessage
		}
		return domain.ModelFailed{Message: msg}, nil
	}

	out := domain.ModelSucceeded{}
	if resp.Result != nil {
		out.Status = resp.Result.Status
		out.Details = resp.Result.Details
	}
	return out, nil
}

// stepPayload mirrors one stepN_* object of the pipeline response.
type stepPayload struct {
	Success  bool   `json:"success"`
	TTSError string `json:"tts_error"`
}

// pipelineResponse mirrors the run-full-pipeline JSON body.
type pipelineResponse struct {
	Success   bool              `json:"success"`
	Errors    []string          `json:"errors"`
	FinalData *domain.FinalData `json:"final_data"`
	StepATOT  *stepPayload      `json:"step1_atot"`
	StepTTOT  *stepPayload      `json:"step2_ttot"`
	StepTTS   *stepPayload      `json:"step3_tts"`
	UserID    domain.FlexString `json:"user_id"`
}

// RunFullPipeline posts an empty JSON-typed request to the backend pipeline.
// The request carries nothing from the model call; the backend picks up
// whatever input it considers current.
func (c *Client) RunFullPipeline(ctx context.Context) (domain.PipelineResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pipelineURL, http.NoBody)
	if err != nil {
		return nil, &CallError{Call: CallPipeline, Kind: KindTransport, Message: "cannot build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	status, raw, err := c.do(req, CallPipeline)
	if err != nil {
		return nil, err
	}
	return decodePipeline(status, raw)
}

// decodePipeline ignores the HTTP status; the body's success flag decides.
func decodePipeline(status int, raw []byte) (domain.PipelineResult, error) {
	var resp pipelineResponse
	if err := decodeObject(raw, &resp); err != nil {
		return nil, &CallError{
			Call:       CallPipeline,
			Kind:       KindMalformed,
			Message:    "response is not JSON",
			StatusCode: status,
			Body:       string(raw),
			Err:        err,
		}
	}

	if resp.Success {
		out := domain.PipelineSucceeded{UserID: resp.UserID}
		if resp.FinalData != nil {
			out.Final = *resp.FinalData
		}
		if resp.StepTTS != nil {
			step := resp.StepTTS.toStep(domain.StepTTS)
			out.TTS = &step
		}
		return out, nil
	}

	out := domain.PipelineFailed{Errors: resp.Errors}
	for _, s := range []struct {
		name    domain.StepName
		payload *stepPayload
	}{
		{domain.StepATOT, resp.StepATOT},
		{domain.StepTTOT, resp.StepTTOT},
		{domain.StepTTS, resp.StepTTS},
	} {
		if s.payload != nil {
			out.Steps = append(out.Steps, s.payload.toStep(s.name))
		}
	}
	return out, nil
}

func (p *stepPayload) toStep(name domain.StepName) domain.StepResult {
	return domain.StepResult{Name: name, Success: p.Success, TTSError: p.TTSError}
}

// do sends req and reads the whole body.
func (c *Client) do(req *http.Request, call Call) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &CallError{Call: call, Kind: KindTransport, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, &CallError{
			Call:       call,
			Kind:       KindTransport,
			Message:    "cannot read response body",
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}
	return resp.StatusCode, raw, nil
}

// decodeObject accepts only a JSON object body.
func decodeObject(raw []byte, dst any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("expected JSON object")
	}
	return json.Unmarshal(trimmed, dst)
}

func encodeSubmitForm(form SubmitForm) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if form.UserInput != "" {
		if err := w.WriteField("user_input", form.UserInput); err != nil {
			return nil, "", err
		}
	}
	if form.Audio != nil && form.AudioFileName != "" {
		part, err := w.CreatePart(audioPartHeader(form.AudioFileName, form.AudioContentType))
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, form.Audio); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// encodeRunModelForm sends user_input only for text submissions.
func encodeRunModelForm(sub domain.Submission) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("mode", string(sub.Mode)); err != nil {
		return nil, "", err
	}
	if sub.Mode == domain.ModeText {
		if err := w.WriteField("user_input", sub.Text); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
