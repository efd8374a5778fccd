// Package render builds the result panel markup for the run-model trigger.
package render

import (
	"bytes"
	"html/template"
	"strings"

	"pipeline-console/internal/domain"
)

// Messages shown in the result panel.
const (
	MsgModelRunning     = "1/2 Processing speech..."
	MsgSingleRunning    = "Running model..."
	MsgPipelineRunning  = "2/2 Running full pipeline (response generation + TTS + DB save)..."
	MsgNoSubmission     = "No recently submitted audio or text."
	MsgMalformedModel   = "JSON parse failed"
	MsgMalformedBackend = "Backend returned a non-JSON response"
	MsgUnknownTTSError  = "Unknown"
	MsgUnknownStatus    = "unknown"
)

// Panel accumulates fragments the way the result area is filled during a run.
type Panel struct {
	parts []template.HTML
}

// Set replaces the panel content.
func (p *Panel) Set(fragment template.HTML) {
	p.parts = append(p.parts[:0], fragment)
}

// Append adds a fragment after the current content.
func (p *Panel) Append(fragment template.HTML) {
	p.parts = append(p.parts, fragment)
}

// DropLast removes the most recent fragment, used to clear progress lines.
func (p *Panel) DropLast() {
	if len(p.parts) > 0 {
		p.parts = p.parts[:len(p.parts)-1]
	}
}

// HTML returns the panel markup.
func (p *Panel) HTML() string {
	var b strings.Builder
	for _, part := range p.parts {
		b.WriteString(string(part))
	}
	return b.String()
}

// Progress renders an in-flight status line.
func Progress(msg string) template.HTML {
	return execute("progress", msg)
}

// Error renders an inline error line.
func Error(msg string) template.HTML {
	return execute("error", msg)
}

// NoSubmission renders the missing-input message.
func NoSubmission() template.HTML {
	return Error(MsgNoSubmission)
}

// Malformed renders a response body that could not be decoded.
func Malformed(label, body string) template.HTML {
	return execute("malformed", struct{ Label, Body string }{label, body})
}

// StepOne renders the model server's success card in the two-step flow.
func StepOne(details domain.ModelDetails) template.HTML {
	return execute("step1", details)
}

// PipelineSucceeded renders the backend pipeline's completion card.
// A missing TTS step counts as a TTS failure.
func PipelineSucceeded(res domain.PipelineSucceeded) template.HTML {
	data := struct {
		Final        domain.FinalData
		TTSSucceeded bool
		TTSError     string
		UserID       string
	}{
		Final:    res.Final,
		UserID:   string(res.UserID),
		TTSError: MsgUnknownTTSError,
	}
	if res.TTS != nil {
		data.TTSSucceeded = res.TTS.Success
		if res.TTS.TTSError != "" {
			data.TTSError = res.TTS.TTSError
		}
	}
	return execute("pipelineOK", data)
}

// PipelineFailed renders the error list and per-step indicators.
func PipelineFailed(res domain.PipelineFailed) template.HTML {
	return execute("pipelineFailed", res)
}

// ConnectionError renders a transport failure with the backend port hint.
func ConnectionError(msg, port string) template.HTML {
	return execute("connection", struct{ Message, Port string }{msg, port})
}

// Single renders the single-step variant card. Audio presentation is used
// when the details carry an audio URL or file name.
func Single(res domain.ModelSucceeded) template.HTML {
	status := res.Status
	if status == "" {
		status = MsgUnknownStatus
	}
	return execute("single", struct {
		IsAudio bool
		Details domain.ModelDetails
		Status  string
	}{
		IsAudio: res.Details.AudioURL != "" || res.Details.AudioName != "",
		Details: res.Details,
		Status:  status,
	})
}

func execute(name string, data any) template.HTML {
	var buf bytes.Buffer
	if err := cards.ExecuteTemplate(&buf, name, data); err != nil {
		// Templates are fixed at build time; reaching here is a programming error.
		panic("render " + name + ": " + err.Error())
	}
	return template.HTML(buf.String())
}
