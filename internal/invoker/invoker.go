package invoker

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"pipeline-console/internal/domain"
	"pipeline-console/internal/remote"
	"pipeline-console/internal/render"
)

// Stage names reported through Request.OnStage.
const (
	StageDetecting       = "detecting"
	StageRunningModel    = "running_model"
	StageRunningPipeline = "running_pipeline"
)

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomeCompleted         Outcome = "completed"
	OutcomeNoSubmission      Outcome = "no_submission"
	OutcomeModelMalformed    Outcome = "model_malformed"
	OutcomeModelFailed       Outcome = "model_failed"
	OutcomeModelTransport    Outcome = "model_transport"
	OutcomePipelineMalformed Outcome = "pipeline_malformed"
	OutcomePipelineFailed    Outcome = "pipeline_failed"
	OutcomePipelineTransport Outcome = "pipeline_transport"
)

// SubmissionSource reports the submission currently on display.
type SubmissionSource interface {
	Submission() (domain.Submission, error)
}

// ModelRunner performs the run-model call.
type ModelRunner interface {
	RunModel(ctx context.Context, sub domain.Submission) (domain.ModelResult, error)
}

// PipelineRunner performs the run-full-pipeline call.
type PipelineRunner interface {
	RunFullPipeline(ctx context.Context) (domain.PipelineResult, error)
}

// Request carries the callbacks for one trigger activation. OnRender
// receives the full panel markup after every change.
type Request struct {
	OnStage  func(stage string)
	OnRender func(html string)
}

// Result is the final state of one activation. Err is set for every
// outcome other than OutcomeCompleted and is for logging only; the user
// sees HTML.
type Result struct {
	Outcome    Outcome
	HTML       string
	Submission *domain.Submission
	Model      domain.ModelResult
	Pipeline   domain.PipelineResult
	Calls      int
	Err        error
}

// Succeeded reports whether the run completed without a handled failure.
func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeCompleted
}

// Options configures an Invoker.
type Options struct {
	Variant     domain.Variant
	BackendPort string // named in the connection-error hint
	Logger      *logrus.Logger
}

// Invoker runs the model call and, in the full variant, the backend
// pipeline call, rendering each outcome into the result panel.
type Invoker struct {
	source   SubmissionSource
	model    ModelRunner
	pipeline PipelineRunner
	variant  domain.Variant
	port     string
	log      *logrus.Logger
}

// New constructs an invoker. A nil logger discards output.
func New(source SubmissionSource, model ModelRunner, pipeline PipelineRunner, opts Options) *Invoker {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	variant := opts.Variant
	if variant == "" {
		variant = domain.VariantFull
	}
	port := opts.BackendPort
	if port == "" {
		port = "5000"
	}
	return &Invoker{
		source:   source,
		model:    model,
		pipeline: pipeline,
		variant:  variant,
		port:     port,
		log:      log,
	}
}

// Run executes one activation. No call is retried; every failure is
// rendered and ends the run.
func (inv *Invoker) Run(ctx context.Context, req Request) Result {
	var panel render.Panel
	res := Result{}
	show := func() { emitRender(req.OnRender, panel.HTML()) }
	finish := func(outcome Outcome, err error) Result {
		res.Outcome = outcome
		res.Err = err
		res.HTML = panel.HTML()
		show()
		return res
	}

	emitStage(req.OnStage, StageDetecting)
	sub, err := inv.source.Submission()
	if err != nil {
		panel.Set(render.NoSubmission())
		return finish(OutcomeNoSubmission, err)
	}
	res.Submission = &sub

	emitStage(req.OnStage, StageRunningModel)
	if inv.variant == domain.VariantSingle {
		panel.Set(render.Progress(render.MsgSingleRunning))
	} else {
		panel.Set(render.Progress(render.MsgModelRunning))
	}
	show()

	inv.log.WithField("mode", sub.Mode).Info("run-model call")
	res.Calls++
	model, err := inv.model.RunModel(ctx, sub)
	if err != nil {
		var callErr *remote.CallError
		if errors.As(err, &callErr) && callErr.Kind == remote.KindMalformed {
			panel.Set(render.Malformed(render.MsgMalformedModel, callErr.Body))
			return finish(OutcomeModelMalformed, err)
		}
		panel.Set(render.Error("Error: " + causeMessage(err)))
		return finish(OutcomeModelTransport, err)
	}
	res.Model = model

	var ok domain.ModelSucceeded
	switch m := model.(type) {
	case domain.ModelFailed:
		panel.Set(render.Error(m.Message))
		return finish(OutcomeModelFailed, fmt.Errorf("run-model: %s", m.Message))
	case domain.ModelSucceeded:
		ok = m
	default:
		panel.Set(render.Error("Error: unexpected run-model result"))
		return finish(OutcomeModelFailed, fmt.Errorf("run-model: unexpected result %T", model))
	}

	if inv.variant == domain.VariantSingle {
		panel.Set(render.Single(ok))
		return finish(OutcomeCompleted, nil)
	}

	panel.Set(render.StepOne(ok.Details))
	emitStage(req.OnStage, StageRunningPipeline)
	panel.Append(render.Progress(render.MsgPipelineRunning))
	show()

	inv.log.Info("run-full-pipeline call")
	res.Calls++
	pipelineRes, err := inv.pipeline.RunFullPipeline(ctx)
	panel.DropLast()
	if err != nil {
		var callErr *remote.CallError
		if errors.As(err, &callErr) && callErr.Kind == remote.KindMalformed {
			panel.Append(render.Malformed(render.MsgMalformedBackend, callErr.Body))
			return finish(OutcomePipelineMalformed, err)
		}
		panel.Append(render.ConnectionError(causeMessage(err), inv.port))
		return finish(OutcomePipelineTransport, err)
	}
	res.Pipeline = pipelineRes

	switch p := pipelineRes.(type) {
	case domain.PipelineSucceeded:
		panel.Append(render.PipelineSucceeded(p))
		return finish(OutcomeCompleted, nil)
	case domain.PipelineFailed:
		panel.Append(render.PipelineFailed(p))
		return finish(OutcomePipelineFailed, fmt.Errorf("run-full-pipeline: %d error(s)", len(p.Errors)))
	default:
		panel.Append(render.Error("Error: unexpected pipeline result"))
		return finish(OutcomePipelineFailed, fmt.Errorf("run-full-pipeline: unexpected result %T", pipelineRes))
	}
}

// BackendPort extracts the port named in connection-error hints.
func BackendPort(pipelineURL string) string {
	u, err := url.Parse(pipelineURL)
	if err != nil || u.Host == "" {
		return "5000"
	}
	if port := u.Port(); port != "" {
		return port
	}
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}

// causeMessage prefers the transport's own message over the call wrapper.
func causeMessage(err error) string {
	var callErr *remote.CallError
	if errors.As(err, &callErr) && callErr.Err != nil {
		return callErr.Err.Error()
	}
	return err.Error()
}

// emitStage forwards stage updates when callback is configured.
func emitStage(cb func(stage string), stage string) {
	if cb != nil {
		cb(stage)
	}
}

// emitRender forwards panel updates when callback is configured.
func emitRender(cb func(html string), html string) {
	if cb != nil {
		cb(html)
	}
}
