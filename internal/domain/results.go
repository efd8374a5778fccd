package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ModelDetails is the details block returned by the model server.
type ModelDetails struct {
	ReceivedText   string `json:"received_text,omitempty"`
	AudioURL       string `json:"audio_url,omitempty"`
	AudioName      string `json:"audio_name,omitempty"`
	AudioSizeBytes int64  `json:"audio_size_bytes,omitempty"`
	Note           string `json:"note,omitempty"`
}

// ModelResult is the decoded outcome of a run-model call.
// It is either ModelSucceeded or ModelFailed.
type ModelResult interface {
	isModelResult()
}

// ModelSucceeded is an ok:true response.
type ModelSucceeded struct {
	Status  string
	Details ModelDetails
}

// ModelFailed is an ok:false or non-2xx response.
type ModelFailed struct {
	Message string
}

func (ModelSucceeded) isModelResult() {}
func (ModelFailed) isModelResult()    {}

// StepName identifies one of the three backend pipeline stages.
type StepName string

const (
	StepATOT StepName = "ATOT"
	StepTTOT StepName = "TTOT"
	StepTTS  StepName = "TTS"
)

// StepResult reports one pipeline stage.
type StepResult struct {
	Name     StepName
	Success  bool
	TTSError string
}

// FinalData carries the artifacts of a completed pipeline.
type FinalData struct {
	InputWAV  string `json:"input_wav,omitempty"`
	ATOTText  string `json:"atot_text,omitempty"`
	TTOTText  string `json:"ttot_text,omitempty"`
	OutputWAV string `json:"output_wav,omitempty"`
}

// PipelineResult is the decoded outcome of a run-full-pipeline call.
// It is either PipelineSucceeded or PipelineFailed.
type PipelineResult interface {
	isPipelineResult()
}

// PipelineSucceeded is a success:true response.
type PipelineSucceeded struct {
	Final  FinalData
	TTS    *StepResult
	UserID FlexString
}

// PipelineFailed is a success:false response.
type PipelineFailed struct {
	Errors []string
	// Steps holds only the stages present in the response, in pipeline order.
	Steps []StepResult
}

func (PipelineSucceeded) isPipelineResult() {}
func (PipelineFailed) isPipelineResult()    {}

// FlexString decodes a JSON string, number, or null into text.
type FlexString string

// UnmarshalJSON accepts strings and bare scalars.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		return fmt.Errorf("flex string: unsupported JSON value %s", data)
	}
	*s = FlexString(data)
	return nil
}
