package render

import "html/template"

// cards holds every fragment the result panel can show. html/template
// escapes each interpolated value, so strings from the servers never
// reach the panel as markup.
var cards = template.Must(template.New("cards").Parse(`
{{define "progress"}}<p class="progress">⏳ {{.}}</p>{{end}}

{{define "error"}}<p class="error">{{.}}</p>{{end}}

{{define "malformed"}}<p class="error">{{.Label}}: {{.Body}}</p>{{end}}

{{define "step1"}}<div class="card">
  <h4>✅ Step 1: speech processing complete</h4>
  <p><strong>Recognized text:</strong> {{.ReceivedText}}</p>
  {{- if .AudioURL}}
  <p><strong>Audio:</strong> {{.AudioURL}}</p>
  {{- end}}
</div>{{end}}

{{define "pipelineOK"}}<div class="card card-ok">
  <h4>✅ Full pipeline complete!</h4>
  <div class="section">
    <h5>📥 Input (speech-to-text result)</h5>
    <p><strong>Audio file:</strong> {{with .Final.InputWAV}}{{.}}{{else}}N/A{{end}}</p>
    <p><strong>Recognized text:</strong> {{.Final.ATOTText}}</p>
  </div>
  <div class="section">
    <h5>💬 AI response (text-to-text result)</h5>
    <p class="response">{{.Final.TTOTText}}</p>
  </div>
  <div class="section">
    <h5>🔊 Speech output (text-to-speech result)</h5>
    {{- if .TTSSucceeded}}
    <p>✅ Output audio generated: <strong>{{.Final.OutputWAV}}</strong></p>
    {{- else}}
    <p>⚠️ TTS failed: {{.TTSError}}</p>
    {{- end}}
  </div>
  <p><strong>User ID:</strong> {{.UserID}}</p>
</div>{{end}}

{{define "pipelineFailed"}}<div class="card card-failed">
  <h4>❌ Pipeline failed</h4>
  <p class="error"><strong>Errors:</strong></p>
  <ul class="error">
    {{- range .Errors}}
    <li>{{.}}</li>
    {{- end}}
  </ul>
  {{- range .Steps}}
  <p><strong>{{.Name}}:</strong> {{if .Success}}✅{{else}}❌{{end}}</p>
  {{- end}}
</div>{{end}}

{{define "connection"}}<div class="card card-failed">
  <h4>❌ Backend connection error</h4>
  <p class="error">{{.Message}}</p>
  <p class="hint">Check that the backend server (port {{.Port}}) is running.</p>
</div>{{end}}

{{define "single"}}<div class="card">
  <p><strong>Selected:</strong> {{if .IsAudio}}audio{{else}}text{{end}}</p>
  {{- if .IsAudio}}
  {{- if .Details.AudioURL}}
  <div class="section">
    <p><strong>Model output (audio):</strong></p>
    <audio controls src="{{.Details.AudioURL}}"></audio>
    <p class="small">{{.Details.AudioURL}}</p>
  </div>
  {{- else}}
  <p><strong>File:</strong> {{.Details.AudioName}} ({{.Details.AudioSizeBytes}} bytes)</p>
  {{- end}}
  {{- else}}
  <p><strong>Text:</strong> {{.Details.ReceivedText}}</p>
  {{- end}}
  <p><strong>Status:</strong> {{.Status}}</p>
  <p><strong>Note:</strong> {{.Details.Note}}</p>
</div>{{end}}
`))
