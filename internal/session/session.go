package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jatinpathak/Truth-Spectrogram/apimodels"
	"github.com/jatinpathak/Truth-Spectrogram/internal/detection"
	"github.com/jatinpathak/Truth-Spectrogram/internal/intake"
)

// ErrAnalysisInFlight refuses operations that would disturb a running
// analysis. It is a refusal, not a failure: session state is untouched and
// the running analysis continues.
var ErrAnalysisInFlight = errors.New("analysis already in progress")

// genericFailureMessage is surfaced whenever the service did not supply
// usable display text of its own.
const genericFailureMessage = "Failed to analyze voice. Please try again."

// State is the workflow position of a session.
type State string

const (
	StateIdle      State = "idle"
	StateReady     State = "ready"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// FailureKind categorizes how a run, or its preconditions, failed.
type FailureKind string

const (
	// FailureValidation covers rejected files and missing run inputs.
	// Nothing was attempted.
	FailureValidation FailureKind = "validation"
	// FailureIO covers files whose bytes could not be read or encoded.
	// The run aborted before any network call.
	FailureIO FailureKind = "io"
	// FailureTransport covers requests that never completed.
	FailureTransport FailureKind = "transport"
	// FailureService covers non-2xx replies and success bodies that did
	// not carry a usable result.
	FailureService FailureKind = "service"
)

// Failure is a categorized failure with a single user-presentable message.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Err }

// Session drives one audio file at a time through validation, encoding and
// the remote detection call. At most one analysis runs at once; inputs are
// snapshotted at dispatch, so edits during a run affect only later runs.
// All methods are safe for concurrent use.
type Session struct {
	detector detection.Detector

	mu         sync.Mutex
	state      State
	file       *intake.SelectedFile
	language   detection.Language
	credential string
	result     *apimodels.AnalysisResult
	failure    *Failure
}

func New(detector detection.Detector) *Session {
	return &Session{
		detector: detector,
		state:    StateIdle,
		language: detection.LanguageEnglish,
	}
}

// SelectFile stages f for the next run, replacing any previous selection and
// clearing any held result. A rejected file leaves the session exactly as it
// was; selection is refused outright while a run is in flight.
func (s *Session) SelectFile(f intake.SelectedFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return ErrAnalysisInFlight
	}
	if err := intake.Validate(f); err != nil {
		return &Failure{Kind: FailureValidation, Message: err.Error(), Err: err}
	}

	s.file = &f
	s.result = nil
	s.failure = nil
	s.state = StateReady
	slog.Info("Audio file selected", "file", f.Name, "mediaType", f.MediaType)
	return nil
}

// SetLanguage sets the target language for subsequent runs. A run already in
// flight keeps the language it was dispatched with.
func (s *Session) SetLanguage(name string) error {
	lang, err := detection.ParseLanguage(name)
	if err != nil {
		return &Failure{Kind: FailureValidation, Message: err.Error(), Err: err}
	}

	s.mu.Lock()
	s.language = lang
	s.mu.Unlock()
	slog.Info("Target language set", "language", lang)
	return nil
}

// SetCredential stores the API key used for subsequent runs. It may be
// changed at any time, including while a run is in flight.
func (s *Session) SetCredential(apiKey string) {
	s.mu.Lock()
	s.credential = strings.TrimSpace(apiKey)
	s.mu.Unlock()
}

// Analyze runs the full workflow: encode the staged file, dispatch the
// detection request and settle into StateSucceeded or StateFailed. A second
// call while one is running returns ErrAnalysisInFlight and changes nothing.
// Missing preconditions (file, credential) return a validation Failure
// without attempting the run or moving the state machine.
func (s *Session) Analyze(ctx context.Context) (*apimodels.AnalysisResult, error) {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return nil, ErrAnalysisInFlight
	}
	if s.file == nil {
		s.mu.Unlock()
		return nil, &Failure{Kind: FailureValidation, Message: "no audio file selected"}
	}
	if s.credential == "" {
		s.mu.Unlock()
		return nil, &Failure{Kind: FailureValidation, Message: "API key is required"}
	}

	// Snapshot the inputs for this run and take the running slot.
	file := *s.file
	language := s.language
	credential := s.credential
	s.state = StateRunning
	s.result = nil
	s.failure = nil
	s.mu.Unlock()

	// A panic past this point would strand the machine in StateRunning,
	// refusing every later run. Settle first, then let it propagate.
	defer func() {
		if r := recover(); r != nil {
			s.fail(&Failure{Kind: FailureIO, Message: genericFailureMessage, Err: fmt.Errorf("analysis panicked: %v", r)})
			panic(r)
		}
	}()

	slog.Info("Starting voice analysis", "file", file.Name, "language", language)

	payload, err := intake.EncodePayload(file)
	if err != nil {
		return nil, s.fail(&Failure{Kind: FailureIO, Message: "could not read the audio file", Err: err})
	}
	if payload == "" {
		return nil, s.fail(&Failure{Kind: FailureIO, Message: "audio file is empty"})
	}

	req := detection.Request{
		Language:    language,
		AudioFormat: detection.AudioFormatMP3,
		AudioBase64: payload,
	}

	resp, err := s.detector.Detect(ctx, credential, req)
	if err != nil {
		return nil, s.fail(categorize(err))
	}

	result := &apimodels.AnalysisResult{
		Classification:  string(resp.Classification),
		ConfidenceScore: resp.ConfidenceScore,
		Language:        string(resp.Language),
		Explanation:     resp.Explanation,
		FileName:        file.Name,
	}

	s.mu.Lock()
	s.result = result
	s.state = StateSucceeded
	s.mu.Unlock()

	slog.Info("Voice analysis succeeded",
		"classification", result.Classification,
		"confidence", result.DisplayConfidence(),
	)
	return result, nil
}

// State returns the current workflow state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the last successful run's result, or nil.
func (s *Session) Result() *apimodels.AnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// ErrorMessage returns the last failed run's message, or "".
func (s *Session) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure == nil {
		return ""
	}
	return s.failure.Message
}

// IsAIGenerated reports whether the held result classifies the voice as
// synthetic. False whenever there is no result.
func (s *Session) IsAIGenerated() bool {
	return s.Result().IsAIGenerated()
}

// IsHuman reports whether the held result classifies the voice as human.
// False whenever there is no result.
func (s *Session) IsHuman() bool {
	return s.Result().IsHuman()
}

// Snapshot returns a single consistent view for the presentation layer.
func (s *Session) Snapshot() apimodels.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := apimodels.SessionView{
		State:         string(s.state),
		Language:      string(s.language),
		HasCredential: s.credential != "",
		Result:        s.result,
	}
	if s.file != nil {
		view.FileName = s.file.Name
	}
	if s.failure != nil {
		view.Error = s.failure.Message
		view.ErrorKind = string(s.failure.Kind)
	}
	return view
}

func (s *Session) fail(f *Failure) *Failure {
	s.mu.Lock()
	s.failure = f
	s.state = StateFailed
	s.mu.Unlock()
	slog.Error("Voice analysis failed", "kind", f.Kind, "message", f.Message, "error", f.Err)
	return f
}

// categorize maps detector errors onto the failure taxonomy. Only service
// detail that is already display text reaches the user verbatim; everything
// else carries the generic message.
func categorize(err error) *Failure {
	var statusErr *detection.StatusError
	if errors.As(err, &statusErr) {
		msg := statusErr.Detail.String()
		if msg == "" {
			msg = genericFailureMessage
		}
		return &Failure{Kind: FailureService, Message: msg, Err: err}
	}

	var invalid *detection.InvalidResponseError
	if errors.As(err, &invalid) {
		return &Failure{Kind: FailureService, Message: genericFailureMessage, Err: err}
	}

	return &Failure{Kind: FailureTransport, Message: genericFailureMessage, Err: err}
}
