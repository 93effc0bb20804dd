package apimodels

import (
	"math"
	"strconv"
	"time"
)

// Classification values returned by the detection service.
const (
	ClassificationAIGenerated = "AI_GENERATED"
	ClassificationHuman       = "HUMAN"
)

type AnalysisResult struct {
	// The service's verdict: AI_GENERATED or HUMAN
	Classification string `json:"classification"`

	// Fractional confidence in [0, 1]
	ConfidenceScore float64 `json:"confidenceScore"`

	// Language the sample was analyzed as
	Language string `json:"language"`

	// Human-readable reasoning from the service
	Explanation string `json:"explanation"`

	// Name of the file this run analyzed, fixed at dispatch. The session's
	// selected file may already be a different one.
	FileName string `json:"fileName"`
}

// ConfidencePercent converts the fractional score to a whole percentage.
func (r *AnalysisResult) ConfidencePercent() int {
	if r == nil {
		return 0
	}
	return int(math.Round(r.ConfidenceScore * 100))
}

// DisplayConfidence renders the score the way the UI shows it, e.g. "87%".
func (r *AnalysisResult) DisplayConfidence() string {
	return strconv.Itoa(r.ConfidencePercent()) + "%"
}

// IsAIGenerated reports a synthetic-voice verdict. False on a nil result.
func (r *AnalysisResult) IsAIGenerated() bool {
	return r != nil && r.Classification == ClassificationAIGenerated
}

// IsHuman reports a human-voice verdict. False on a nil result.
func (r *AnalysisResult) IsHuman() bool {
	return r != nil && r.Classification == ClassificationHuman
}

type SessionView struct {
	// Current workflow state: idle, ready, running, succeeded or failed
	State string `json:"state"`

	// Name of the staged audio file, when one is selected
	FileName string `json:"fileName,omitempty"`

	// Target language for the next run
	Language string `json:"language"`

	// Whether a credential is set; the credential itself is never echoed
	HasCredential bool `json:"hasCredential"`

	// Result held from the last successful run
	Result *AnalysisResult `json:"result,omitempty"`

	// Message from the last failed run
	Error string `json:"error,omitempty"`

	// Failure category of the last failed run
	ErrorKind string `json:"errorKind,omitempty"`
}

type ErrorResponse struct {
	// User-presentable message
	Error string `json:"error"`

	// Failure category: validation, io, transport or service
	Kind string `json:"kind,omitempty"`
}

type HistoryEntry struct {
	ID string `json:"id"`

	// Name of the analyzed file
	FileName string `json:"fileName"`

	Language string `json:"language"`

	Classification string `json:"classification"`

	ConfidenceScore float64 `json:"confidenceScore"`

	Explanation string `json:"explanation,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

type LanguagesResponse struct {
	// Supported target languages in the service's canonical order
	Languages []string `json:"languages"`
}
