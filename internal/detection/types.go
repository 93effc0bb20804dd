package detection

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Language is a spoken language the voice detection service can analyze.
type Language string

const (
	LanguageTamil     Language = "Tamil"
	LanguageEnglish   Language = "English"
	LanguageHindi     Language = "Hindi"
	LanguageMalayalam Language = "Malayalam"
	LanguageTelugu    Language = "Telugu"
)

// AudioFormatMP3 is the only audio encoding the service accepts.
const AudioFormatMP3 = "mp3"

// Languages returns the supported set in the service's canonical order.
func Languages() []Language {
	return []Language{
		LanguageTamil,
		LanguageEnglish,
		LanguageHindi,
		LanguageMalayalam,
		LanguageTelugu,
	}
}

// ParseLanguage matches name against the supported set, ignoring case.
func ParseLanguage(name string) (Language, error) {
	for _, lang := range Languages() {
		if strings.EqualFold(string(lang), name) {
			return lang, nil
		}
	}
	return "", fmt.Errorf("unsupported language %q", name)
}

// Classification is the service's verdict on a voice sample.
type Classification string

const (
	ClassificationAIGenerated Classification = "AI_GENERATED"
	ClassificationHuman       Classification = "HUMAN"
)

// Request is the body POSTed to the voice detection endpoint. AudioBase64
// carries the raw audio bytes as standard base64 with no data URI prefix.
type Request struct {
	Language    Language `json:"language"`
	AudioFormat string   `json:"audioFormat"`
	AudioBase64 string   `json:"audioBase64"`
}

// Response is the service's success body.
type Response struct {
	Status          string         `json:"status"`
	Language        Language       `json:"language"`
	Classification  Classification `json:"classification"`
	ConfidenceScore float64        `json:"confidenceScore"`
	Explanation     string         `json:"explanation"`
}

// Validate checks that a success body carries a complete, in-range result.
func (r *Response) Validate() error {
	switch r.Classification {
	case ClassificationAIGenerated, ClassificationHuman:
	default:
		return &InvalidResponseError{Reason: fmt.Sprintf("unknown classification %q", r.Classification)}
	}
	if r.ConfidenceScore < 0 || r.ConfidenceScore > 1 {
		return &InvalidResponseError{Reason: fmt.Sprintf("confidence score %v outside [0, 1]", r.ConfidenceScore)}
	}
	return nil
}

// parseResponse decodes a success body. An absent confidence field would
// decode to a zero value the range check cannot tell apart from a real 0%
// verdict, so its presence is checked before the value is.
func parseResponse(data []byte) (*Response, error) {
	var wire struct {
		Status          string         `json:"status"`
		Language        Language       `json:"language"`
		Classification  Classification `json:"classification"`
		ConfidenceScore *float64       `json:"confidenceScore"`
		Explanation     string         `json:"explanation"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &InvalidResponseError{Reason: fmt.Sprintf("parsing body: %v", err)}
	}
	if wire.ConfidenceScore == nil {
		return nil, &InvalidResponseError{Reason: "missing confidence score"}
	}

	out := &Response{
		Status:          wire.Status,
		Language:        wire.Language,
		Classification:  wire.Classification,
		ConfidenceScore: *wire.ConfidenceScore,
		Explanation:     wire.Explanation,
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Detail is the service's error detail. It arrives either as an object whose
// message field holds the display text, or as a bare string.
type Detail struct {
	Message string
	Text    string
}

func (d *Detail) UnmarshalJSON(data []byte) error {
	// Primary expected shape: {"status": "error", "message": "..."}.
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		d.Message = obj.Message
		return nil
	}

	// Validation layers emit a bare string instead.
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d.Text = s
		return nil
	}

	// Anything else (arrays, numbers) has no display text; callers fall
	// back to their generic message.
	return nil
}

// String resolves the display text: the structured message when present,
// otherwise the bare string verbatim, otherwise "".
func (d Detail) String() string {
	if d.Message != "" {
		return d.Message
	}
	return d.Text
}

type errorEnvelope struct {
	Detail Detail `json:"detail"`
}

// StatusError is a non-2xx reply from the detection service.
type StatusError struct {
	StatusCode int
	Detail     Detail
}

func (e *StatusError) Error() string {
	if msg := e.Detail.String(); msg != "" {
		return fmt.Sprintf("voice detection service returned %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("voice detection service returned %d", e.StatusCode)
}

// InvalidResponseError is a 2xx reply whose body does not carry a usable
// result. It is never coerced into a partial result.
type InvalidResponseError struct {
	Reason string
}

func (e *InvalidResponseError) Error() string {
	return "invalid detection response: " + e.Reason
}
