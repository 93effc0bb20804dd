package session

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jatinpathak/Truth-Spectrogram/internal/config"
	"github.com/jatinpathak/Truth-Spectrogram/internal/detection"
	"github.com/jatinpathak/Truth-Spectrogram/internal/intake"
)

// detectorFunc adapts a plain function to detection.Detector.
type detectorFunc func(ctx context.Context, apiKey string, req detection.Request) (*detection.Response, error)

func (f detectorFunc) Detect(ctx context.Context, apiKey string, req detection.Request) (*detection.Response, error) {
	return f(ctx, apiKey, req)
}

func mp3Bytes() []byte {
	return append([]byte{0xff, 0xfb, 0x90, 0x00}, make([]byte, 32)...)
}

func mp3File() intake.SelectedFile {
	return intake.FromBytes("sample.mp3", "audio/mpeg", mp3Bytes())
}

func readySession(t *testing.T, det detection.Detector) *Session {
	t.Helper()
	s := New(det)
	s.SetCredential("sk_test_key")
	require.NoError(t, s.SelectFile(mp3File()))
	return s
}

func TestNewSessionStartsIdle(t *testing.T) {
	s := New(nil)

	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.Result())
	assert.Empty(t, s.ErrorMessage())
	assert.False(t, s.IsAIGenerated())
	assert.False(t, s.IsHuman())

	view := s.Snapshot()
	assert.Equal(t, "idle", view.State)
	assert.Equal(t, "English", view.Language)
	assert.False(t, view.HasCredential)
	assert.Empty(t, view.FileName)
}

func TestSelectFileMovesToReady(t *testing.T) {
	s := New(nil)

	require.NoError(t, s.SelectFile(mp3File()))

	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, "sample.mp3", s.Snapshot().FileName)
}

func TestSelectFileRejectsNonAudio(t *testing.T) {
	s := New(nil)

	err := s.SelectFile(intake.FromBytes("notes.txt", "text/plain", []byte("hello")))
	require.Error(t, err)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, FailureValidation, failure.Kind)
	assert.Equal(t, "unsupported file type", failure.Message)
	assert.ErrorIs(t, err, intake.ErrUnsupportedType)

	// The rejected file must not disturb the session.
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, s.Snapshot().FileName)
}

func TestAnalyzeRequiresFile(t *testing.T) {
	s := New(nil)
	s.SetCredential("sk_test_key")

	_, err := s.Analyze(context.Background())

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, FailureValidation, failure.Kind)
	assert.Equal(t, "no audio file selected", failure.Message)

	// Precondition refusals do not move the machine or settle as run outcomes.
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, s.ErrorMessage())
}

func TestAnalyzeRequiresCredential(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.SelectFile(mp3File()))

	_, err := s.Analyze(context.Background())

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, FailureValidation, failure.Kind)
	assert.Equal(t, "API key is required", failure.Message)
	assert.Equal(t, StateReady, s.State())
}

func TestAnalyzeSuccess(t *testing.T) {
	var gotKey string
	var gotReq detection.Request
	det := detectorFunc(func(ctx context.Context, apiKey string, req detection.Request) (*detection.Response, error) {
		gotKey = apiKey
		gotReq = req
		return &detection.Response{
			Status:          "success",
			Language:        req.Language,
			Classification:  detection.ClassificationAIGenerated,
			ConfidenceScore: 0.87,
			Explanation:     "Spectral artifacts typical of neural synthesis.",
		}, nil
	})

	s := readySession(t, det)
	result, err := s.Analyze(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "sk_test_key", gotKey)
	assert.Equal(t, detection.LanguageEnglish, gotReq.Language)
	assert.Equal(t, detection.AudioFormatMP3, gotReq.AudioFormat)
	decoded, decodeErr := base64.StdEncoding.DecodeString(gotReq.AudioBase64)
	require.NoError(t, decodeErr)
	assert.Equal(t, mp3Bytes(), decoded, "the dispatched payload is the file's bytes, base64 encoded")

	assert.Equal(t, StateSucceeded, s.State())
	require.NotNil(t, result)
	assert.Equal(t, "AI_GENERATED", result.Classification)
	assert.Equal(t, 87, result.ConfidencePercent())
	assert.Equal(t, "87%", result.DisplayConfidence())
	assert.Equal(t, "sample.mp3", result.FileName, "the result names the file its run analyzed")
	assert.True(t, s.IsAIGenerated())
	assert.False(t, s.IsHuman())
	assert.Empty(t, s.ErrorMessage())
}

func TestAnalyzeServiceErrorObjectDetail(t *testing.T) {
	det := detectorFunc(func(context.Context, string, detection.Request) (*detection.Response, error) {
		return nil, &detection.StatusError{StatusCode: 401, Detail: detection.Detail{Message: "invalid credential"}}
	})

	s := readySession(t, det)
	_, err := s.Analyze(context.Background())

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, FailureService, failure.Kind)
	assert.Equal(t, "invalid credential", failure.Message, "the structured message is surfaced exactly")

	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, "invalid credential", s.ErrorMessage())
	assert.Nil(t, s.Result())
}

func TestAnalyzeServiceErrorStringDetail(t *testing.T) {
	det := detectorFunc(func(context.Context, string, detection.Request) (*detection.Response, error) {
		return nil, &detection.StatusError{StatusCode: 429, Detail: detection.Detail{Text: "rate limited"}}
	})

	s := readySession(t, det)
	_, err := s.Analyze(context.Background())
	require.Error(t, err)

	assert.Equal(t, "rate limited", s.ErrorMessage(), "a bare string detail is surfaced verbatim")
	assert.Equal(t, StateFailed, s.State())
}

func TestAnalyzeServiceErrorWithoutDetail(t *testing.T) {
	det := detectorFunc(func(context.Context, string, detection.Request) (*detection.Response, error) {
		return nil, &detection.StatusError{StatusCode: 500}
	})

	s := readySession(t, det)
	_, err := s.Analyze(context.Background())
	require.Error(t, err)

	assert.Equal(t, genericFailureMessage, s.ErrorMessage())
}

func TestAnalyzeTransportError(t *testing.T) {
	det := detectorFunc(func(context.Context, string, detection.Request) (*detection.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	s := readySession(t, det)
	_, err := s.Analyze(context.Background())

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, FailureTransport, failure.Kind)
	assert.Equal(t, "Failed to analyze voice. Please try again.", failure.Message)
	assert.Equal(t, StateFailed, s.State())
}

func TestAnalyzeMalformedResponse(t *testing.T) {
	det := detectorFunc(func(context.Context, string, detection.Request) (*detection.Response, error) {
		return nil, &detection.InvalidResponseError{Reason: "missing classification"}
	})

	s := readySession(t, det)
	_, err := s.Analyze(context.Background())

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, FailureService, failure.Kind, "malformed bodies count as service failures")
	assert.Equal(t, genericFailureMessage, failure.Message)
}

func TestAnalyzeEncodeFailure(t *testing.T) {
	called := false
	det := detectorFunc(func(context.Context, string, detection.Request) (*detection.Response, error) {
		called = true
		return nil, nil
	})

	s := New(det)
	s.SetCredential("sk_test_key")
	require.NoError(t, s.SelectFile(intake.SelectedFile{
		Name: "broken.mp3",
		Open: func() (io.ReadCloser, error) {
			return nil, errors.New("handle revoked")
		},
	}))

	_, err := s.Analyze(context.Background())

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, FailureIO, failure.Kind)
	assert.Equal(t, StateFailed, s.State())
	assert.False(t, called, "a failed read must abort before any network call")
}

func TestAnalyzeNilContentHandle(t *testing.T) {
	called := false
	det := detectorFunc(func(context.Context, string, detection.Request) (*detection.Response, error) {
		called = true
		return nil, nil
	})

	s := New(det)
	s.SetCredential("sk_test_key")
	require.NoError(t, s.SelectFile(intake.SelectedFile{Name: "orphan.mp3"}),
		"an mp3 name passes metadata-only validation even without a content handle")

	_, err := s.Analyze(context.Background())

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, FailureIO, failure.Kind)
	assert.Equal(t, StateFailed, s.State())
	assert.False(t, called)

	// The run settled, so the session is not wedged.
	require.NoError(t, s.SelectFile(mp3File()))
	assert.Equal(t, StateReady, s.State())
}

func TestAnalyzePanicDoesNotStrandSession(t *testing.T) {
	panicNext := true
	det := detectorFunc(func(_ context.Context, _ string, req detection.Request) (*detection.Response, error) {
		if panicNext {
			panicNext = false
			panic("detector blew up")
		}
		return &detection.Response{
			Status:          "success",
			Language:        req.Language,
			Classification:  detection.ClassificationHuman,
			ConfidenceScore: 0.9,
		}, nil
	})

	s := readySession(t, det)

	assert.Panics(t, func() { _, _ = s.Analyze(context.Background()) })

	assert.Equal(t, StateFailed, s.State(), "a panicked run still settles")
	assert.Equal(t, genericFailureMessage, s.ErrorMessage())

	result, err := s.Analyze(context.Background())
	require.NoError(t, err, "the session stays usable after a panicked run")
	assert.Equal(t, StateSucceeded, s.State())
	assert.True(t, result.IsHuman())
}

func TestAnalyzeEmptyFile(t *testing.T) {
	called := false
	det := detectorFunc(func(context.Context, string, detection.Request) (*detection.Response, error) {
		called = true
		return nil, nil
	})

	s := New(det)
	s.SetCredential("sk_test_key")
	require.NoError(t, s.SelectFile(intake.FromBytes("empty.mp3", "audio/mpeg", nil)))

	_, err := s.Analyze(context.Background())

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, FailureIO, failure.Kind)
	assert.Equal(t, "audio file is empty", failure.Message)
	assert.False(t, called)
}

func TestAnalyzeRefusedWhileRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	calls := 0

	det := detectorFunc(func(_ context.Context, _ string, req detection.Request) (*detection.Response, error) {
		calls++
		close(started)
		<-release
		return &detection.Response{
			Status:          "success",
			Language:        req.Language,
			Classification:  detection.ClassificationHuman,
			ConfidenceScore: 0.64,
		}, nil
	})

	s := readySession(t, det)

	done := make(chan error, 1)
	go func() {
		_, err := s.Analyze(context.Background())
		done <- err
	}()

	<-started
	assert.Equal(t, StateRunning, s.State())

	_, err := s.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrAnalysisInFlight, "a second run is refused, not queued")

	err = s.SelectFile(mp3File())
	assert.ErrorIs(t, err, ErrAnalysisInFlight, "file changes are refused while running")

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, StateSucceeded, s.State())
	assert.Equal(t, 1, calls, "exactly one request was dispatched")
	assert.True(t, s.IsHuman(), "the refusals did not disturb the original run")
}

func TestSelectFileClearsHeldResult(t *testing.T) {
	det := detectorFunc(func(_ context.Context, _ string, req detection.Request) (*detection.Response, error) {
		return &detection.Response{
			Status:          "success",
			Language:        req.Language,
			Classification:  detection.ClassificationHuman,
			ConfidenceScore: 0.9,
		}, nil
	})

	s := readySession(t, det)
	_, err := s.Analyze(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, s.State())
	require.NotNil(t, s.Result())

	require.NoError(t, s.SelectFile(intake.FromBytes("next.mp3", "audio/mpeg", mp3Bytes())))

	assert.Equal(t, StateReady, s.State())
	assert.Nil(t, s.Result(), "a new selection clears the held result")
	assert.Empty(t, s.ErrorMessage())
	assert.Equal(t, "next.mp3", s.Snapshot().FileName)
}

func TestReAnalyzeAfterFailureClearsFailure(t *testing.T) {
	failFirst := true
	det := detectorFunc(func(_ context.Context, _ string, req detection.Request) (*detection.Response, error) {
		if failFirst {
			failFirst = false
			return nil, &detection.StatusError{StatusCode: 503, Detail: detection.Detail{Text: "try later"}}
		}
		return &detection.Response{
			Status:          "success",
			Language:        req.Language,
			Classification:  detection.ClassificationAIGenerated,
			ConfidenceScore: 0.77,
		}, nil
	})

	s := readySession(t, det)

	_, err := s.Analyze(context.Background())
	require.Error(t, err)
	require.Equal(t, StateFailed, s.State())
	require.Equal(t, "try later", s.ErrorMessage())

	result, err := s.Analyze(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateSucceeded, s.State())
	assert.Empty(t, s.ErrorMessage(), "the old failure is gone once a new run settles")
	assert.Equal(t, 77, result.ConfidencePercent())
}

func TestLanguageSnapshottedAtDispatch(t *testing.T) {
	var mu sync.Mutex
	var dispatched []detection.Language
	first := true

	started := make(chan struct{})
	release := make(chan struct{})

	det := detectorFunc(func(_ context.Context, _ string, req detection.Request) (*detection.Response, error) {
		mu.Lock()
		dispatched = append(dispatched, req.Language)
		isFirst := first
		first = false
		mu.Unlock()

		if isFirst {
			close(started)
			<-release
		}
		return &detection.Response{
			Status:          "success",
			Language:        req.Language,
			Classification:  detection.ClassificationHuman,
			ConfidenceScore: 0.5,
		}, nil
	})

	s := readySession(t, det)
	require.NoError(t, s.SetLanguage("Tamil"))

	done := make(chan error, 1)
	go func() {
		_, err := s.Analyze(context.Background())
		done <- err
	}()

	<-started
	require.NoError(t, s.SetLanguage("Telugu"), "language edits are allowed mid-run")
	close(release)
	require.NoError(t, <-done)

	_, err := s.Analyze(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []detection.Language{detection.LanguageTamil, detection.LanguageTelugu}, dispatched,
		"each run uses the language snapshotted at its own dispatch")
}

func TestSetLanguageRejectsUnknown(t *testing.T) {
	s := New(nil)

	err := s.SetLanguage("Klingon")
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, FailureValidation, failure.Kind)

	assert.Equal(t, "English", s.Snapshot().Language, "the previous language survives a rejected edit")
}

func TestSetCredentialTrimsWhitespace(t *testing.T) {
	s := New(nil)

	s.SetCredential("  sk_test_key  ")
	assert.True(t, s.Snapshot().HasCredential)

	s.SetCredential("   ")
	assert.False(t, s.Snapshot().HasCredential, "whitespace-only keys do not count as credentials")
}

func TestAnalyzeThroughHTTPClient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/voice-detection", r.URL.Path)
		assert.Equal(t, "sk_live_integration", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "success",
			"language": "Malayalam",
			"classification": "HUMAN",
			"confidenceScore": 0.93,
			"explanation": "Consistent vocal tract resonance."
		}`))
	}))
	defer ts.Close()

	client, err := detection.NewClient(&config.DetectionConfig{BaseURL: ts.URL})
	require.NoError(t, err)

	s := New(client)
	s.SetCredential("sk_live_integration")
	require.NoError(t, s.SetLanguage("Malayalam"))
	require.NoError(t, s.SelectFile(mp3File()))

	result, err := s.Analyze(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateSucceeded, s.State())
	assert.Equal(t, "HUMAN", result.Classification)
	assert.Equal(t, "93%", result.DisplayConfidence())
	assert.True(t, s.IsHuman())
}
