package intake

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType rejects files that cannot be classified as audio. Its
// text is the user-facing rejection message.
var ErrUnsupportedType = errors.New("unsupported file type")

// SelectedFile is a user-chosen audio file staged for analysis. Open hands
// out the raw byte content; the bytes are only read when a run encodes them.
type SelectedFile struct {
	Name      string
	MediaType string
	Open      func() (io.ReadCloser, error)
}

// Go's builtin extension table lacks the common audio types.
var audioTypes = map[string]string{
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".m4a": "audio/mp4",
	".ogg": "audio/ogg",
}

// FromPath stages a file on disk, resolving the declared media type from its
// extension.
func FromPath(path string) SelectedFile {
	ext := strings.ToLower(filepath.Ext(path))
	mediaType := audioTypes[ext]
	if mediaType == "" {
		mediaType = mime.TypeByExtension(ext)
	}
	return SelectedFile{
		Name:      filepath.Base(path),
		MediaType: mediaType,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// FromBytes stages in-memory content, as produced by uploads and decoded
// data URLs.
func FromBytes(name, mediaType string, data []byte) SelectedFile {
	return SelectedFile{
		Name:      name,
		MediaType: mediaType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Validate accepts files whose declared media type marks them as audio, or
// whose name carries the .mp3 extension. The check is metadata only; the
// detection service does the real content validation.
func Validate(f SelectedFile) error {
	if strings.Contains(strings.ToLower(f.MediaType), "audio") {
		return nil
	}
	if strings.EqualFold(filepath.Ext(f.Name), ".mp3") {
		return nil
	}
	return ErrUnsupportedType
}

// EncodePayload reads the file's full content and returns it as standard
// base64 with no data URI prefix. Open and read failures propagate; an
// empty payload is never silently produced in their place.
func EncodePayload(f SelectedFile) (string, error) {
	if f.Open == nil {
		return "", fmt.Errorf("opening %s: no content handle", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", f.Name, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// TrimDataURIPrefix strips a leading data URI scheme such as
// "data:audio/mpeg;base64," so only the payload remains. Text without the
// prefix passes through unchanged.
func TrimDataURIPrefix(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[i+1:]
	}
	return s
}
