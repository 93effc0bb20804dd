package apimodels

type SelectFileRequest struct {
	// FileName is the name of the chosen file (e.g. "clip.mp3")
	FileName string `json:"fileName"`

	// MediaType is the declared media type, when known
	MediaType string `json:"mediaType,omitempty"`

	// AudioBase64 carries the file content; a data URI prefix is accepted
	// and stripped
	AudioBase64 string `json:"audioBase64"`
}

type SetLanguageRequest struct {
	// Language is one of the supported target languages
	Language string `json:"language"`
}

type SetCredentialRequest struct {
	// APIKey authenticates against the detection service
	APIKey string `json:"apiKey"`
}
