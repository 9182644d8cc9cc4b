package domain

import "errors"

// Failure sentinels. Fallback-chain "no match" conditions are deliberately
// not represented here: they are normal control flow, not errors.
var (
	// ErrCorpusNotFound means the requested category has no loaded corpus.
	ErrCorpusNotFound = errors.New("corpus not found for category")

	// ErrDimensionMismatch means an embedding is incompatible with the stored
	// vectors. This indicates a configuration error and is never coerced.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEncoding means the external encoder failed to produce an embedding.
	ErrEncoding = errors.New("encoding failed")

	// ErrCaption means the external captioner failed to produce a caption.
	ErrCaption = errors.New("caption generation failed")

	// ErrMalformedRequest means a request is missing a required field.
	ErrMalformedRequest = errors.New("malformed request")
)

// ErrorCode maps a sentinel error to its wire code. Unknown errors map to
// "internal_error".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrCorpusNotFound):
		return "corpus_not_found"
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, ErrEncoding):
		return "encoding_error"
	case errors.Is(err, ErrCaption):
		return "caption_error"
	case errors.Is(err, ErrMalformedRequest):
		return "malformed_request"
	default:
		return "internal_error"
	}
}

// ErrorPayload is the structured error object returned across process
// boundaries instead of letting failures escape as bare strings.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorPayload builds the wire representation of err.
func NewErrorPayload(err error) *ErrorPayload {
	return &ErrorPayload{
		Code:    ErrorCode(err),
		Message: err.Error(),
	}
}
