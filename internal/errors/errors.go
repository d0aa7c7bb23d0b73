package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	ErrMissingInput  = errors.New("missing message")
	ErrMalformedBody = errors.New("malformed request body")
	ErrDownstream    = errors.New("chat service failure")
)

// Messages returned to callers.
const (
	MsgMissingInput  = "Message is required"
	MsgMalformedBody = "Invalid request body"
	MsgDownstream    = "chat service unavailable"
	MsgInternal      = "internal server error"
)

// DownstreamError marks a failure of the external chat service call.
// errors.Is(err, ErrDownstream) holds for every DownstreamError.
type DownstreamError struct {
	Err error
}

func Downstream(err error) error {
	return &DownstreamError{Err: err}
}

func (e *DownstreamError) Error() string        { return e.Err.Error() }
func (e *DownstreamError) Unwrap() error        { return e.Err }
func (e *DownstreamError) Is(target error) bool { return target == ErrDownstream }

// publicError is implemented by errors whose text is safe to show callers.
type publicError interface {
	PublicMessage() string
}

// StatusCode maps an error from the chat path to an HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrMissingInput), errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text for an error body. Raw error text is only
// returned when exposeDetails is set.
func PublicMessage(err error, exposeDetails bool) string {
	switch {
	case errors.Is(err, ErrMissingInput):
		return MsgMissingInput
	case errors.Is(err, ErrMalformedBody):
		return MsgMalformedBody
	case exposeDetails:
		return err.Error()
	}
	var pe publicError
	if errors.As(err, &pe) {
		return pe.PublicMessage()
	}
	return MsgDownstream
}

type jsonError struct {
	Error string `json:"error"`
}

// WriteJSONError writes {"error": message} with the given status.
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message})
}
