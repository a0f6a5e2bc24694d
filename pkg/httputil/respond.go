package httputil

import (
	"context"
	stderrors "errors"
	"mime"
	"net/http"
	"strings"

	"github.com/matzehuels/bnfold/pkg/errors"
	"github.com/matzehuels/bnfold/pkg/graph"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Code      string `json:"code" msgpack:"code"`
	Message   string `json:"message" msgpack:"message"`
	RequestID string `json:"request_id,omitempty" msgpack:"request_id,omitempty"`
}

// Negotiate returns the encoding of the request body (Content-Type) and
// of the response (Accept). A missing Content-Type means JSON; a missing
// or wildcard Accept answers in the request's encoding.
func Negotiate(r *http.Request) (in, out graph.Format, err error) {
	in, err = mediaFormat(r.Header.Get("Content-Type"))
	if err != nil {
		return "", "", err
	}
	out = in
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if mt == "" || mt == "*/*" || mt == "application/*" {
			continue
		}
		if f, err := graph.ParseFormat(mt); err == nil {
			return in, f, nil
		}
	}
	return in, out, nil
}

func mediaFormat(header string) (graph.Format, error) {
	if header == "" {
		return graph.FormatJSON, nil
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidFormat, err, "bad Content-Type %q", header)
	}
	return graph.ParseFormat(mt)
}

// Respond writes v with the given status in format f.
func Respond(w http.ResponseWriter, status int, v any, f graph.Format) {
	data, err := graph.Marshal(v, f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// WriteError writes err as an [ErrorBody] with the status from [StatusFor].
func WriteError(w http.ResponseWriter, r *http.Request, err error, f graph.Format) {
	code := string(errors.GetCode(err))
	if code == "" {
		code = string(errors.ErrCodeInternal)
	}
	Respond(w, StatusFor(err), ErrorBody{
		Code:      code,
		Message:   errors.UserMessage(err),
		RequestID: RequestIDFrom(r.Context()),
	}, f)
}

// StatusFor maps an error to an HTTP status code.
func StatusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.IsGraphError(err), errors.IsFoldError(err):
		return http.StatusUnprocessableEntity
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFormat, errors.ErrCodeUnsupported:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
