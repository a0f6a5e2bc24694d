// Package httputil provides the HTTP plumbing of the fold server.
//
// # Overview
//
//   - [RequestID]: middleware that assigns every request a UUID and echoes
//     it in the X-Request-ID response header
//   - [Observe]: middleware that reports requests to [observability.HTTPHooks]
//   - [Negotiate]: picks request and response model encodings from the
//     Content-Type and Accept headers
//   - [Respond] and [WriteError]: encode bodies and map error codes to
//     status codes
//
// # Status Codes
//
// [StatusFor] maps the codes of [errors.Error]:
//
//   - GRAPH_* and FOLD_*: 422 Unprocessable Entity (well-formed body, bad model)
//   - INVALID_INPUT, INVALID_FORMAT: 400 Bad Request
//   - oversized bodies: 413 Request Entity Too Large
//   - context cancellation: 503 Service Unavailable
//   - everything else: 500
//
// [observability.HTTPHooks]: github.com/matzehuels/bnfold/pkg/observability
// [errors.Error]: github.com/matzehuels/bnfold/pkg/errors
package httputil
