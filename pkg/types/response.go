// Package types holds the wire envelopes shared by every API response.
package types

// SuccessEnvelope wraps any successful payload under a "data" key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error body. Code is one of the stable error
// codes (VALIDATION_ERROR, STOCK_ERROR, ...); Details carries field-level
// validation failures when present.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError under an "error" key.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
