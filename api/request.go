// Package api declares the request contract shared by every Gate REST endpoint.
// It carries no transport code so the endpoint catalogue can be reused by
// offline decoders and test harnesses.
package api

// Method is the HTTP verb an endpoint is served under.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

// HasBody reports whether parameters travel as a JSON body rather than a query string.
func (m Method) HasBody() bool {
	return m == MethodPost || m == MethodPut
}

// Version is the API generation segment placed after /api/ in every URL.
type Version string

const V4 Version = "v4"

// Endpoint is the static dispatch descriptor of a request whose decoded
// response has type R.
type Endpoint[R any] struct {
	Method  Method
	Version Version
	Public  bool
}

// Request is implemented by every endpoint parameter type. The response type
// is part of the method signature so a mismatch between request and response
// fails to compile.
type Request[R any] interface {
	Endpoint() Endpoint[R]
}

// Public returns the descriptor of an unsigned GET endpoint on v4.
func Public[R any]() Endpoint[R] {
	return Endpoint[R]{Method: MethodGet, Version: V4, Public: true}
}

// Private returns the descriptor of a signed endpoint on v4.
func Private[R any](method Method) Endpoint[R] {
	return Endpoint[R]{Method: method, Version: V4}
}

// Empty is the response type of endpoints whose body carries nothing of interest.
type Empty struct{}

// Validator is implemented by response types that have required fields the
// JSON decoder cannot enforce on its own.
type Validator interface {
	Validate() error
}

// FieldError reports a required field that was missing or malformed in a response.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// Required returns a FieldError when value is empty.
func Required(field, value string) error {
	if value == "" {
		return &FieldError{Field: field, Reason: "is required"}
	}
	return nil
}
