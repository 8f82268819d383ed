// Package scimerr defines the SCIM error taxonomy shared by every layer of
// the proxy, from filter parsing down to the HTTP response writer.
package scimerr

import "fmt"

// Error prototypes. Wrap one with fmt.Errorf("%w: detail", err) to attach
// context; never construct an *Error literal directly outside this file.
var (
	ErrInvalidFilter     = &Error{Status: 400, Type: "invalidFilter"}
	ErrTooMany           = &Error{Status: 400, Type: "tooMany"}
	ErrInvalidPath       = &Error{Status: 400, Type: "invalidPath"}
	ErrNoTarget          = &Error{Status: 400, Type: "noTarget"}
	ErrMutability        = &Error{Status: 400, Type: "mutability"}
	ErrInvalidSyntax     = &Error{Status: 400, Type: "invalidSyntax"}
	ErrInvalidValue      = &Error{Status: 400, Type: "invalidValue"}
	ErrNotFound          = &Error{Status: 404, Type: "notFound"}
	ErrUpstreamError     = &Error{Status: 502, Type: "upstreamError"}
	ErrUpstreamUnavailable = &Error{Status: 502, Type: "upstreamUnavailable"}
	ErrInternal          = &Error{Status: 500, Type: "internal"}
)

// Error is a SCIM error prototype: an HTTP status paired with a scimType.
// Construct application errors by wrapping one of the prototypes above with
// fmt.Errorf so that errors.Unwrap recovers the prototype for HTTP mapping.
type Error struct {
	Status int
	Type   string
}

func (e *Error) Error() string {
	return e.Type
}

// Wrap annotates a prototype with a detail message while keeping it
// unwrappable back to the prototype via errors.Is/errors.Unwrap.
func Wrap(proto *Error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", proto, fmt.Sprintf(format, args...))
}

// Passthrough wraps a non-2xx upstream response so the HTTP layer can
// surface the upstream's own status and body unchanged (SCIM error
// envelopes from the legacy service pass through verbatim per §4.9/§7).
type Passthrough struct {
	Status      int
	Body        []byte
	ContentType string
}

func (p *Passthrough) Error() string {
	return fmt.Sprintf("upstream responded %d", p.Status)
}

// Unwrap lets errors.Is(err, ErrUpstreamError) succeed for a Passthrough.
func (p *Passthrough) Unwrap() error {
	return ErrUpstreamError
}

var (
	_ error = (*Error)(nil)
	_ error = (*Passthrough)(nil)
)
