package client

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the stable error category exposed across the tool boundary.
// Callers switch on Kind to render a useful message without inspecting
// internals.
type Kind string

const (
	// KindAuthentication indicates rejected credentials or a re-auth that
	// failed twice.
	KindAuthentication Kind = "AuthenticationError"

	// KindCatalogUnavailable indicates a metadata fetch failure with no
	// usable cache.
	KindCatalogUnavailable Kind = "CatalogUnavailableError"

	// KindNotFound indicates a named data source or column absent after a
	// catalog refresh.
	KindNotFound Kind = "NotFoundError"

	// KindUnsupportedQuery indicates a query shape outside the accepted
	// grammar.
	KindUnsupportedQuery Kind = "UnsupportedQueryError"

	// KindSyntax indicates malformed query text.
	KindSyntax Kind = "SyntaxError"

	// KindTransport indicates a network or 5xx failure that exhausted
	// retries.
	KindTransport Kind = "TransportError"

	// KindRequest indicates a non-retryable 4xx response.
	KindRequest Kind = "RequestError"

	// KindProtocol indicates a response that could not be parsed into the
	// expected shape.
	KindProtocol Kind = "ProtocolError"
)

// Error is a categorized bridge error. Every failure that crosses the tool
// boundary is one of these; sub-component errors are wrapped, never
// downgraded.
type Error struct {
	Kind    Kind
	Op      string // operation that observed the failure, e.g. "runQuery"
	Message string

	// Status holds the HTTP status for KindRequest errors.
	Status int

	// What and Name identify the missing entity for KindNotFound errors,
	// e.g. What="data source", Name="eFashion".
	What string
	Name string

	// Pos is the byte offset of the offending token for KindSyntax errors.
	Pos int

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Kind == KindNotFound && e.Name != "":
		fmt.Fprintf(&b, "%s %q not found", e.What, e.Name)
	case e.Kind == KindSyntax:
		fmt.Fprintf(&b, "syntax error at position %d: %s", e.Pos, e.Message)
	default:
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a categorized error from a format string.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a categorized error wrapping a cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NotFound creates a KindNotFound error for a named entity.
func NotFound(what, name string) *Error {
	return &Error{Kind: KindNotFound, What: what, Name: name}
}

// SyntaxAt creates a KindSyntax error at a byte position in the query text.
func SyntaxAt(pos int, format string, args ...any) *Error {
	return &Error{Kind: KindSyntax, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// Unsupported creates a KindUnsupportedQuery error naming the rejected
// construct.
func Unsupported(construct string) *Error {
	return &Error{
		Kind:    KindUnsupportedQuery,
		Message: fmt.Sprintf("unsupported query construct: %s (only 'SELECT col, col FROM table' is accepted)", construct),
	}
}

// KindOf returns the Kind of err, or the empty string if err carries no
// category.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// WithOp annotates err with the public operation that triggered it. The
// Kind is preserved; an operation already present is kept (the innermost
// annotation wins).
func WithOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Op != "" {
			return err
		}
		annotated := *e
		annotated.Op = op
		return &annotated
	}
	return fmt.Errorf("%s: %w", op, err)
}
