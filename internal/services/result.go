package services

import "context"

// ErrorKind classifies an expected business-rule failure.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNotFound
	KindForbidden
	KindValidation
	KindUnauthorized
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Result is the outcome of a use-case. A failed Result carries the kind of
// rule that was violated and a message safe to show to the client.
// Persistence failures are reported through the accompanying error instead.
type Result[T any] struct {
	Data    T
	Kind    ErrorKind
	Message string
}

// OK reports whether the operation succeeded.
func (r Result[T]) OK() bool {
	return r.Kind == KindNone
}

func succeed[T any](data T) Result[T] {
	return Result[T]{Data: data}
}

func fail[T any](kind ErrorKind, message string) Result[T] {
	return Result[T]{Kind: kind, Message: message}
}

// Transactor runs fn inside a single store transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
