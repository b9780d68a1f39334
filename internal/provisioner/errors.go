package provisioner

import "errors"

// Kind classifies a coordinator failure so callers can choose the right
// response without parsing messages.
type Kind string

// Failure kinds
const (
	KindNoCapacity        Kind = "no_capacity"        // port pool exhausted, nothing was created
	KindNotFound          Kind = "not_found"          // stream does not exist
	KindInvalidTransition Kind = "invalid_transition" // lifecycle state machine forbids the move
	KindInvalidArgument   Kind = "invalid_argument"   // request failed validation
	KindExternalConfig    Kind = "external_config"    // streaming server rejected the configuration
	KindUnreachable       Kind = "server_unreachable" // no streaming server could be contacted
	KindInternal          Kind = "internal"           // everything else
)

// Error is a classified coordinator error. Two Errors match under
// errors.Is when their kinds are equal, so the exported sentinels below
// double as match targets.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinel errors for errors.Is matching
var (
	ErrNoCapacity        = &Error{Kind: KindNoCapacity, Message: "no ports available"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "stream not found"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Message: "invalid lifecycle transition"}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument, Message: "invalid request"}
	ErrExternalConfig    = &Error{Kind: KindExternalConfig, Message: "streaming server configuration failed"}
	ErrUnreachable       = &Error{Kind: KindUnreachable, Message: "streaming server unreachable"}
)

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the failure kind from an error chain, defaulting to
// KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
