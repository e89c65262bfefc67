package intercept

import "time"

// ErrorContext carries metadata about one handled error. Missing fields are
// synthesized by the interceptor before dispatch.
type ErrorContext struct {
	// ErrorID uniquely identifies this occurrence. Generated when empty.
	ErrorID string `json:"error_id"`

	// Source names where the error was observed. Defaults to "unknown".
	Source string `json:"source"`

	// Timestamp is when the error was handled. Filled when zero.
	Timestamp time.Time `json:"timestamp"`

	// Metadata holds free-form caller-supplied fields.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Handler processes one error with its context. Handlers are registered in
// order and removed by identity, so implementations should be pointers.
type Handler interface {
	Handle(err error, ectx ErrorContext)
}

// HandlerFunc adapts an ordinary function to the Handler interface while
// keeping identity-based unregistration (two NewHandlerFunc calls with the
// same function are distinct handlers).
type HandlerFunc struct {
	fn func(error, ErrorContext)
}

// NewHandlerFunc creates a new HandlerFunc.
func NewHandlerFunc(fn func(error, ErrorContext)) *HandlerFunc {
	return &HandlerFunc{fn: fn}
}

// Handle processes the error.
func (h *HandlerFunc) Handle(err error, ectx ErrorContext) {
	h.fn(err, ectx)
}
