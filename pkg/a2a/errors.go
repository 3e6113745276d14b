package a2a

import "fmt"

// JSON-RPC error codes. The standard codes follow the JSON-RPC 2.0 spec;
// the -320xx range is A2A-specific. Codes are stable on the wire.
const (
	CodeParseError                    = -32700
	CodeInvalidRequest                = -32600
	CodeMethodNotFound                = -32601
	CodeInvalidParams                 = -32602
	CodeInternalError                 = -32603
	CodeTaskNotFound                  = -32001
	CodeTaskNotCancelable             = -32002
	CodePushNotificationNotSupported  = -32003
	CodeUnsupportedOperation          = -32004
	CodeContentTypeNotSupported       = -32005
	CodeInvalidAgentResponse          = -32006
)

// Error is a JSON-RPC error object. It doubles as a Go error so domain
// failures can flow through normal error returns and be serialized at the
// transport boundary.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("a2a error %d: %s", e.Code, e.Message)
}

// Is matches errors by code, so errors.Is(err, ErrTaskNotFound) works on
// wrapped and re-created instances alike.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinel instances for errors.Is checks. Use the constructor helpers when
// a contextual message is needed.
var (
	ErrParseError                   = &Error{Code: CodeParseError, Message: "Invalid JSON payload"}
	ErrInvalidRequest               = &Error{Code: CodeInvalidRequest, Message: "Request payload validation error"}
	ErrMethodNotFound               = &Error{Code: CodeMethodNotFound, Message: "Method not found"}
	ErrInvalidParams                = &Error{Code: CodeInvalidParams, Message: "Invalid parameters"}
	ErrInternal                     = &Error{Code: CodeInternalError, Message: "Internal error"}
	ErrTaskNotFound                 = &Error{Code: CodeTaskNotFound, Message: "Task not found"}
	ErrTaskNotCancelable            = &Error{Code: CodeTaskNotCancelable, Message: "Task cannot be canceled"}
	ErrPushNotificationNotSupported = &Error{Code: CodePushNotificationNotSupported, Message: "Push Notification is not supported"}
	ErrUnsupportedOperation         = &Error{Code: CodeUnsupportedOperation, Message: "This operation is not supported"}
	ErrContentTypeNotSupported      = &Error{Code: CodeContentTypeNotSupported, Message: "Incompatible content types"}
	ErrInvalidAgentResponse         = &Error{Code: CodeInvalidAgentResponse, Message: "Invalid agent response"}
)

// Errorf creates an Error with the given code and a formatted message.
func Errorf(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Internalf creates an internal error with a formatted message.
func Internalf(format string, args ...interface{}) *Error {
	return Errorf(CodeInternalError, format, args...)
}

// InvalidParamsf creates an invalid-params error with a formatted message.
func InvalidParamsf(format string, args ...interface{}) *Error {
	return Errorf(CodeInvalidParams, format, args...)
}
