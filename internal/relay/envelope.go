// ABOUTME: Response envelope and error codes shared by every dispatched action
// ABOUTME: Success carries data; failure carries a coded error

package relay

// Response types.
const (
	TypeSuccess = "SUCCESS"
	TypeError   = "ERROR"
)

// Error codes carried in failure envelopes.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeStorageError    = "STORAGE_ERROR"
	CodeUnknownAction   = "UNKNOWN_ACTION"
	CodeUnknownError    = "UNKNOWN_ERROR"
)

// ErrorInfo describes a failed action.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the envelope every action resolves to.
type Response struct {
	Type  string     `json:"type"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorInfo `json:"error,omitempty"`
}

// Success wraps data in a success envelope.
func Success(data any) *Response {
	return &Response{Type: TypeSuccess, Data: data}
}

// Failure wraps a coded error in an error envelope.
func Failure(code, message string) *Response {
	return &Response{Type: TypeError, Error: &ErrorInfo{Code: code, Message: message}}
}

// OK reports whether the response is a success envelope.
func (r *Response) OK() bool {
	return r.Type == TypeSuccess
}
