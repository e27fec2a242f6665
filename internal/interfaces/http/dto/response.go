package dto

// Response is the envelope every admin endpoint answers with
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo carries the code/message pair of a failed request
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewSuccessResponse wraps a payload in a success envelope
func NewSuccessResponse(data any) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse builds an error envelope
func NewErrorResponse(code, message string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}
