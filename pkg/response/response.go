package response

// ErrorResponse is the JSON body returned for every non-2xx API response.
// The Error field is a stable machine-readable code; Message is for humans.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

var EmptyRequestBodyResponse = ErrorResponse{
	Error:   "empty_request_body",
	Message: "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = ErrorResponse{
	Error:   "bad_request",
	Message: "The request could not be understood.",
}

var InvalidTargetURLResponse = ErrorResponse{
	Error:   "invalid_target_url",
	Message: "The target URL must be an absolute http or https URL.",
}

var UnsafeTargetURLResponse = ErrorResponse{
	Error:   "unsafe_target_url",
	Message: "The target URL was flagged as unsafe.",
}

var InvalidCursorResponse = ErrorResponse{
	Error:   "invalid_cursor",
	Message: "The pagination cursor is not valid.",
}

var NotFoundResponse = ErrorResponse{
	Error:   "not_found",
	Message: "The requested resource was not found.",
}

var ServerErrorResponse = ErrorResponse{
	Error:   "server_error",
	Message: "An internal server error occurred. Please try again later.",
}
