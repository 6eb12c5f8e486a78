package response

type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	// Empty is set when the request was valid but produced no rows, so clients can show an
	// empty state rather than an all-zero report.
	Empty bool `json:"empty"`
	Data  T    `json:"data,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
