package shared

// ErrorResponse is the JSON body of every error reply. Stderr is only set for
// failed subprocess jobs, where an empty string is still meaningful.
type ErrorResponse struct {
	Error  string  `json:"error"`
	Stderr *string `json:"stderr,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ServicesResponse struct {
	Services []string `json:"services"`
}
