package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// ClientError is the flat failure body of the extension validation protocol.
type ClientError struct {
	Valid bool   `json:"valid"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
