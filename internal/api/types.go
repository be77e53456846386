package api

// ExecuteRequest is the API-level request to run code remotely.
type ExecuteRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// The execution response body is storage.ExecutionRecord serialized as-is;
// its JSON tags are the wire contract with the existing client.

// ErrorResponse is returned for API errors.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Database bool   `json:"database"`
	Uptime   string `json:"uptime"`
}
