package model

// WebSocket message types
const (
	WSMessageTypeView    = "view"
	WSMessageTypeWarning = "warning"
	WSMessageTypeError   = "error"
	WSMessageTypePing    = "ping"
	WSMessageTypePong    = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSViewMessage carries a full orchestrator view snapshot. The UI renders
// whatever is in here and holds no job state of its own.
type WSViewMessage struct {
	Type  string      `json:"type"`
	JobID string      `json:"jobId"`
	View  interface{} `json:"view"`
}

// WSWarningMessage surfaces a non-fatal condition, e.g. a polling ceiling.
type WSWarningMessage struct {
	Type    string `json:"type"`
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}
