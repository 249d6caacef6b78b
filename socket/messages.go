// Package socket implements the operator-facing connection hub: the
// WebSocket JSON protocol, state broadcast, the prompt round trip, the UDP
// video relay and WebRTC signaling.
package socket

import (
	"encoding/json"

	"github.com/project-chip/certification-tool-backend-sub001/types"
)

// Message types of the operator wire protocol.
const (
	MessagePromptRequest       = "prompt_request"
	MessageOptionsRequest      = "options_request"
	MessageMessageRequest      = "message_request"
	MessagePromptResponse      = "prompt_response"
	MessageTestUpdate          = "test_update"
	MessageFileUploadRequest   = "file_upload_request"
	MessageTimeOutNotification = "time_out_notification"
	MessageTestLogRecords      = "test_log_records"
	MessageInvalidMessage      = "invalid_message"
)

// ResponseStatus encodes the outcome of a prompt round trip.
type ResponseStatus int

const (
	StatusOkay      ResponseStatus = 0
	StatusCancelled ResponseStatus = -1
	StatusTimeout   ResponseStatus = -2
	StatusInvalid   ResponseStatus = -3
)

// Invalid-message reasons sent back to the offending client.
const (
	invalidJSONError = "The message received is not a valid JSON object"
	missingTypeError = "The message is missing a type key"
	noHandlerError   = "There is no handler registered for this message type"
)

// Envelope is the top-level frame of every protocol message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a payload value into a typed frame.
func NewEnvelope(messageType string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: messageType, Payload: raw}, nil
}

// OptionsRequest asks the operator to pick one of the offered options.
type OptionsRequest struct {
	MessageID int64          `json:"message_id"`
	Prompt    string         `json:"prompt"`
	Timeout   int            `json:"timeout"`
	Options   map[string]int `json:"options"`
}

// TextInputRequest asks the operator for free-form text.
type TextInputRequest struct {
	MessageID       int64  `json:"message_id"`
	Prompt          string `json:"prompt"`
	Timeout         int    `json:"timeout"`
	PlaceholderText string `json:"placeholder_text,omitempty"`
	DefaultValue    string `json:"default_value,omitempty"`
	RegexPattern    string `json:"regex_pattern,omitempty"`
}

// FileUploadRequest asks the operator to upload a file to the given path.
type FileUploadRequest struct {
	MessageID int64  `json:"message_id"`
	Prompt    string `json:"prompt"`
	Timeout   int    `json:"timeout"`
	Path      string `json:"path"`
}

// MessageNotification is displayed to the operator without expecting an
// answer.
type MessageNotification struct {
	MessageID int64  `json:"message_id"`
	Message   string `json:"message"`
}

// PromptResponse is the operator's answer to any prompt request.
type PromptResponse struct {
	MessageID  int64          `json:"message_id"`
	Response   string         `json:"response"`
	StatusCode ResponseStatus `json:"status_code"`
}

// TimeOutNotification tells clients a prompt expired unanswered.
type TimeOutNotification struct {
	MessageID int64 `json:"message_id"`
}

// TestUpdate frames one hierarchy state transition. The body is tagged by
// the hierarchy level it describes.
type TestUpdate struct {
	TestType string         `json:"test_type"`
	Body     TestUpdateBody `json:"body"`
}

type TestUpdateBody struct {
	Index    int             `json:"index"`
	PublicID string          `json:"public_id,omitempty"`
	Title    string          `json:"title,omitempty"`
	State    types.TestState `json:"state"`
	Errors   []string        `json:"errors,omitempty"`
	Failures []string        `json:"failures,omitempty"`
}

// TestLogRecord is one batched runner log line pushed to operators.
type TestLogRecord struct {
	Level     string  `json:"level"`
	Timestamp float64 `json:"timestamp"`
	Message   string  `json:"message"`
}

// SignalingError is synthesized back to a WebRTC sender whose counterpart
// is not connected.
type SignalingError struct {
	Error string `json:"error"`
	Data  string `json:"data"`
}

// UpdateForNode builds the test_update frame for one execution node. It
// returns nil for unknown node types.
func UpdateForNode(node any) *TestUpdate {
	switch n := node.(type) {
	case *types.TestRun:
		return &TestUpdate{TestType: "run", Body: TestUpdateBody{
			Index: n.ID,
			Title: n.Title,
			State: n.State(),
		}}
	case *types.SuiteExecution:
		return &TestUpdate{TestType: "suite", Body: TestUpdateBody{
			Index:    n.ExecutionIndex,
			PublicID: n.PublicID,
			State:    n.State(),
		}}
	case *types.CaseExecution:
		return &TestUpdate{TestType: "case", Body: TestUpdateBody{
			Index:    n.ExecutionIndex,
			PublicID: n.PublicID,
			State:    n.State(),
			Errors:   n.Errors,
			Failures: n.Failures,
		}}
	case *types.StepExecution:
		return &TestUpdate{TestType: "step", Body: TestUpdateBody{
			Index:    n.ExecutionIndex,
			Title:    n.Title,
			State:    n.State(),
			Errors:   n.Errors,
			Failures: n.Failures,
		}}
	default:
		return nil
	}
}
