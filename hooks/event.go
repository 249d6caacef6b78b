// Package hooks carries test runner progress events across the process
// boundary. The runner side emits plain-data events; the engine side polls
// them off a FIFO channel and folds them into execution state.
package hooks

// EventType names one runner callback.
type EventType string

const (
	EventStart       EventType = "start"
	EventStop        EventType = "stop"
	EventTestStart   EventType = "test_start"
	EventTestStop    EventType = "test_stop"
	EventStepSkipped EventType = "step_skipped"
	EventStepStart   EventType = "step_start"
	EventStepSuccess EventType = "step_success"
	EventStepFailure EventType = "step_failure"
	EventStepUnknown EventType = "step_unknown"
	EventStepManual  EventType = "step_manual"
	EventShowPrompt  EventType = "show_prompt"
)

// Event is one runner callback flattened into plain data. Only the fields
// relevant to the event type are set.
type Event struct {
	Type EventType `json:"type"`

	Count    int    `json:"count,omitempty"`
	Duration int64  `json:"duration,omitempty"`
	Filename string `json:"filename,omitempty"`
	Name     string `json:"name,omitempty"`

	Exception  string `json:"exception,omitempty"`
	Expression string `json:"expression,omitempty"`
	Logs       string `json:"logs,omitempty"`
	Request    string `json:"request,omitempty"`
	Received   string `json:"received,omitempty"`

	Message      string `json:"msg,omitempty"`
	Placeholder  string `json:"placeholder,omitempty"`
	DefaultValue string `json:"default_value,omitempty"`
}
