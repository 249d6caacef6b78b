package hooks

import "sync/atomic"

// ScriptHooks is the runner-facing frontend for single-pass script runs.
// Every callback becomes one event on the channel.
type ScriptHooks struct {
	channel *Channel
}

func NewScriptHooks(channel *Channel) *ScriptHooks {
	return &ScriptHooks{channel: channel}
}

func (h *ScriptHooks) Start(count int) {
	h.channel.Post(Event{Type: EventStart, Count: count})
}

func (h *ScriptHooks) Stop(duration int64) {
	h.channel.Post(Event{Type: EventStop, Duration: duration})
}

func (h *ScriptHooks) TestStart(filename, name string, count int) {
	h.channel.Post(Event{Type: EventTestStart, Filename: filename, Name: name, Count: count})
}

func (h *ScriptHooks) TestStop(exception string, duration int64) {
	h.channel.Post(Event{Type: EventTestStop, Exception: exception, Duration: duration})
}

func (h *ScriptHooks) StepSkipped(name, expression string) {
	h.channel.Post(Event{Type: EventStepSkipped, Name: name, Expression: expression})
}

func (h *ScriptHooks) StepStart(name string) {
	h.channel.Post(Event{Type: EventStepStart, Name: name})
}

func (h *ScriptHooks) StepSuccess(logs string, duration int64, request string) {
	h.channel.Post(Event{Type: EventStepSuccess, Logs: logs, Duration: duration, Request: request})
}

func (h *ScriptHooks) StepFailure(logs string, duration int64, request, received string) {
	h.channel.Post(Event{
		Type:     EventStepFailure,
		Logs:     logs,
		Duration: duration,
		Request:  request,
		Received: received,
	})
}

func (h *ScriptHooks) StepUnknown() {
	h.channel.Post(Event{Type: EventStepUnknown})
}

func (h *ScriptHooks) StepManual() {
	h.channel.Post(Event{Type: EventStepManual})
}

func (h *ScriptHooks) ShowPrompt(msg, placeholder, defaultValue string) {
	h.channel.Post(Event{
		Type:         EventShowPrompt,
		Message:      msg,
		Placeholder:  placeholder,
		DefaultValue: defaultValue,
	})
}

// PerformanceHooks is the frontend for multi-iteration commissioning runs.
// It shares the script vocabulary and additionally counts iterations so the
// engine can report commissioning-loop progress.
type PerformanceHooks struct {
	ScriptHooks
	iterations atomic.Int64
}

func NewPerformanceHooks(channel *Channel) *PerformanceHooks {
	return &PerformanceHooks{ScriptHooks: ScriptHooks{channel: channel}}
}

func (h *PerformanceHooks) TestStart(filename, name string, count int) {
	h.iterations.Add(1)
	h.ScriptHooks.TestStart(filename, name, count)
}

// Iterations returns how many commissioning passes have started.
func (h *PerformanceHooks) Iterations() int64 {
	return h.iterations.Load()
}
