package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/project-chip/certification-tool-backend-sub001/metrics"
)

// FileUploadPath is where clients POST files requested by an upload prompt.
const FileUploadPath = "api/v1/test_run_execution/file_upload/"

var (
	// ErrPromptTimeout means no operator answered before the deadline.
	ErrPromptTimeout = errors.New("prompt timed out")
	// ErrPromptCancelled means the operator dismissed the prompt.
	ErrPromptCancelled = errors.New("prompt cancelled by operator")
)

// PromptManager runs the operator prompt round trip over the hub: it
// broadcasts a request carrying a fresh message id and blocks until the
// matching prompt_response arrives or the timeout expires.
type PromptManager struct {
	log log.Logger
	hub *Hub

	nextID  atomic.Int64
	mu      sync.Mutex
	pending map[int64]chan PromptResponse
}

// NewPromptManager creates a manager and registers it as the hub's
// prompt_response handler.
func NewPromptManager(logger log.Logger, hub *Hub) *PromptManager {
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	m := &PromptManager{
		log:     logger,
		hub:     hub,
		pending: make(map[int64]chan PromptResponse),
	}
	hub.RegisterHandler(MessagePromptResponse, m.handleResponse)
	return m
}

func (m *PromptManager) handleResponse(payload json.RawMessage, sender *Connection) {
	var resp PromptResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		m.log.Warn("Discarding malformed prompt response", "sender", sender.ID, "error", err)
		return
	}
	if !m.resolve(resp) {
		m.log.Warn("Prompt response does not match any pending prompt", "message_id", resp.MessageID)
	}
}

// resolve delivers a response to the waiter for its message id. It returns
// false when no prompt with that id is waiting.
func (m *PromptManager) resolve(resp PromptResponse) bool {
	m.mu.Lock()
	ch, ok := m.pending[resp.MessageID]
	if ok {
		delete(m.pending, resp.MessageID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	return true
}

func (m *PromptManager) register(id int64) chan PromptResponse {
	ch := make(chan PromptResponse, 1)
	m.mu.Lock()
	m.pending[id] = ch
	m.mu.Unlock()
	return ch
}

func (m *PromptManager) unregister(id int64) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

// await blocks for a response to the given message id. On timeout a
// time_out_notification is broadcast so clients can dismiss the dialog.
func (m *PromptManager) await(ctx context.Context, id int64, timeout time.Duration) (PromptResponse, error) {
	ch := m.register(id)
	defer m.unregister(id)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		switch resp.StatusCode {
		case StatusOkay:
			metrics.RecordPromptResult("okay")
			return resp, nil
		case StatusCancelled:
			metrics.RecordPromptResult("cancelled")
			return resp, ErrPromptCancelled
		case StatusTimeout:
			metrics.RecordPromptResult("timeout")
			return resp, ErrPromptTimeout
		default:
			metrics.RecordPromptResult("invalid")
			return resp, fmt.Errorf("prompt %d answered with status %d", id, resp.StatusCode)
		}
	case <-timer.C:
		metrics.RecordPromptResult("timeout")
		m.hub.Broadcast(MessageTimeOutNotification, TimeOutNotification{MessageID: id})
		return PromptResponse{}, ErrPromptTimeout
	case <-ctx.Done():
		return PromptResponse{}, ctx.Err()
	}
}

// PromptOptions asks the operator to pick one of the offered options and
// returns the chosen option string.
func (m *PromptManager) PromptOptions(ctx context.Context, message string, options []string, timeout time.Duration) (string, error) {
	id := m.nextID.Add(1)
	optionIDs := make(map[string]int, len(options))
	for i, opt := range options {
		optionIDs[opt] = i + 1
	}
	m.hub.Broadcast(MessageOptionsRequest, OptionsRequest{
		MessageID: id,
		Prompt:    message,
		Timeout:   int(timeout.Seconds()),
		Options:   optionIDs,
	})

	resp, err := m.await(ctx, id, timeout)
	if err != nil {
		return "", err
	}
	// Clients answer with either the option id or the option text.
	if n, convErr := strconv.Atoi(resp.Response); convErr == nil {
		for opt, optionID := range optionIDs {
			if optionID == n {
				return opt, nil
			}
		}
	}
	return resp.Response, nil
}

// PromptText asks the operator for free-form text input.
func (m *PromptManager) PromptText(ctx context.Context, message, placeholder, defaultValue string, timeout time.Duration) (string, error) {
	id := m.nextID.Add(1)
	m.hub.Broadcast(MessagePromptRequest, TextInputRequest{
		MessageID:       id,
		Prompt:          message,
		Timeout:         int(timeout.Seconds()),
		PlaceholderText: placeholder,
		DefaultValue:    defaultValue,
	})

	resp, err := m.await(ctx, id, timeout)
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}

// NotifyMessage shows a message to operators. No response is expected.
func (m *PromptManager) NotifyMessage(message string) {
	id := m.nextID.Add(1)
	m.hub.Broadcast(MessageMessageRequest, MessageNotification{MessageID: id, Message: message})
}

// PromptFileUpload asks the operator to upload a file and returns the
// client's acknowledgement. The upload itself goes over the HTTP API.
func (m *PromptManager) PromptFileUpload(ctx context.Context, message string, timeout time.Duration) (string, error) {
	id := m.nextID.Add(1)
	m.hub.Broadcast(MessageFileUploadRequest, FileUploadRequest{
		MessageID: id,
		Prompt:    message,
		Timeout:   int(timeout.Seconds()),
		Path:      FileUploadPath,
	})

	resp, err := m.await(ctx, id, timeout)
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}
