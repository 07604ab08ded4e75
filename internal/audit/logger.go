package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

type EventType string

const (
	EventRolloutStarted    EventType = "rollout.started"
	EventRolloutCompleted  EventType = "rollout.completed"
	EventRolloutFailed     EventType = "rollout.failed"
	EventTaskLaunched      EventType = "task.launched"
	EventTaskDefRegistered EventType = "taskdef.registered"
)

// Event is one line of the audit trail, serialized as JSON.
type Event struct {
	Timestamp      time.Time      `json:"timestamp"`
	EventType      EventType      `json:"event_type"`
	Cluster        string         `json:"cluster,omitempty"`
	Service        string         `json:"service,omitempty"`
	TaskDefinition string         `json:"task_definition,omitempty"`
	Strategy       string         `json:"strategy,omitempty"`
	DeploymentID   string         `json:"deployment_id,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Logger appends events to a JSONL file. A nil Logger is a valid no-op, so
// callers never have to guard the audit path being unset.
type Logger struct {
	mu   sync.Mutex
	file *os.File
}

func NewLogger(path string) (*Logger, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &Logger{file: file}, nil
}

func (l *Logger) Log(event Event) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	event.Timestamp = time.Now().UTC()
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
