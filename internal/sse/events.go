// Package sse implements Server-Sent Events for streaming sync activity
// and engine status to connected clients.
package sse

import "time"

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventEngineStarted represents the engine entering the running state.
	EventEngineStarted EventType = "engine.started"
	// EventEngineStopped represents the engine entering the stopped state.
	EventEngineStopped EventType = "engine.stopped"
	// EventEngineError represents a fatal engine failure.
	EventEngineError EventType = "engine.error"

	// EventFileCopied represents a completed copy to the target tree.
	EventFileCopied EventType = "sync.copied"
	// EventFileDeleted represents a completed delete from the target tree.
	EventFileDeleted EventType = "sync.deleted"
	// EventFileSkipped represents a copy or delete that was skipped.
	EventFileSkipped EventType = "sync.skipped"
	// EventSecurityBlocked represents a rejected target path.
	EventSecurityBlocked EventType = "sync.security_blocked"
	// EventFileError represents a per-file failure.
	EventFileError EventType = "sync.error"

	// EventScanStarted represents the start of the initial scan.
	EventScanStarted EventType = "scan.started"
	// EventScanComplete represents the completion of the initial scan.
	EventScanComplete EventType = "scan.completed"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// EngineEventData is the data payload for engine lifecycle events.
type EngineEventData struct {
	SourceDir string `json:"source_dir,omitempty"`
	TargetDir string `json:"target_dir,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FileEventData is the data payload for per-file sync events.
type FileEventData struct {
	Path   string `json:"path"`
	Target string `json:"target,omitempty"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ScanEventData is the data payload for initial-scan events.
type ScanEventData struct {
	SourceDir string `json:"source_dir"`
	Enqueued  int    `json:"enqueued,omitempty"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewEngineStartedEvent creates an engine.started event.
func NewEngineStartedEvent(sourceDir, targetDir string) Event {
	return Event{
		Type: EventEngineStarted,
		Data: EngineEventData{
			SourceDir: sourceDir,
			TargetDir: targetDir,
		},
		Timestamp: time.Now(),
	}
}

// NewEngineStoppedEvent creates an engine.stopped event.
func NewEngineStoppedEvent() Event {
	return Event{
		Type:      EventEngineStopped,
		Data:      EngineEventData{},
		Timestamp: time.Now(),
	}
}

// NewEngineErrorEvent creates an engine.error event.
func NewEngineErrorEvent(errMsg string) Event {
	return Event{
		Type:      EventEngineError,
		Data:      EngineEventData{Error: errMsg},
		Timestamp: time.Now(),
	}
}

// NewFileCopiedEvent creates a sync.copied event.
func NewFileCopiedEvent(path, target string) Event {
	return Event{
		Type: EventFileCopied,
		Data: FileEventData{
			Path:   path,
			Target: target,
		},
		Timestamp: time.Now(),
	}
}

// NewFileDeletedEvent creates a sync.deleted event.
func NewFileDeletedEvent(path, target string) Event {
	return Event{
		Type: EventFileDeleted,
		Data: FileEventData{
			Path:   path,
			Target: target,
		},
		Timestamp: time.Now(),
	}
}

// NewFileSkippedEvent creates a sync.skipped event with a reason.
func NewFileSkippedEvent(path, reason string) Event {
	return Event{
		Type: EventFileSkipped,
		Data: FileEventData{
			Path:   path,
			Reason: reason,
		},
		Timestamp: time.Now(),
	}
}

// NewSecurityBlockedEvent creates a sync.security_blocked event.
func NewSecurityBlockedEvent(path, errMsg string) Event {
	return Event{
		Type: EventSecurityBlocked,
		Data: FileEventData{
			Path:  path,
			Error: errMsg,
		},
		Timestamp: time.Now(),
	}
}

// NewFileErrorEvent creates a sync.error event.
func NewFileErrorEvent(path, errMsg string) Event {
	return Event{
		Type: EventFileError,
		Data: FileEventData{
			Path:  path,
			Error: errMsg,
		},
		Timestamp: time.Now(),
	}
}

// NewScanStartedEvent creates a scan.started event.
func NewScanStartedEvent(sourceDir string) Event {
	return Event{
		Type:      EventScanStarted,
		Data:      ScanEventData{SourceDir: sourceDir},
		Timestamp: time.Now(),
	}
}

// NewScanCompleteEvent creates a scan.completed event.
func NewScanCompleteEvent(sourceDir string, enqueued int) Event {
	return Event{
		Type: EventScanComplete,
		Data: ScanEventData{
			SourceDir: sourceDir,
			Enqueued:  enqueued,
		},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
		Timestamp: time.Now(),
	}
}
