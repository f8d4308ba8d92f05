package events

// Event type constants for kelindar/event.
const (
	TypeRunStarted uint32 = iota + 1
	TypeProcessStarted
	TypeProcessSpawnFailed
	TypeProcessExited
	TypeConsumerExited
	TypeEnvironmentLost
	TypeCleanupStarted
	TypeCleanupCompleted
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// RunStartedEvent is published once the runtime environment and
// configuration document are in place, before any process is spawned.
type RunStartedEvent struct {
	RunID      string `json:"run_id"`
	Mode       string `json:"mode"`
	RuntimeDir string `json:"runtime_dir"`
}

// Type returns the event type identifier for RunStartedEvent.
func (e RunStartedEvent) Type() uint32 { return TypeRunStarted }

// ProcessStartedEvent reports a successfully spawned process.
type ProcessStartedEvent struct {
	RunID string `json:"run_id"`
	ID    string `json:"id"`
	Role  string `json:"role"`
	PID   int    `json:"pid"`
}

// Type returns the event type identifier for ProcessStartedEvent.
func (e ProcessStartedEvent) Type() uint32 { return TypeProcessStarted }

// ProcessSpawnFailedEvent reports an executable that could not be launched.
type ProcessSpawnFailedEvent struct {
	RunID string `json:"run_id"`
	ID    string `json:"id"`
	Role  string `json:"role"`
	Error string `json:"error"`
}

// Type returns the event type identifier for ProcessSpawnFailedEvent.
func (e ProcessSpawnFailedEvent) Type() uint32 { return TypeProcessSpawnFailed }

// ProcessExitedEvent reports a reaped process.
type ProcessExitedEvent struct {
	RunID    string `json:"run_id"`
	ID       string `json:"id"`
	Role     string `json:"role"`
	ExitCode int    `json:"exit_code"`
}

// Type returns the event type identifier for ProcessExitedEvent.
func (e ProcessExitedEvent) Type() uint32 { return TypeProcessExited }

// ConsumerExitedEvent reports a consumer that died while the primary was
// still running. Fatal is set when the run is aborted because of it.
type ConsumerExitedEvent struct {
	RunID    string `json:"run_id"`
	Mode     string `json:"mode"`
	ExitCode int    `json:"exit_code"`
	Fatal    bool   `json:"fatal"`
}

// Type returns the event type identifier for ConsumerExitedEvent.
func (e ConsumerExitedEvent) Type() uint32 { return TypeConsumerExited }

// EnvironmentLostEvent reports a runtime file removed by a third party.
type EnvironmentLostEvent struct {
	RunID string `json:"run_id"`
	Path  string `json:"path"`
}

// Type returns the event type identifier for EnvironmentLostEvent.
func (e EnvironmentLostEvent) Type() uint32 { return TypeEnvironmentLost }

// CleanupStartedEvent is published when the single cleanup pass begins.
type CleanupStartedEvent struct {
	RunID  string `json:"run_id"`
	Reason string `json:"reason"`
}

// Type returns the event type identifier for CleanupStartedEvent.
func (e CleanupStartedEvent) Type() uint32 { return TypeCleanupStarted }

// CleanupCompletedEvent is published after the consumer was stopped and the
// runtime directory removed. Error holds the joined failures, if any.
type CleanupCompletedEvent struct {
	RunID           string `json:"run_id"`
	ConsumerStopped bool   `json:"consumer_stopped"`
	Error           string `json:"error,omitempty"`
}

// Type returns the event type identifier for CleanupCompletedEvent.
func (e CleanupCompletedEvent) Type() uint32 { return TypeCleanupCompleted }
